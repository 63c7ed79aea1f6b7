package ports

import (
	"context"

	"github.com/alejandrodnm/polyslip/internal/domain"
)

// Notifier entrega alertas al operador (consola, Telegram...).
type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// SignalPublisher reenvía cada evaluación a un bus externo.
type SignalPublisher interface {
	Publish(ctx context.Context, eval domain.Evaluation) error
}
