package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
)

// OrderExecutor coloca y cancela órdenes límite para las decisiones sobre las
// que actúa el bot. El analizador nunca lo llama.
type OrderExecutor interface {
	// PlaceOrder envía una orden límite y la devuelve una vez aceptada.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error)

	// CancelOrder cancela por ID una orden que está en el book.
	CancelOrder(ctx context.Context, orderID string) error
}

// OrderJournal persiste las órdenes que coloca un ejecutor para que un reinicio
// recupere las que siguen en el book.
type OrderJournal interface {
	SaveOrder(ctx context.Context, o domain.PlacedOrder) error
	MarkOrderCancelled(ctx context.Context, orderID string, at time.Time) error
	GetOpenOrders(ctx context.Context, tokenID string) ([]domain.PlacedOrder, error)
}
