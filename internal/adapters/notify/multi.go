package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/alejandrodnm/polyslip/internal/ports"
)

// Multi reparte cada alerta entre varios notifiers. El fallo de uno no
// impide la entrega al resto; los errores se devuelven combinados.
type Multi struct {
	notifiers []ports.Notifier
}

// NewMulti crea un Multi. Los nil se ignoran.
func NewMulti(notifiers ...ports.Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len devuelve cuántos notifiers hay registrados.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify implementa ports.Notifier.
func (m *Multi) Notify(ctx context.Context, alert domain.Alert) error {
	var errs []error
	for i, n := range m.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			name := nameOf(n, i)
			slog.Warn("notifier failed", "notifier", name, "kind", alert.Kind, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notifier(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// named lo implementan los notifiers que se identifican en los logs.
type named interface {
	Name() string
}

func nameOf(n ports.Notifier, i int) string {
	if nn, ok := n.(named); ok {
		return nn.Name()
	}
	return fmt.Sprintf("notifier#%d", i)
}
