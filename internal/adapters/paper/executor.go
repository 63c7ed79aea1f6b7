// Package paper simula la ejecución de órdenes límite: las órdenes se aceptan
// y se quedan "en el book" hasta que el bot las cancela. No hay fills.
package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/alejandrodnm/polyslip/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Executor implementa ports.OrderExecutor en memoria. Si tiene journal,
// cada orden colocada y cancelada queda registrada.
type Executor struct {
	journal ports.OrderJournal
	now     func() time.Time

	mu   sync.Mutex
	open map[string]domain.PlacedOrder
}

// NewExecutor crea un Executor. journal puede ser nil.
func NewExecutor(journal ports.OrderJournal) *Executor {
	return &Executor{
		journal: journal,
		now:     func() time.Time { return time.Now().UTC() },
		open:    make(map[string]domain.PlacedOrder),
	}
}

// PlaceOrder acepta la orden si es coherente: lado definido, precio en (0, 1)
// y tamaño positivo.
func (e *Executor) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	if err := validate(req); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceOrder: %w", err)
	}

	order := domain.PlacedOrder{
		ID:       uuid.New().String(),
		TokenID:  req.TokenID,
		Side:     req.Side,
		Price:    req.Price,
		Size:     req.Size,
		PlacedAt: e.now(),
	}

	if e.journal != nil {
		if err := e.journal.SaveOrder(ctx, order); err != nil {
			return domain.PlacedOrder{}, fmt.Errorf("paper.PlaceOrder: journal: %w", err)
		}
	}

	e.mu.Lock()
	e.open[order.ID] = order
	e.mu.Unlock()

	slog.Info("paper order placed",
		"id", order.ID,
		"side", order.Side,
		"price", order.Price.StringFixed(4),
		"size", order.Size.String(),
		"reason", req.Reason,
	)
	return order, nil
}

// CancelOrder retira una orden abierta.
func (e *Executor) CancelOrder(ctx context.Context, orderID string) error {
	e.mu.Lock()
	order, ok := e.open[orderID]
	if ok {
		delete(e.open, orderID)
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("paper.CancelOrder %s: %w", orderID, domain.ErrOrderNotFound)
	}

	if e.journal != nil {
		if err := e.journal.MarkOrderCancelled(ctx, orderID, e.now()); err != nil {
			slog.Warn("paper: journal cancel failed", "id", orderID, "err", err)
		}
	}

	slog.Info("paper order cancelled", "id", orderID, "side", order.Side, "price", order.Price.StringFixed(4))
	return nil
}

// OpenOrders devuelve las órdenes abiertas, la más antigua primero.
func (e *Executor) OpenOrders() []domain.PlacedOrder {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]domain.PlacedOrder, 0, len(e.open))
	for _, o := range e.open {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].PlacedAt.Before(orders[j].PlacedAt)
	})
	return orders
}

// Restore recarga desde el journal las órdenes que quedaron abiertas para un
// token (p.ej. tras un reinicio) y las devuelve.
func (e *Executor) Restore(ctx context.Context, tokenID string) ([]domain.PlacedOrder, error) {
	if e.journal == nil {
		return nil, nil
	}
	orders, err := e.journal.GetOpenOrders(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("paper.Restore: %w", err)
	}

	e.mu.Lock()
	for _, o := range orders {
		e.open[o.ID] = o
	}
	e.mu.Unlock()

	if len(orders) > 0 {
		slog.Info("paper orders restored", "token", tokenID, "count", len(orders))
	}
	return orders, nil
}

func validate(req domain.OrderRequest) error {
	switch {
	case req.TokenID == "":
		return errors.New("missing token id")
	case req.Side == domain.DirectionNone:
		return errors.New("order side not set")
	case !req.Price.IsPositive() || req.Price.GreaterThanOrEqual(one):
		return fmt.Errorf("price %s outside (0, 1)", req.Price)
	case !req.Size.IsPositive():
		return fmt.Errorf("size %s must be positive", req.Size)
	}
	return nil
}
