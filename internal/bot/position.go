package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/shopspring/decimal"
)

// sides fija el orden de iteración sobre las órdenes en el book.
var sides = [...]domain.Direction{domain.DirectionBuy, domain.DirectionSell}

// quoteSplit reparte las shares del presupuesto entre los dos lados con un
// pequeño margen para fees.
var quoteSplit = decimal.RequireFromString("2.05")

// target es la orden que debería haber en un lado del book.
type target struct {
	price decimal.Decimal
	size  decimal.Decimal
}

// manage alinea las órdenes en el book con la evaluación: en modo direccional
// como mucho una orden en el lado de la señal; en modo quote una por lado.
func (b *Bot) manage(ctx context.Context, eval domain.Evaluation) {
	d := eval.Decision

	want := make(map[domain.Direction]target, 2)
	if d.ShouldTrade {
		switch b.cfg.Mode {
		case ModeQuote:
			want[domain.DirectionBuy] = target{price: eval.Signal.QuoteBid}
			want[domain.DirectionSell] = target{price: eval.Signal.QuoteAsk}
		default:
			want[d.Side] = target{price: d.LimitPrice, size: d.Size}
		}
	}

	// Primero retirar lo que sobra o quedó mal puesto
	for _, o := range b.Orders() {
		t, keep := want[o.Side]
		switch {
		case !d.ShouldTrade:
			b.cancelResting(ctx, o.Side, d.Reason)
		case !keep:
			b.cancelResting(ctx, o.Side, "side changed")
		case !t.price.Equal(o.Price):
			slog.Info("repricing resting order",
				"side", o.Side,
				"from", o.Price.StringFixed(4),
				"to", t.price.StringFixed(4),
			)
			b.cancelResting(ctx, o.Side, "reprice")
		}
	}

	// Alguna cancelación falló: no duplicar exposición
	for _, o := range b.Orders() {
		if t, ok := want[o.Side]; !ok || !t.price.Equal(o.Price) {
			return
		}
	}

	var missing []domain.Direction
	for _, side := range sides {
		if _, ok := want[side]; !ok {
			continue
		}
		if _, resting := b.resting[side]; !resting {
			missing = append(missing, side)
		}
	}
	if len(missing) == 0 {
		return
	}

	if b.cfg.Mode == ModeQuote {
		size := b.quoteSize(ctx, eval)
		if !size.IsPositive() {
			slog.Warn("quote size is zero, not quoting", "budget", b.cfg.QuoteBudget)
			return
		}
		for side, t := range want {
			t.size = size
			want[side] = t
		}
	}

	for _, side := range missing {
		t := want[side]
		b.place(ctx, eval, domain.OrderRequest{
			TokenID: eval.TokenID,
			Side:    side,
			Price:   t.price,
			Size:    t.size,
			Reason:  d.Reason,
		})
	}
}

// quoteSize convierte el presupuesto en shares por lado:
// floor(budget / (último precio + slip)) / quoteSplit, truncado a 2 decimales.
// Sin último trade disponible se usa el midpoint del book.
func (b *Bot) quoteSize(ctx context.Context, eval domain.Evaluation) decimal.Decimal {
	ref := eval.Signal.Midpoint
	if b.deps.Prices != nil {
		last, err := b.deps.Prices.LastTradePrice(ctx, b.cfg.TokenID)
		switch {
		case err != nil:
			slog.Warn("last trade price unavailable, sizing on book midpoint", "err", err)
		case last > 0:
			ref = decimal.NewFromFloat(last)
		}
	}

	unit := ref.Add(b.cfg.SpreadSlip)
	if !unit.IsPositive() {
		return decimal.Zero
	}
	shares := b.cfg.QuoteBudget.Div(unit).Floor()
	return shares.Div(quoteSplit).Truncate(2)
}

func (b *Bot) place(ctx context.Context, eval domain.Evaluation, req domain.OrderRequest) {
	order, err := b.deps.Executor.PlaceOrder(ctx, req)
	if err != nil {
		slog.Warn("place order failed", "side", req.Side, "err", err)
		b.alert(ctx, domain.Alert{Kind: domain.AlertError, Title: "place order failed", Message: err.Error()})
		return
	}
	b.resting[order.Side] = order
	b.stats.Orders++
	b.alert(ctx, domain.Alert{
		Kind:       domain.AlertOrder,
		Title:      fmt.Sprintf("%s %s @ %s", order.Side, order.Size, order.Price.StringFixed(4)),
		Message:    "order " + order.ID,
		Evaluation: &eval,
	})
}

func (b *Bot) cancelResting(ctx context.Context, side domain.Direction, reason string) {
	o, ok := b.resting[side]
	if !ok {
		return
	}
	err := b.deps.Executor.CancelOrder(ctx, o.ID)
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
		slog.Warn("cancel order failed", "id", o.ID, "err", err)
		b.alert(ctx, domain.Alert{Kind: domain.AlertError, Title: "cancel order failed", Message: err.Error()})
		return
	}
	delete(b.resting, side)
	if err != nil {
		// Ya no estaba en el book (fill o cancelación externa)
		slog.Info("resting order already gone", "id", o.ID)
		return
	}
	b.stats.Cancels++
	b.alert(ctx, domain.Alert{
		Kind:    domain.AlertCancel,
		Title:   fmt.Sprintf("cancelled %s %s @ %s", o.Side, o.Size, o.Price.StringFixed(4)),
		Message: "reason: " + reason,
	})
}

// restore adopta las órdenes abiertas más recientes que dejó una ejecución
// anterior (una en modo direccional, una por lado en modo quote) y cancela el resto.
func (b *Bot) restore(ctx context.Context) {
	r, ok := b.deps.Executor.(restorer)
	if !ok || b.cfg.DryRun {
		return
	}
	orders, err := r.Restore(ctx, b.cfg.TokenID)
	if err != nil {
		slog.Warn("restore open orders failed", "err", err)
		return
	}

	// orders viene de más antigua a más reciente
	adopted := make(map[domain.Direction]domain.PlacedOrder, 2)
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		if _, taken := adopted[o.Side]; taken {
			continue
		}
		if b.cfg.Mode != ModeQuote && len(adopted) > 0 {
			continue
		}
		adopted[o.Side] = o
	}

	for _, o := range orders {
		if a, ok := adopted[o.Side]; ok && a.ID == o.ID {
			continue
		}
		if err := b.deps.Executor.CancelOrder(ctx, o.ID); err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			slog.Warn("cancel stale order failed", "id", o.ID, "err", err)
		}
	}
	for side, o := range adopted {
		b.resting[side] = o
		slog.Info("resting order restored", "id", o.ID, "side", o.Side, "price", o.Price.StringFixed(4))
	}
}
