package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
)

const orderSchema = `
CREATE TABLE IF NOT EXISTS paper_orders (
    id            TEXT PRIMARY KEY,
    token_id      TEXT    NOT NULL,
    side          TEXT    NOT NULL,
    price         TEXT    NOT NULL,
    size          TEXT    NOT NULL,
    placed_at     INTEGER NOT NULL,
    status        TEXT    NOT NULL DEFAULT 'OPEN',
    cancelled_at  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_paper_open ON paper_orders(token_id, status);
`

const (
	orderStatusOpen      = "OPEN"
	orderStatusCancelled = "CANCELLED"
)

// SaveOrder registra una orden recién colocada como OPEN.
func (s *SQLiteStorage) SaveOrder(ctx context.Context, o domain.PlacedOrder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_orders (id, token_id, side, price, size, placed_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		o.ID, o.TokenID, o.Side.String(), o.Price.String(), o.Size.String(),
		unixNano(o.PlacedAt), orderStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOrder: %s: %w", o.ID, err)
	}
	return nil
}

// MarkOrderCancelled cierra una orden. Cancelar una orden desconocida o ya
// cerrada no es un error.
func (s *SQLiteStorage) MarkOrderCancelled(ctx context.Context, orderID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE paper_orders SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`,
		orderStatusCancelled, unixNano(at), orderID, orderStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkOrderCancelled: %s: %w", orderID, err)
	}
	return nil
}

// GetOpenOrders devuelve las órdenes OPEN de un token, la más antigua primero.
func (s *SQLiteStorage) GetOpenOrders(ctx context.Context, tokenID string) ([]domain.PlacedOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token_id, side, price, size, placed_at
		FROM paper_orders
		WHERE token_id = ? AND status = ?
		ORDER BY placed_at ASC
	`, tokenID, orderStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenOrders: query: %w", err)
	}
	defer rows.Close()

	var orders []domain.PlacedOrder
	for rows.Next() {
		var (
			o        domain.PlacedOrder
			side     string
			placedAt int64
		)
		if err := rows.Scan(&o.ID, &o.TokenID, &side, &o.Price, &o.Size, &placedAt); err != nil {
			return nil, fmt.Errorf("storage.GetOpenOrders: scan row: %w", err)
		}
		o.Side = domain.ParseDirection(side)
		o.PlacedAt = time.Unix(0, placedAt).UTC()
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
