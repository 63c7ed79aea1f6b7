package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrOrderNotFound indica que la orden ya no está abierta en el ejecutor.
var ErrOrderNotFound = errors.New("order not found")

// OrderRequest es lo que el bot pide al ejecutor: la orden direccional de una
// TradeDecision o uno de los dos lados de una cotización.
type OrderRequest struct {
	TokenID string
	Side    Direction
	Price   decimal.Decimal
	Size    decimal.Decimal
	Reason  string
}

// PlacedOrder es una orden aceptada por el ejecutor y todavía en el book.
type PlacedOrder struct {
	ID       string
	TokenID  string
	Side     Direction
	Price    decimal.Decimal
	Size     decimal.Decimal
	PlacedAt time.Time
}
