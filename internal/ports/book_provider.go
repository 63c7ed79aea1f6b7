package ports

import (
	"context"

	"github.com/alejandrodnm/polyslip/internal/domain"
)

// BookProvider obtiene el snapshot crudo del orderbook de un token.
// No valida nada: la normalización es cosa del analizador.
type BookProvider interface {
	FetchOrderBook(ctx context.Context, tokenID string) (domain.RawBook, error)
}

// PriceProvider expone los precios de referencia del CLOB.
type PriceProvider interface {
	// LastTradePrice devuelve el precio del último trade del token.
	LastTradePrice(ctx context.Context, tokenID string) (float64, error)
	// Midpoint devuelve el punto medio publicado por el CLOB.
	Midpoint(ctx context.Context, tokenID string) (float64, error)
}
