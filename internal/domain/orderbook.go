package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// RawLevel es un nivel de precio tal como llega del feed (strings para no perder precisión).
type RawLevel struct {
	Price string
	Size  string
}

// RawLevelFromFloat construye un RawLevel a partir de valores float del feed.
// NaN e Inf se serializan como texto no numérico y el normalizador los rechaza.
func RawLevelFromFloat(price, size float64) RawLevel {
	return RawLevel{
		Price: strconv.FormatFloat(price, 'f', -1, 64),
		Size:  strconv.FormatFloat(size, 'f', -1, 64),
	}
}

// RawBook es el snapshot sin validar de un token, tal como lo entrega un BookProvider.
type RawBook struct {
	TokenID   string
	Bids      []RawLevel
	Asks      []RawLevel
	Timestamp time.Time
}

// PriceLevel es un nivel de precio normalizado. Price > 0, Size >= 0.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBookSide es un lado del libro, mejor precio primero y sin precios duplicados.
type OrderBookSide []PriceLevel

// Top devuelve los primeros n niveles (o todos si hay menos).
func (s OrderBookSide) Top(n int) OrderBookSide {
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

// Volume suma el tamaño de todos los niveles del lado.
func (s OrderBookSide) Volume() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s {
		total = total.Add(l.Size)
	}
	return total
}

// OrderBook es el libro normalizado de un token.
// Se construye solo vía Normalize y no se modifica después.
type OrderBook struct {
	TokenID   string
	Bids      OrderBookSide // ordenados mayor a menor precio
	Asks      OrderBookSide // ordenados menor a mayor precio
	Timestamp time.Time
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() decimal.Decimal {
	if len(ob.Bids) == 0 {
		return decimal.Zero
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() decimal.Decimal {
	if len(ob.Asks) == 0 {
		return decimal.Zero
	}
	return ob.Asks[0].Price
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (ob OrderBook) Midpoint() decimal.Decimal {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2))
}

// Spread devuelve el spread crudo del book (ask - bid).
func (ob OrderBook) Spread() decimal.Decimal {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return ask.Sub(bid)
}
