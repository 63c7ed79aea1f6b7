package analyzer

import (
	"fmt"
	"slices"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	sideBid = "bid"
	sideAsk = "ask"
)

// Límites de un valor numérico del feed. Fuera de ellos, comparar o sumar
// decimales obliga a reescalar big.Ints enormes y rompe el presupuesto de latencia.
const (
	maxRawLen   = 64
	maxExponent = 18
	maxDigits   = 36
)

// NormalizeRaw normaliza un RawBook completo conservando su TokenID.
func NormalizeRaw(raw domain.RawBook) (domain.OrderBook, error) {
	book, err := Normalize(raw.Bids, raw.Asks, raw.Timestamp)
	if err != nil {
		return domain.OrderBook{}, err
	}
	book.TokenID = raw.TokenID
	return book, nil
}

// Normalize valida y reestructura un snapshot crudo en un OrderBook canónico:
// niveles parseados a decimal, precios duplicados fusionados sumando tamaño,
// niveles sin tamaño descartados y cada lado ordenado mejor precio primero.
//
// Errores (*domain.BookError): ParseFailure, EmptyBook y CrossedBook, en ese orden de chequeo.
func Normalize(rawBids, rawAsks []domain.RawLevel, ts time.Time) (domain.OrderBook, error) {
	bids, err := normalizeSide(rawBids, sideBid)
	if err != nil {
		return domain.OrderBook{}, err
	}
	asks, err := normalizeSide(rawAsks, sideAsk)
	if err != nil {
		return domain.OrderBook{}, err
	}

	if len(bids) == 0 {
		return domain.OrderBook{}, domain.NewEmptyBook(sideBid)
	}
	if len(asks) == 0 {
		return domain.OrderBook{}, domain.NewEmptyBook(sideAsk)
	}

	// Un book cruzado o bloqueado es corrupción del feed o una carrera, no un estado operable
	if bids[0].Price.GreaterThanOrEqual(asks[0].Price) {
		return domain.OrderBook{}, domain.NewCrossedBook(bids[0].Price.String(), asks[0].Price.String())
	}

	return domain.OrderBook{
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
	}, nil
}

// normalizeSide parsea, ordena (bids desc, asks asc) y fusiona los niveles de un lado.
func normalizeSide(raw []domain.RawLevel, side string) (domain.OrderBookSide, error) {
	levels := make(domain.OrderBookSide, 0, len(raw))
	for i, r := range raw {
		lvl, err := parseLevel(r, side, i)
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}

	slices.SortStableFunc(levels, func(a, b domain.PriceLevel) int {
		if side == sideBid {
			return b.Price.Cmp(a.Price)
		}
		return a.Price.Cmp(b.Price)
	})

	merged := levels[:0]
	for _, l := range levels {
		if n := len(merged); n > 0 && merged[n-1].Price.Equal(l.Price) {
			merged[n-1].Size = merged[n-1].Size.Add(l.Size)
			continue
		}
		merged = append(merged, l)
	}

	out := merged[:0]
	for _, l := range merged {
		if l.Size.IsZero() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func parseLevel(r domain.RawLevel, side string, idx int) (domain.PriceLevel, error) {
	price, err := parseBounded(r.Price)
	if err != nil {
		return domain.PriceLevel{}, domain.NewParseFailure(side, err, "level %d: price %q", idx, truncate(r.Price))
	}
	size, err := parseBounded(r.Size)
	if err != nil {
		return domain.PriceLevel{}, domain.NewParseFailure(side, err, "level %d: size %q", idx, truncate(r.Size))
	}
	if !price.IsPositive() {
		return domain.PriceLevel{}, domain.NewParseFailure(side, nil, "level %d: price %s must be > 0", idx, price)
	}
	if size.IsNegative() {
		return domain.PriceLevel{}, domain.NewParseFailure(side, nil, "level %d: size %s must be >= 0", idx, size)
	}
	return domain.PriceLevel{Price: price, Size: size}, nil
}

// parseBounded parsea un decimal rechazando longitudes, exponentes y precisiones
// que ningún feed real produce.
func parseBounded(s string) (decimal.Decimal, error) {
	if len(s) > maxRawLen {
		return decimal.Decimal{}, fmt.Errorf("%d chars exceeds %d", len(s), maxRawLen)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if exp := d.Exponent(); exp < -maxExponent || exp > maxExponent {
		return decimal.Decimal{}, fmt.Errorf("exponent %d out of [-%d, %d]", exp, maxExponent, maxExponent)
	}
	if n := d.NumDigits(); n > maxDigits {
		return decimal.Decimal{}, fmt.Errorf("%d digits exceeds %d", n, maxDigits)
	}
	return d, nil
}

func truncate(s string) string {
	if len(s) <= maxRawLen {
		return s
	}
	return s[:maxRawLen] + "..."
}
