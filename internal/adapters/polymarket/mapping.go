package polymarket

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyslip/internal/domain"
)

// mapRawBook convierte la respuesta de la API a un domain.RawBook.
// No ordena ni filtra niveles: eso lo hace el normalizador, que además
// es quien rechaza precios o tamaños ilegibles.
func mapRawBook(r orderBookResponse, now time.Time) domain.RawBook {
	return domain.RawBook{
		TokenID:   r.AssetID,
		Bids:      mapRawLevels(r.Bids),
		Asks:      mapRawLevels(r.Asks),
		Timestamp: parseTimestamp(r.Timestamp, now),
	}
}

func mapRawLevels(raw []bookEntryRaw) []domain.RawLevel {
	levels := make([]domain.RawLevel, len(raw))
	for i, r := range raw {
		levels[i] = domain.RawLevel{Price: r.Price, Size: r.Size}
	}
	return levels
}

// parseTimestamp interpreta el timestamp del CLOB (ms unix). Si falta o no es
// numérico se usa el instante de recepción.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.UnixMilli(ms).UTC()
}

// applyLevelChange devuelve una copia del book con el nivel actualizado. No
// modifica los slices originales: FetchOrderBook puede haberlos entregado ya.
func applyLevelChange(book domain.RawBook, ch priceChangeRaw) (domain.RawBook, error) {
	size, err := strconv.ParseFloat(ch.Size, 64)
	if err != nil {
		return book, fmt.Errorf("size %q: %w", ch.Size, err)
	}
	price, err := strconv.ParseFloat(ch.Price, 64)
	if err != nil {
		return book, fmt.Errorf("price %q: %w", ch.Price, err)
	}

	switch strings.ToUpper(ch.Side) {
	case "BUY":
		book.Bids = replaceLevel(book.Bids, ch, price, size == 0)
	case "SELL":
		book.Asks = replaceLevel(book.Asks, ch, price, size == 0)
	default:
		return book, fmt.Errorf("unknown side %q", ch.Side)
	}
	return book, nil
}

func replaceLevel(levels []domain.RawLevel, ch priceChangeRaw, price float64, remove bool) []domain.RawLevel {
	out := make([]domain.RawLevel, 0, len(levels)+1)
	found := false
	for _, l := range levels {
		if !samePrice(l.Price, ch.Price, price) {
			out = append(out, l)
			continue
		}
		// Los duplicados de un mismo precio colapsan en el nuevo total
		if !found && !remove {
			out = append(out, domain.RawLevel{Price: l.Price, Size: ch.Size})
		}
		found = true
	}
	if !found && !remove {
		out = append(out, domain.RawLevel{Price: ch.Price, Size: ch.Size})
	}
	return out
}

// samePrice compara "0.5" con "0.50" sin pasar por decimal.
func samePrice(raw, changed string, changedF float64) bool {
	if raw == changed {
		return true
	}
	f, err := strconv.ParseFloat(raw, 64)
	return err == nil && f == changedF
}
