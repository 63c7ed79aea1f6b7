package analyzer_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/polyslip/internal/analyzer"
	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// levels construye niveles crudos a partir de pares precio, tamaño.
func levels(pairs ...string) []domain.RawLevel {
	out := make([]domain.RawLevel, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.RawLevel{Price: pairs[i], Size: pairs[i+1]})
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var ts = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func TestNormalize_SortsBestFirst(t *testing.T) {
	book, err := analyzer.Normalize(
		levels("0.48", "10", "0.50", "20", "0.49", "30"),
		levels("0.53", "5", "0.51", "6", "0.52", "7"),
		ts,
	)
	require.NoError(t, err)

	require.Len(t, book.Bids, 3)
	require.Len(t, book.Asks, 3)
	for i := 1; i < len(book.Bids); i++ {
		assert.True(t, book.Bids[i-1].Price.GreaterThan(book.Bids[i].Price), "bids: mayor a menor")
	}
	for i := 1; i < len(book.Asks); i++ {
		assert.True(t, book.Asks[i-1].Price.LessThan(book.Asks[i].Price), "asks: menor a mayor")
	}
	assert.True(t, dec("0.50").Equal(book.BestBid()))
	assert.True(t, dec("0.51").Equal(book.BestAsk()))
	assert.Equal(t, ts, book.Timestamp)
}

func TestNormalize_MergesDuplicatePrices(t *testing.T) {
	rawBids := levels("0.50", "10", "0.5", "5.5", "0.49", "1", "0.500", "4.5")
	book, err := analyzer.Normalize(rawBids, levels("0.51", "1"), ts)
	require.NoError(t, err)

	require.Len(t, book.Bids, 2)
	assert.True(t, dec("0.5").Equal(book.Bids[0].Price))
	assert.True(t, dec("20").Equal(book.Bids[0].Size), "10 + 5.5 + 4.5")
	assert.True(t, dec("1").Equal(book.Bids[1].Size))

	// Sin pérdida de volumen
	var rawTotal decimal.Decimal
	for _, r := range rawBids {
		rawTotal = rawTotal.Add(dec(r.Size))
	}
	assert.True(t, rawTotal.Equal(book.Bids.Volume()))
}

func TestNormalize_DropsZeroSizeLevels(t *testing.T) {
	book, err := analyzer.Normalize(
		levels("0.50", "0", "0.49", "10"),
		levels("0.51", "3", "0.52", "0"),
		ts,
	)
	require.NoError(t, err)
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)
	assert.True(t, dec("0.49").Equal(book.BestBid()))
}

func TestNormalize_ParseFailure(t *testing.T) {
	cases := []struct {
		name string
		bids []domain.RawLevel
		asks []domain.RawLevel
	}{
		{"non numeric price", levels("abc", "1"), levels("0.51", "1")},
		{"non numeric size", levels("0.50", "1"), levels("0.51", "lots")},
		{"negative size", levels("0.50", "-1"), levels("0.51", "1")},
		{"zero price", levels("0", "1"), levels("0.51", "1")},
		{"negative price", levels("0.50", "1"), levels("-0.51", "1")},
		{"empty string", levels("", "1"), levels("0.51", "1")},
		{"NaN float", []domain.RawLevel{domain.RawLevelFromFloat(math.NaN(), 1)}, levels("0.51", "1")},
		{"Inf float", levels("0.50", "1"), []domain.RawLevel{domain.RawLevelFromFloat(0.51, math.Inf(1))}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := analyzer.Normalize(tc.bids, tc.asks, ts)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrParseFailure)
			assert.NotErrorIs(t, err, domain.ErrCrossedBook)

			var be *domain.BookError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, domain.ParseFailure, be.Kind)
		})
	}
}

func TestNormalize_RejectsExtremeMagnitudes(t *testing.T) {
	cases := []struct {
		name string
		bids []domain.RawLevel
		asks []domain.RawLevel
	}{
		{"tiny price exponent", levels("1e-30000000", "1"), levels("0.51", "1")},
		{"tiny size exponent", levels("0.50", "1e-30000000"), levels("0.51", "1")},
		{"huge price exponent", levels("0.50", "1"), levels("1e400", "1")},
		{"huge size exponent", levels("0.50", "1"), levels("0.51", "5e19")},
		{"too many digits", levels("0.50", "1234567890123456789012345678901234567"), levels("0.51", "1")},
		{"too long", levels("0."+strings.Repeat("0", 100)+"1", "1"), levels("0.51", "1")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := time.Now()
			_, err := analyzer.Normalize(tc.bids, tc.asks, ts)
			elapsed := time.Since(start)

			assert.ErrorIs(t, err, domain.ErrParseFailure)
			assert.Less(t, elapsed, 50*time.Millisecond)
		})
	}

	// Dentro de los límites sigue funcionando
	book, err := analyzer.Normalize(levels("0.000001", "1e6"), levels("0.51", "1"), ts)
	require.NoError(t, err)
	assert.True(t, dec("1000000").Equal(book.Bids.Volume()))
}

func TestNormalize_AcceptsFloatLevels(t *testing.T) {
	book, err := analyzer.Normalize(
		[]domain.RawLevel{domain.RawLevelFromFloat(0.5, 100), domain.RawLevelFromFloat(0.49, 50)},
		[]domain.RawLevel{domain.RawLevelFromFloat(0.51, 20)},
		ts,
	)
	require.NoError(t, err)
	assert.True(t, dec("0.5").Equal(book.BestBid()))
	assert.True(t, dec("150").Equal(book.Bids.Volume()))
}

func TestNormalize_EmptyBook(t *testing.T) {
	_, err := analyzer.Normalize(levels("0.50", "100", "0.49", "50"), nil, ts)
	assert.ErrorIs(t, err, domain.ErrEmptyBook)

	_, err = analyzer.Normalize(nil, levels("0.51", "1"), ts)
	assert.ErrorIs(t, err, domain.ErrEmptyBook)

	// Un lado con solo niveles vacíos cuenta como vacío
	_, err = analyzer.Normalize(levels("0.50", "1"), levels("0.51", "0"), ts)
	assert.ErrorIs(t, err, domain.ErrEmptyBook)
}

func TestNormalize_CrossedBook(t *testing.T) {
	_, err := analyzer.Normalize(levels("0.52", "10"), levels("0.51", "10"), ts)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCrossedBook)
	assert.Contains(t, err.Error(), "0.52")

	// Locked book (bid == ask) también se rechaza
	_, err = analyzer.Normalize(levels("0.51", "10"), levels("0.51", "10"), ts)
	assert.ErrorIs(t, err, domain.ErrCrossedBook)
}

func TestNormalizeRaw_KeepsTokenID(t *testing.T) {
	raw := domain.RawBook{
		TokenID:   "token_yes_001",
		Bids:      levels("0.50", "1"),
		Asks:      levels("0.51", "1"),
		Timestamp: ts,
	}
	book, err := analyzer.NormalizeRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "token_yes_001", book.TokenID)
	assert.Equal(t, ts, book.Timestamp)
}
