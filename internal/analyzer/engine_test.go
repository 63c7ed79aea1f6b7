package analyzer_test

import (
	"math"
	"testing"

	"github.com/alejandrodnm/polyslip/internal/analyzer"
	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioConfig son los parámetros del escenario de referencia.
func scenarioConfig() domain.AnalysisConfig {
	cfg := domain.DefaultAnalysisConfig()
	cfg.PriceLevels = 2
	cfg.MinSpread = dec("0.01")
	cfg.SpreadMultiplier = 1.5
	cfg.VolumeThreshold = 0.4
	cfg.ImbalanceThreshold = 1.5
	return cfg
}

func mustBook(t *testing.T, bids, asks []domain.RawLevel) domain.OrderBook {
	t.Helper()
	book, err := analyzer.Normalize(bids, asks, ts)
	require.NoError(t, err)
	return book
}

func TestEvaluate_FavorableBidImbalance(t *testing.T) {
	book := mustBook(t,
		levels("0.50", "100", "0.49", "50"),
		levels("0.51", "20", "0.52", "80"),
	)
	cfg := scenarioConfig()

	sig := analyzer.Evaluate(book, cfg)

	assert.True(t, dec("150").Equal(sig.BidVolume))
	assert.True(t, dec("100").Equal(sig.AskVolume))
	assert.InDelta(t, 1.5, sig.VolumeImbalance, 1e-12)
	assert.InDelta(t, 0.01, sig.EffectiveSpread, 1e-12)
	assert.InDelta(t, 0.01, sig.RawSpread, 1e-12)
	// (125 - 60) / 185
	assert.InDelta(t, 65.0/185.0, sig.PricePressure, 1e-9)
	assert.InDelta(t, 100.0/150.0, sig.BidConcentration, 1e-9)
	assert.InDelta(t, 0.2, sig.AskConcentration, 1e-9)
	assert.InDelta(t, 100.0/150.0, sig.Concentration, 1e-9)
	assert.InDelta(t, 0.01/0.505, sig.SpreadPct, 1e-9)
	assert.Equal(t, domain.DirectionBuy, sig.Direction)
	assert.Equal(t, domain.ConditionFavorable, sig.Condition)
	assert.Equal(t, ts, sig.ComputedAt)
	assert.True(t, dec("0.49").Equal(sig.QuoteBid), "segundo nivel de bids")
	assert.True(t, dec("0.52").Equal(sig.QuoteAsk), "segundo nivel de asks")

	d := analyzer.Decide(sig, dec("50"), cfg)
	assert.True(t, d.ShouldTrade)
	assert.Equal(t, domain.ReasonImbalance, d.Reason)
	assert.Equal(t, domain.DirectionBuy, d.Side)
	assert.True(t, d.LimitPrice.GreaterThanOrEqual(dec("0.50")))
	assert.True(t, d.LimitPrice.LessThanOrEqual(dec("0.51")))
	assert.True(t, dec("0.505").Equal(d.LimitPrice), "best ask - spread/2, got %s", d.LimitPrice)
	assert.True(t, dec("50").Equal(d.Size))
}

func TestEvaluate_WideThinMarketIsUnfavorable(t *testing.T) {
	// spread 0.05 > 1.5 × 0.01 y 95% del volumen top-N en el mejor nivel
	book := mustBook(t,
		levels("0.45", "95", "0.44", "5"),
		levels("0.50", "95", "0.51", "5"),
	)
	cfg := scenarioConfig()

	sig := analyzer.Evaluate(book, cfg)
	assert.InDelta(t, 0.05, sig.EffectiveSpread, 1e-12)
	assert.InDelta(t, 0.95, sig.Concentration, 1e-12)
	assert.Equal(t, domain.ConditionUnfavorable, sig.Condition)

	d := analyzer.Decide(sig, dec("10"), cfg)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, domain.ReasonSpreadTooWide, d.Reason)
	assert.True(t, d.Size.IsZero())
}

func TestEvaluate_UnfavorableWinsTie(t *testing.T) {
	// Fuerte dominancia compradora, pero el mercado es ancho y fino
	book := mustBook(t,
		levels("0.40", "1000", "0.39", "10"),
		levels("0.50", "95", "0.51", "5"),
	)
	cfg := scenarioConfig()

	sig := analyzer.Evaluate(book, cfg)
	assert.Equal(t, domain.DirectionBuy, sig.Direction)
	assert.Equal(t, domain.ConditionUnfavorable, sig.Condition)
}

func TestDecide_FavorableButSpreadTooWide(t *testing.T) {
	// Concentración baja: no es Unfavorable, pero el spread no permite operar
	book := mustBook(t,
		levels("0.40", "100", "0.39", "100"),
		levels("0.45", "10", "0.46", "10"),
	)
	cfg := scenarioConfig()

	sig := analyzer.Evaluate(book, cfg)
	require.Equal(t, domain.ConditionFavorable, sig.Condition)

	d := analyzer.Decide(sig, dec("10"), cfg)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, domain.ReasonSpreadTooWide, d.Reason)
}

func TestEvaluate_SubMinimumSpreadIsFloored(t *testing.T) {
	book := mustBook(t,
		levels("0.500", "300", "0.499", "10"),
		levels("0.505", "50", "0.506", "50"),
	)
	cfg := scenarioConfig()

	sig := analyzer.Evaluate(book, cfg)
	assert.InDelta(t, 0.005, sig.RawSpread, 1e-12)
	assert.GreaterOrEqual(t, sig.EffectiveSpread, cfg.MinSpread.InexactFloat64())

	d := analyzer.Decide(sig, dec("10"), cfg)
	require.True(t, d.ShouldTrade)
	// El ajuste no sale del spread crudo
	assert.True(t, d.LimitPrice.GreaterThanOrEqual(sig.BestBid))
	assert.True(t, d.LimitPrice.LessThanOrEqual(sig.BestAsk))
}

func TestEvaluate_SellSide(t *testing.T) {
	book := mustBook(t,
		levels("0.50", "20", "0.49", "10"),
		levels("0.51", "200", "0.52", "100"),
	)
	cfg := scenarioConfig()

	sig := analyzer.Evaluate(book, cfg)
	assert.Less(t, sig.VolumeImbalance, 1/cfg.ImbalanceThreshold)
	assert.Less(t, sig.PricePressure, 0.0)
	assert.Equal(t, domain.DirectionSell, sig.Direction)
	require.Equal(t, domain.ConditionFavorable, sig.Condition)

	d := analyzer.Decide(sig, dec("1000"), cfg)
	require.True(t, d.ShouldTrade)
	assert.Equal(t, domain.DirectionSell, d.Side)
	assert.True(t, dec("0.505").Equal(d.LimitPrice), "best bid + spread/2, got %s", d.LimitPrice)
	// Limitado por la liquidez top-N de los bids
	assert.True(t, dec("30").Equal(d.Size))
}

func TestEvaluate_ThinOpposingSide(t *testing.T) {
	book := mustBook(t,
		levels("0.50", "100", "0.49", "50"),
		levels("0.51", "20", "0.52", "80"),
	)
	cfg := scenarioConfig()
	cfg.VolumeThreshold = 500

	sig := analyzer.Evaluate(book, cfg)
	assert.Equal(t, domain.DirectionBuy, sig.Direction)
	assert.Equal(t, domain.ConditionNeutral, sig.Condition)

	d := analyzer.Decide(sig, dec("10"), cfg)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, domain.ReasonThinBook, d.Reason)
}

func TestEvaluate_BalancedBookIsNeutral(t *testing.T) {
	book := mustBook(t,
		levels("0.50", "100", "0.49", "100"),
		levels("0.51", "100", "0.52", "100"),
	)
	cfg := scenarioConfig()

	sig := analyzer.Evaluate(book, cfg)
	assert.InDelta(t, 1.0, sig.VolumeImbalance, 1e-12)
	assert.InDelta(t, 0.0, sig.PricePressure, 1e-12)
	assert.Equal(t, domain.DirectionNone, sig.Direction)
	assert.Equal(t, domain.ConditionNeutral, sig.Condition)

	d := analyzer.Decide(sig, dec("10"), cfg)
	assert.False(t, d.ShouldTrade)
	assert.Equal(t, domain.ReasonNeutral, d.Reason)
}

func TestEvaluate_IgnoresLevelsBeyondN(t *testing.T) {
	cfg := scenarioConfig()
	shallow := mustBook(t,
		levels("0.50", "100", "0.49", "50"),
		levels("0.51", "20", "0.52", "80"),
	)
	deep := mustBook(t,
		levels("0.50", "100", "0.49", "50", "0.48", "100000"),
		levels("0.51", "20", "0.52", "80", "0.53", "7", "0.60", "99999"),
	)

	a := analyzer.Evaluate(shallow, cfg)
	b := analyzer.Evaluate(deep, cfg)
	assert.Equal(t, a.VolumeImbalance, b.VolumeImbalance)
	assert.Equal(t, a.PricePressure, b.PricePressure)
	assert.Equal(t, a.Concentration, b.Concentration)
	assert.Equal(t, a.Condition, b.Condition)
}

func TestEvaluate_ImbalanceAlwaysFinite(t *testing.T) {
	cfg := scenarioConfig()
	books := []domain.OrderBook{
		mustBook(t, levels("0.50", "100"), levels("0.51", "0.000001")),
		mustBook(t, levels("0.50", "0.000001"), levels("0.51", "100000")),
		// Construido a mano: ask sin tamaño, el motor no debe dividir por cero
		{
			Bids: domain.OrderBookSide{{Price: dec("0.50"), Size: dec("100")}},
			Asks: domain.OrderBookSide{{Price: dec("0.51"), Size: dec("0")}},
		},
		{},
	}

	for i, book := range books {
		sig := analyzer.Evaluate(book, cfg)
		assert.GreaterOrEqual(t, sig.VolumeImbalance, 0.0, "book %d", i)
		assert.False(t, math.IsInf(sig.VolumeImbalance, 0), "book %d", i)
		assert.False(t, math.IsNaN(sig.VolumeImbalance), "book %d", i)
		assert.False(t, math.IsNaN(sig.PricePressure), "book %d", i)
		assert.LessOrEqual(t, math.Abs(sig.PricePressure), 1.0, "book %d", i)
		assert.GreaterOrEqual(t, sig.EffectiveSpread, cfg.MinSpread.InexactFloat64(), "book %d", i)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	book := mustBook(t,
		levels("0.50", "100", "0.49", "50", "0.47", "12.5"),
		levels("0.51", "20", "0.52", "80", "0.55", "3"),
	)
	cfg := scenarioConfig()
	cfg.PriceLevels = 3

	a := analyzer.Evaluate(book, cfg)
	b := analyzer.Evaluate(book, cfg)

	assert.Equal(t, math.Float64bits(a.VolumeImbalance), math.Float64bits(b.VolumeImbalance))
	assert.Equal(t, math.Float64bits(a.PricePressure), math.Float64bits(b.PricePressure))
	assert.Equal(t, math.Float64bits(a.EffectiveSpread), math.Float64bits(b.EffectiveSpread))
	assert.Equal(t, math.Float64bits(a.Concentration), math.Float64bits(b.Concentration))
	assert.Equal(t, a.Condition, b.Condition)
	assert.Equal(t, a.Direction, b.Direction)
	assert.Equal(t, a.ComputedAt, b.ComputedAt)
	assert.True(t, a.BidVolume.Equal(b.BidVolume))
	assert.True(t, a.AskVolume.Equal(b.AskVolume))
}

func TestDecide_SizeNeverExceedsDesiredOrDepth(t *testing.T) {
	book := mustBook(t,
		levels("0.50", "100", "0.49", "50"),
		levels("0.51", "20", "0.52", "80"),
	)
	cfg := scenarioConfig()
	sig := analyzer.Evaluate(book, cfg)

	for _, desired := range []string{"0", "-5", "0.5", "99.99", "100", "100.01", "1e6"} {
		d := analyzer.Decide(sig, dec(desired), cfg)
		assert.True(t, d.Size.LessThanOrEqual(sig.AskVolume), "desired=%s", desired)
		if dec(desired).IsPositive() {
			assert.True(t, d.Size.LessThanOrEqual(dec(desired)), "desired=%s", desired)
			assert.True(t, d.ShouldTrade, "desired=%s", desired)
		} else {
			assert.False(t, d.ShouldTrade, "desired=%s", desired)
			assert.Equal(t, domain.ReasonThinBook, d.Reason)
			assert.True(t, d.Size.IsZero())
		}
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	a := analyzer.New(scenarioConfig(), dec("25"))

	sig, d, err := a.Analyze(domain.RawBook{
		TokenID:   "tok",
		Bids:      levels("0.49", "50", "0.50", "100"),
		Asks:      levels("0.52", "80", "0.51", "20"),
		Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", sig.TokenID)
	assert.Equal(t, domain.ConditionFavorable, sig.Condition)
	assert.True(t, d.ShouldTrade)
	assert.True(t, dec("25").Equal(d.Size))

	_, _, err = a.Analyze(domain.RawBook{Bids: levels("0.52", "1"), Asks: levels("0.51", "1")})
	assert.ErrorIs(t, err, domain.ErrCrossedBook)
}

func TestEvaluate_QuoteFallsBackToBestLevel(t *testing.T) {
	book := mustBook(t, levels("0.50", "10"), levels("0.51", "10", "0.55", "1"))
	sig := analyzer.Evaluate(book, scenarioConfig())
	assert.True(t, dec("0.50").Equal(sig.QuoteBid))
	assert.True(t, dec("0.55").Equal(sig.QuoteAsk))
}
