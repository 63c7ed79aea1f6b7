package analyzer_test

import (
	"testing"

	"github.com/alejandrodnm/polyslip/internal/analyzer"
	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/stretchr/testify/assert"
)

func sigOf(c domain.MarketCondition, d domain.Direction) domain.MarketSignal {
	return domain.MarketSignal{Condition: c, Direction: d}
}

func TestStabilize_RequiresConsecutiveFavorable(t *testing.T) {
	w := domain.NewSignalWindow(8)
	fav := sigOf(domain.ConditionFavorable, domain.DirectionBuy)

	assert.Equal(t, domain.ConditionNeutral, analyzer.Stabilize(w, fav, 3))
	assert.Equal(t, domain.ConditionNeutral, analyzer.Stabilize(w, fav, 3))
	assert.Equal(t, domain.ConditionFavorable, analyzer.Stabilize(w, fav, 3))
	assert.Equal(t, 3, w.Len())
}

func TestStabilize_NeutralBreaksStreak(t *testing.T) {
	w := domain.NewSignalWindow(8)
	fav := sigOf(domain.ConditionFavorable, domain.DirectionBuy)

	analyzer.Stabilize(w, fav, 2)
	assert.Equal(t, domain.ConditionNeutral, analyzer.Stabilize(w, sigOf(domain.ConditionNeutral, domain.DirectionNone), 2))
	assert.Equal(t, domain.ConditionNeutral, analyzer.Stabilize(w, fav, 2))
	assert.Equal(t, domain.ConditionFavorable, analyzer.Stabilize(w, fav, 2))
}

func TestStabilize_DirectionChangeBreaksStreak(t *testing.T) {
	w := domain.NewSignalWindow(4)

	analyzer.Stabilize(w, sigOf(domain.ConditionFavorable, domain.DirectionBuy), 2)
	got := analyzer.Stabilize(w, sigOf(domain.ConditionFavorable, domain.DirectionSell), 2)
	assert.Equal(t, domain.ConditionNeutral, got)
}

func TestStabilize_UnfavorableIsImmediate(t *testing.T) {
	w := domain.NewSignalWindow(4)
	got := analyzer.Stabilize(w, sigOf(domain.ConditionUnfavorable, domain.DirectionNone), 5)
	assert.Equal(t, domain.ConditionUnfavorable, got)
}

func TestStabilize_SingleConfirmationPassesThrough(t *testing.T) {
	w := domain.NewSignalWindow(1)
	got := analyzer.Stabilize(w, sigOf(domain.ConditionFavorable, domain.DirectionSell), 1)
	assert.Equal(t, domain.ConditionFavorable, got)
}

func TestGate(t *testing.T) {
	trade := domain.TradeDecision{ShouldTrade: true, Side: domain.DirectionBuy, LimitPrice: dec("0.5"), Size: dec("10"), Reason: domain.ReasonImbalance}

	assert.Equal(t, trade, analyzer.Gate(trade, domain.ConditionFavorable))

	gated := analyzer.Gate(trade, domain.ConditionNeutral)
	assert.False(t, gated.ShouldTrade)
	assert.Equal(t, domain.ReasonNeutral, gated.Reason)

	noTrade := domain.TradeDecision{Reason: domain.ReasonSpreadTooWide}
	assert.Equal(t, noTrade, analyzer.Gate(noTrade, domain.ConditionNeutral))
}
