package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Motivos de una TradeDecision. Son valores estables: se persisten y se notifican.
const (
	ReasonImbalance     = "imbalance"
	ReasonSpreadTooWide = "spread_too_wide"
	ReasonThinBook      = "thin_book"
	ReasonNeutral       = "neutral"
)

// TradeDecision es la salida del motor para un MarketSignal. De un solo uso.
type TradeDecision struct {
	ShouldTrade bool
	Side        Direction
	LimitPrice  decimal.Decimal
	Size        decimal.Decimal
	Reason      string
}

// Evaluation agrupa todo lo que produjo una evaluación: lo que se persiste y se publica.
type Evaluation struct {
	ID          string
	TokenID     string
	Signal      MarketSignal
	Decision    TradeDecision
	Confirmed   MarketCondition // condición tras la histéresis
	Latency     time.Duration
	EvaluatedAt time.Time
}
