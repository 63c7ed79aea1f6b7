package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketCondition es la clasificación del book en un instante.
type MarketCondition int

const (
	ConditionNeutral MarketCondition = iota
	ConditionFavorable
	ConditionUnfavorable
)

// String devuelve el nombre legible de la condición.
func (c MarketCondition) String() string {
	switch c {
	case ConditionFavorable:
		return "favorable"
	case ConditionUnfavorable:
		return "unfavorable"
	default:
		return "neutral"
	}
}

// Icon devuelve el emoji usado en notificaciones.
func (c MarketCondition) Icon() string {
	switch c {
	case ConditionFavorable:
		return "🟢"
	case ConditionUnfavorable:
		return "🔴"
	default:
		return "⚪"
	}
}

// ParseCondition es la inversa de String. Devuelve Neutral para valores desconocidos.
func ParseCondition(s string) MarketCondition {
	switch s {
	case "favorable":
		return ConditionFavorable
	case "unfavorable":
		return ConditionUnfavorable
	default:
		return ConditionNeutral
	}
}

// Direction indica qué lado domina el book.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionBuy            // dominancia compradora: se compra contra los asks
	DirectionSell           // dominancia vendedora: se vende contra los bids
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "none"
	}
}

// ParseDirection es la inversa de String. Devuelve DirectionNone para valores desconocidos.
func ParseDirection(s string) Direction {
	switch s {
	case "buy":
		return DirectionBuy
	case "sell":
		return DirectionSell
	default:
		return DirectionNone
	}
}

// MarketSignal es el resultado de evaluar un OrderBook. Inmutable.
//
// Los cinco campos principales (VolumeImbalance, PricePressure, EffectiveSpread,
// Concentration, Condition) son los que consume la clasificación; el resto son los
// valores del book que Decide necesita para derivar precio y tamaño.
type MarketSignal struct {
	TokenID string

	VolumeImbalance float64 // bidVol / max(askVol, ε), >= 0
	PricePressure   float64 // [-1, 1], positivo = presión alcista
	EffectiveSpread float64 // max(rawSpread, MinSpread)
	Concentration   float64 // max(BidConcentration, AskConcentration)
	Condition       MarketCondition
	Direction       Direction
	ComputedAt      time.Time // timestamp del book evaluado

	RawSpread        float64
	SpreadPct        float64 // RawSpread / mid
	BidConcentration float64
	AskConcentration float64

	BestBid   decimal.Decimal
	BestAsk   decimal.Decimal
	Midpoint  decimal.Decimal
	BidVolume decimal.Decimal // top-N
	AskVolume decimal.Decimal // top-N

	// Precios de cotización a dos lados: segundo nivel de cada lado, o el mejor
	// si el lado solo tiene uno.
	QuoteBid decimal.Decimal
	QuoteAsk decimal.Decimal
}

// OpposingVolume devuelve el volumen top-N del lado contra el que se ejecutaría
// una orden en la dirección dada.
func (s MarketSignal) OpposingVolume(d Direction) decimal.Decimal {
	switch d {
	case DirectionBuy:
		return s.AskVolume
	case DirectionSell:
		return s.BidVolume
	default:
		return decimal.Zero
	}
}
