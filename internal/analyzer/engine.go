package analyzer

import (
	"math"

	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/shopspring/decimal"
)

// epsilon es el suelo de los denominadores: ninguna división es por cero literal.
const epsilon = 1e-9

// priceDecimals es la precisión a la que se redondea el precio límite.
const priceDecimals = 4

var two = decimal.NewFromInt(2)

// Evaluate convierte un OrderBook normalizado en un MarketSignal.
//
// Es una función pura y total: no falla, no lee el reloj (ComputedAt es el timestamp
// del book) y dos llamadas con el mismo (book, cfg) devuelven exactamente lo mismo.
// Solo los primeros cfg.PriceLevels niveles de cada lado entran en el cálculo.
func Evaluate(book domain.OrderBook, cfg domain.AnalysisConfig) domain.MarketSignal {
	n := int(cfg.PriceLevels)
	bids := book.Bids.Top(n)
	asks := book.Asks.Top(n)

	bidVol := bids.Volume()
	askVol := asks.Volume()
	bidF := bidVol.InexactFloat64()
	askF := askVol.InexactFloat64()

	raw := book.Spread()
	mid := book.Midpoint()
	eff := effectiveSpread(raw, cfg.MinSpread)

	sig := domain.MarketSignal{
		TokenID:          book.TokenID,
		VolumeImbalance:  bidF / math.Max(askF, epsilon),
		PricePressure:    pricePressure(bids, asks),
		EffectiveSpread:  eff.InexactFloat64(),
		ComputedAt:       book.Timestamp,
		RawSpread:        raw.InexactFloat64(),
		BidConcentration: concentration(bids, bidVol),
		AskConcentration: concentration(asks, askVol),
		BestBid:          book.BestBid(),
		BestAsk:          book.BestAsk(),
		Midpoint:         mid,
		BidVolume:        bidVol,
		AskVolume:        askVol,
		QuoteBid:         quoteLevel(book.Bids),
		QuoteAsk:         quoteLevel(book.Asks),
	}
	if mid.IsPositive() {
		sig.SpreadPct = raw.Div(mid).InexactFloat64()
	}
	sig.Concentration = math.Max(sig.BidConcentration, sig.AskConcentration)
	sig.Direction = direction(sig.VolumeImbalance, sig.PricePressure, cfg)
	sig.Condition = classify(sig, eff, cfg)
	return sig
}

// Decide deriva la decisión de trading a partir de una señal.
//
// Solo se opera en condición Favorable con spread efectivo <= SpreadMultiplier × MinSpread.
// El precio límite es el mejor precio del lado contrario mejorado en medio spread efectivo
// (sin salir del spread crudo) y el tamaño nunca supera ni desiredSize ni la liquidez
// top-N observada en el lado contrario.
func Decide(sig domain.MarketSignal, desiredSize decimal.Decimal, cfg domain.AnalysisConfig) domain.TradeDecision {
	switch sig.Condition {
	case domain.ConditionUnfavorable:
		return noTrade(domain.ReasonSpreadTooWide)
	case domain.ConditionNeutral:
		// Había dirección pero no liquidez suficiente contra la que ejecutar
		if sig.Direction != domain.DirectionNone {
			return noTrade(domain.ReasonThinBook)
		}
		return noTrade(domain.ReasonNeutral)
	}

	raw := sig.BestAsk.Sub(sig.BestBid)
	eff := effectiveSpread(raw, cfg.MinSpread)
	if eff.GreaterThan(cfg.MaxTradeableSpread()) {
		return noTrade(domain.ReasonSpreadTooWide)
	}

	size := decimal.Min(desiredSize, sig.OpposingVolume(sig.Direction))
	if !size.IsPositive() {
		return noTrade(domain.ReasonThinBook)
	}

	adj := eff.Div(two)
	if limit := decimal.Min(eff, raw); adj.GreaterThan(limit) {
		adj = limit
	}
	if adj.IsNegative() {
		adj = decimal.Zero
	}

	var price decimal.Decimal
	switch sig.Direction {
	case domain.DirectionBuy:
		price = sig.BestAsk.Sub(adj)
	case domain.DirectionSell:
		price = sig.BestBid.Add(adj)
	}
	price = clamp(price.Round(priceDecimals), sig.BestBid, sig.BestAsk)

	return domain.TradeDecision{
		ShouldTrade: true,
		Side:        sig.Direction,
		LimitPrice:  price,
		Size:        size,
		Reason:      domain.ReasonImbalance,
	}
}

func noTrade(reason string) domain.TradeDecision {
	return domain.TradeDecision{Reason: reason}
}

// effectiveSpread es max(raw, minSpread): un spread por debajo del mínimo suele ser ruido ilíquido.
func effectiveSpread(raw, minSpread decimal.Decimal) decimal.Decimal {
	return decimal.Max(raw, minSpread)
}

// pricePressure pondera cada nivel por 1/(i+1) y normaliza por el volumen ponderado total.
// Resultado en [-1, 1]; positivo = presión alcista.
func pricePressure(bids, asks domain.OrderBookSide) float64 {
	wb := weightedVolume(bids)
	wa := weightedVolume(asks)
	return (wb - wa) / math.Max(wb+wa, epsilon)
}

func weightedVolume(side domain.OrderBookSide) float64 {
	var total float64
	for i, l := range side {
		total += l.Size.InexactFloat64() / float64(i+1)
	}
	return total
}

// concentration es la fracción del volumen top-N que está en el mejor nivel.
func concentration(side domain.OrderBookSide, volume decimal.Decimal) float64 {
	if len(side) == 0 || !volume.IsPositive() {
		return 0
	}
	return side[0].Size.Div(volume).InexactFloat64()
}

// direction exige que el desequilibrio de volumen y la presión de precio apunten al mismo lado.
func direction(imbalance, pressure float64, cfg domain.AnalysisConfig) domain.Direction {
	switch {
	case imbalance >= cfg.ImbalanceThreshold && pressure > 0:
		return domain.DirectionBuy
	case imbalance <= 1/cfg.ImbalanceThreshold && pressure < 0:
		return domain.DirectionSell
	default:
		return domain.DirectionNone
	}
}

// classify aplica los criterios; si se cumplen Favorable y Unfavorable a la vez gana
// Unfavorable (preservar capital).
func classify(sig domain.MarketSignal, eff decimal.Decimal, cfg domain.AnalysisConfig) domain.MarketCondition {
	wide := eff.GreaterThan(cfg.MaxTradeableSpread())
	thin := sig.Concentration >= cfg.ConcentrationThreshold
	if wide && thin {
		return domain.ConditionUnfavorable
	}

	if sig.Direction == domain.DirectionNone {
		return domain.ConditionNeutral
	}
	if sig.OpposingVolume(sig.Direction).InexactFloat64() >= cfg.VolumeThreshold {
		return domain.ConditionFavorable
	}
	return domain.ConditionNeutral
}

// quoteLevel es el precio del segundo nivel: cotizar detrás del mejor precio
// evita quedar primero en la cola cuando el book se mueve.
func quoteLevel(side domain.OrderBookSide) decimal.Decimal {
	if len(side) > 1 {
		return side[1].Price
	}
	return side[0].Price
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
