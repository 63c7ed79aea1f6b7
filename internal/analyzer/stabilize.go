package analyzer

import "github.com/alejandrodnm/polyslip/internal/domain"

// Stabilize añade sig a la ventana y devuelve la condición confirmada.
//
// Es la capa de histéresis, fuera del motor puro: Favorable solo se confirma cuando
// las últimas `confirmations` señales son Favorable en la misma dirección; Unfavorable
// y Neutral pasan sin retardo. Con confirmations <= 1 devuelve sig.Condition tal cual.
func Stabilize(w *domain.SignalWindow, sig domain.MarketSignal, confirmations int) domain.MarketCondition {
	w.Push(sig)

	if sig.Condition != domain.ConditionFavorable || confirmations <= 1 {
		return sig.Condition
	}

	recent := w.Last(confirmations)
	if len(recent) < confirmations {
		return domain.ConditionNeutral
	}
	for _, s := range recent {
		if s.Condition != domain.ConditionFavorable || s.Direction != sig.Direction {
			return domain.ConditionNeutral
		}
	}
	return domain.ConditionFavorable
}

// Gate anula una decisión operable cuando la condición confirmada no es Favorable.
func Gate(d domain.TradeDecision, confirmed domain.MarketCondition) domain.TradeDecision {
	if !d.ShouldTrade || confirmed == domain.ConditionFavorable {
		return d
	}
	return noTrade(domain.ReasonNeutral)
}
