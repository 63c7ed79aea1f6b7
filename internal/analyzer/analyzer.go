package analyzer

import (
	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/shopspring/decimal"
)

// Analyzer encadena Normalize → Evaluate → Decide con una configuración fija.
// No guarda estado entre llamadas: es seguro usarlo desde varias goroutines.
type Analyzer struct {
	cfg         domain.AnalysisConfig
	desiredSize decimal.Decimal
}

// New crea un Analyzer. La configuración debe haberse validado antes.
func New(cfg domain.AnalysisConfig, desiredSize decimal.Decimal) *Analyzer {
	return &Analyzer{cfg: cfg, desiredSize: desiredSize}
}

// Config devuelve la configuración con la que evalúa.
func (a *Analyzer) Config() domain.AnalysisConfig { return a.cfg }

// Analyze normaliza el snapshot y, si es válido, devuelve señal y decisión.
// Solo falla con errores de normalización (*domain.BookError).
func (a *Analyzer) Analyze(raw domain.RawBook) (domain.MarketSignal, domain.TradeDecision, error) {
	book, err := NormalizeRaw(raw)
	if err != nil {
		return domain.MarketSignal{}, domain.TradeDecision{}, err
	}
	sig := Evaluate(book, a.cfg)
	return sig, Decide(sig, a.desiredSize, a.cfg), nil
}
