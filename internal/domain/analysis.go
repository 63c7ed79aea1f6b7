package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const maxPriceLevels = 50

// AnalysisConfig contiene los umbrales del analizador. Se construye una vez al arrancar
// y no se modifica: un reload crea un AnalysisConfig nuevo.
type AnalysisConfig struct {
	// ImbalanceThreshold es el ratio bid/ask a partir del cual hay dominancia compradora
	// (y 1/ImbalanceThreshold para la vendedora). Debe ser > 1.
	ImbalanceThreshold float64
	// VolumeThreshold es el volumen mínimo (shares) en el top-N del lado contra el que
	// se ejecutaría la orden. >= 0.
	VolumeThreshold float64
	// PriceLevels es cuántos niveles por lado entran en el cálculo (1..50).
	PriceLevels uint
	// SpreadMultiplier escala MinSpread para obtener el spread máximo operable. >= 1.
	SpreadMultiplier float64
	// MinSpread es el suelo del spread efectivo, en unidades de precio. > 0.
	MinSpread decimal.Decimal
	// ConcentrationThreshold marca un book "fino": fracción del volumen top-N en el mejor nivel. (0, 1].
	ConcentrationThreshold float64
}

// DefaultAnalysisConfig devuelve los valores con los que operaba el bot original.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		ImbalanceThreshold:     3.0,
		VolumeThreshold:        0.4,
		PriceLevels:            3,
		SpreadMultiplier:       1.5,
		MinSpread:              decimal.RequireFromString("0.01"),
		ConcentrationThreshold: 0.7,
	}
}

// MaxTradeableSpread devuelve SpreadMultiplier × MinSpread: el spread efectivo
// por encima del cual no se opera.
func (c AnalysisConfig) MaxTradeableSpread() decimal.Decimal {
	return c.MinSpread.Mul(decimal.NewFromFloat(c.SpreadMultiplier))
}

// Validate comprueba que todos los umbrales estén en rango.
func (c AnalysisConfig) Validate() error {
	var errs []error
	if c.ImbalanceThreshold <= 1 {
		errs = append(errs, fmt.Errorf("imbalance_threshold must be > 1, got %v", c.ImbalanceThreshold))
	}
	if c.VolumeThreshold < 0 {
		errs = append(errs, fmt.Errorf("volume_threshold must be >= 0, got %v", c.VolumeThreshold))
	}
	if c.PriceLevels < 1 || c.PriceLevels > maxPriceLevels {
		errs = append(errs, fmt.Errorf("price_levels must be in [1, %d], got %d", maxPriceLevels, c.PriceLevels))
	}
	if c.SpreadMultiplier < 1 {
		errs = append(errs, fmt.Errorf("spread_multiplier must be >= 1, got %v", c.SpreadMultiplier))
	}
	if !c.MinSpread.IsPositive() {
		errs = append(errs, fmt.Errorf("min_spread must be > 0, got %s", c.MinSpread))
	}
	if c.ConcentrationThreshold <= 0 || c.ConcentrationThreshold > 1 {
		errs = append(errs, fmt.Errorf("concentration_threshold must be in (0, 1], got %v", c.ConcentrationThreshold))
	}
	if len(errs) > 0 {
		return fmt.Errorf("analysis config: %w", errors.Join(errs...))
	}
	return nil
}
