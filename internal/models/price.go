package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceStep is one hop of a possibly multi-hop price. Steps are kept for
// auditability when a rate is composed from several markets.
type PriceStep struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Rate   decimal.Decimal `json:"rate"`
}

// Price is an immutable exchange rate between two currencies. Rate is
// expressed in source units per target unit, so converting a source amount
// divides by the rate.
type Price struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Rate   decimal.Decimal `json:"rate"`
	Steps  []PriceStep     `json:"steps,omitempty"`
}

// NewPrice creates a single-step price.
func NewPrice(source, target string, rate decimal.Decimal) *Price {
	return &Price{
		Source: source,
		Target: target,
		Rate:   rate,
		Steps:  []PriceStep{{Source: source, Target: target, Rate: rate}},
	}
}

// Convert converts an amount denominated in the source currency into the
// target currency.
func (p *Price) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Div(p.Rate)
}

// Invert returns the reverse price (target to source) with the step chain
// reversed.
func (p *Price) Invert() *Price {
	steps := make([]PriceStep, 0, len(p.Steps))
	for i := len(p.Steps) - 1; i >= 0; i-- {
		s := p.Steps[i]
		steps = append(steps, PriceStep{
			Source: s.Target,
			Target: s.Source,
			Rate:   decimal.NewFromInt(1).Div(s.Rate),
		})
	}
	return &Price{
		Source: p.Target,
		Target: p.Source,
		Rate:   decimal.NewFromInt(1).Div(p.Rate),
		Steps:  steps,
	}
}

// Validate rejects prices that cannot be used for conversion.
func (p *Price) Validate() error {
	if p.Source == "" || p.Target == "" {
		return fmt.Errorf("price requires source and target")
	}
	if p.Rate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("invalid price %s/%s: rate %s", p.Source, p.Target, p.Rate)
	}
	return nil
}
