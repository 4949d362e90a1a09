package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyKind distinguishes fiat currencies from blockchain assets.
type CurrencyKind string

const (
	CurrencyKindFiat   CurrencyKind = "fiat"
	CurrencyKindCrypto CurrencyKind = "crypto"
)

// FiatSystem is the specification system name shared by all fiat currencies.
// Crypto assets use their blockchain name as system.
const FiatSystem = "Fiat"

// Currency identifies a tradeable currency or asset together with the
// metadata the pricing core needs: its kind, the system it belongs to for
// specification lookup, and whether pay-ins in it can be sold.
type Currency struct {
	Symbol   string       `bson:"symbol" json:"symbol"`
	Kind     CurrencyKind `bson:"kind" json:"kind"`
	System   string       `bson:"system" json:"system"`
	Sellable bool         `bson:"sellable" json:"sellable"`
}

// NewFiat creates a fiat currency. Fiat is always sellable.
func NewFiat(symbol string) Currency {
	return Currency{
		Symbol:   symbol,
		Kind:     CurrencyKindFiat,
		System:   FiatSystem,
		Sellable: true,
	}
}

// NewCrypto creates a blockchain asset on the given chain.
func NewCrypto(symbol, blockchain string, sellable bool) Currency {
	return Currency{
		Symbol:   symbol,
		Kind:     CurrencyKindCrypto,
		System:   blockchain,
		Sellable: sellable,
	}
}

// IsFiat reports whether the currency is a fiat currency. All rounding and
// direction decisions branch on this single predicate.
func (c Currency) IsFiat() bool {
	return c.Kind == CurrencyKindFiat
}

// Is compares currencies by symbol.
func (c Currency) Is(symbol string) bool {
	return c.Symbol == symbol
}

func (c Currency) String() string {
	if c.IsFiat() {
		return c.Symbol
	}
	return fmt.Sprintf("%s@%s", c.Symbol, c.System)
}

// Validate checks that the currency carries the minimum metadata.
func (c Currency) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("currency symbol is required")
	}
	if c.Kind != CurrencyKindFiat && c.Kind != CurrencyKindCrypto {
		return fmt.Errorf("invalid currency kind: %s", c.Kind)
	}
	if c.Kind == CurrencyKindFiat && c.System != FiatSystem {
		return fmt.Errorf("fiat currency %s must use system %q", c.Symbol, FiatSystem)
	}
	if c.Kind == CurrencyKindCrypto && c.System == "" {
		return fmt.Errorf("crypto asset %s requires a blockchain system", c.Symbol)
	}
	return nil
}

// Reference currencies. Specification floors are stored in EUR; trading
// limits are tracked in CHF.
var (
	EUR = NewFiat("EUR")
	CHF = NewFiat("CHF")
)

// RoundAmount rounds a regular amount: fiat values to 2 decimal places,
// crypto values to 5 significant digits.
func RoundAmount(amount decimal.Decimal, isFiat bool) decimal.Decimal {
	if isFiat {
		return amount.Round(2)
	}
	return roundSignificant(amount, 5)
}

// RoundLimit rounds a limit ("max volume") amount coarser than RoundAmount:
// fiat to the nearest 10, crypto to 3 significant digits. Coarser rounding
// keeps internal thresholds from leaking and avoids off-by-a-cent
// rejections at the boundary.
func RoundLimit(amount decimal.Decimal, isFiat bool) decimal.Decimal {
	if isFiat {
		return amount.Round(-1)
	}
	return roundSignificant(amount, 3)
}

// roundSignificant rounds to the given number of significant digits.
func roundSignificant(amount decimal.Decimal, digits int32) decimal.Decimal {
	if amount.IsZero() {
		return amount
	}
	// Magnitude of the leading digit: coefficient digits plus exponent.
	abs := amount.Abs()
	magnitude := int32(len(abs.Coefficient().String())) + abs.Exponent() - 1
	return amount.Round(digits - 1 - magnitude)
}
