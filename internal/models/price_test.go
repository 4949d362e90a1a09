package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceConvert(t *testing.T) {
	// 50000 EUR per BTC
	price := NewPrice("EUR", "BTC", decimal.NewFromInt(50000))

	converted := price.Convert(decimal.NewFromInt(25000))
	assert.True(t, converted.Equal(decimal.RequireFromString("0.5")), "got %s", converted)
}

func TestPriceInvert(t *testing.T) {
	price := NewPrice("EUR", "BTC", decimal.NewFromInt(50000))
	inverted := price.Invert()

	assert.Equal(t, "BTC", inverted.Source)
	assert.Equal(t, "EUR", inverted.Target)

	// Converting 0.5 BTC back to EUR.
	back := inverted.Convert(decimal.RequireFromString("0.5"))
	assert.True(t, back.Equal(decimal.NewFromInt(25000)), "got %s", back)

	// Step chain is reversed.
	assert.Len(t, inverted.Steps, 1)
	assert.Equal(t, "BTC", inverted.Steps[0].Source)
	assert.Equal(t, "EUR", inverted.Steps[0].Target)
}

func TestPriceRoundTrip(t *testing.T) {
	price := NewPrice("EUR", "ETH", decimal.RequireFromString("3200.5"))
	amount := decimal.RequireFromString("1234.56")

	roundTrip := price.Invert().Convert(price.Convert(amount))
	diff := roundTrip.Sub(amount).Abs()
	assert.True(t, diff.LessThan(decimal.RequireFromString("0.0001")), "round trip drifted by %s", diff)
}

func TestPriceValidate(t *testing.T) {
	assert.NoError(t, NewPrice("EUR", "BTC", decimal.NewFromInt(50000)).Validate())
	assert.Error(t, NewPrice("EUR", "BTC", decimal.Zero).Validate())
	assert.Error(t, NewPrice("EUR", "BTC", decimal.NewFromInt(-1)).Validate())
	assert.Error(t, (&Price{Target: "BTC", Rate: decimal.NewFromInt(1)}).Validate())
}
