package clients

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

func decimalOne() decimal.Decimal {
	return decimal.NewFromInt(1)
}

func decimalFromNumber(n json.Number) (decimal.Decimal, error) {
	return decimal.NewFromString(n.String())
}
