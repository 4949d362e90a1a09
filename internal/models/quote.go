package models

import (
	"github.com/shopspring/decimal"
)

// TransactionError classifies an out-of-range quote. It is returned as part
// of the quote, not as a Go error; callers decide how to surface it.
type TransactionError string

const (
	TransactionErrorAmountTooLow  TransactionError = "AmountTooLow"
	TransactionErrorAmountTooHigh TransactionError = "AmountTooHigh"
)

// ValidationError classifies a rejected pay-in at deposit-detection time,
// before fees are known.
type ValidationError string

const (
	ValidationErrorPayInTooSmall    ValidationError = "PayInTooSmall"
	ValidationErrorPayInNotSellable ValidationError = "PayInNotSellable"
)

// TargetEstimation is the fee-adjusted conversion result. ExchangeRate is
// the raw market rate; Rate is the effective all-in source/target ratio
// including the fee.
type TargetEstimation struct {
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	Rate            decimal.Decimal `json:"rate"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	EstimatedAmount decimal.Decimal `json:"estimated_amount"`
	SourceAmount    decimal.Decimal `json:"source_amount"`
}

// TransactionDetails is the full quote: the estimation plus the floors and
// ceilings it was checked against, the applied fee rate, and the validity
// classification.
type TransactionDetails struct {
	TargetEstimation

	MinFee          decimal.Decimal  `json:"min_fee"`
	MinVolume       decimal.Decimal  `json:"min_volume"`
	MinFeeTarget    decimal.Decimal  `json:"min_fee_target"`
	MinVolumeTarget decimal.Decimal  `json:"min_volume_target"`
	MaxVolume       *decimal.Decimal `json:"max_volume,omitempty"`
	MaxVolumeTarget *decimal.Decimal `json:"max_volume_target,omitempty"`

	FeeRate decimal.Decimal  `json:"fee_rate"`
	IsValid bool             `json:"is_valid"`
	Error   TransactionError `json:"error,omitempty"`
}
