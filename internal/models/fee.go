package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeeKind classifies pricing rules.
type FeeKind string

const (
	// FeeKindBase is the baseline percentage charged by account type and
	// asset. A matching base fee must always exist.
	FeeKindBase FeeKind = "base"
	// FeeKindDiscount is a reduction applied on top of the base fee, either
	// publicly available (no code) or redeemed via a discount code.
	FeeKindDiscount FeeKind = "discount"
	// FeeKindCustom is a negotiated override that replaces the
	// base/discount combination entirely.
	FeeKindCustom FeeKind = "custom"
)

// Direction is the transfer direction a fee applies to. An empty direction
// matches any.
type Direction string

const (
	DirectionBuy     Direction = "buy"
	DirectionSell    Direction = "sell"
	DirectionConvert Direction = "convert"
)

// AccountType mirrors the user service's account classification.
type AccountType string

const (
	AccountTypePersonal           AccountType = "personal"
	AccountTypeBusiness           AccountType = "business"
	AccountTypeSoleProprietorship AccountType = "sole_proprietorship"
)

// PaymentMethod is how a buy is funded. Card payments carry a fixed
// configured fee instead of the resolved one.
type PaymentMethod string

const (
	PaymentMethodBank PaymentMethod = "bank"
	PaymentMethodCard PaymentMethod = "card"
)

// Fee is a named, directional pricing rule. Value is a fraction (0.029 for
// 2.9%). MaxTxVolume is an EUR ceiling above which the fee no longer
// applies. MaxUsages caps discount-code redemptions; usage is counted from
// the assignment ledger and never decremented.
type Fee struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Label       string             `bson:"label" json:"label"`
	Kind        FeeKind            `bson:"kind" json:"kind"`
	Direction   Direction          `bson:"direction,omitempty" json:"direction,omitempty"`
	Value       decimal.Decimal    `bson:"value" json:"value"`
	AccountType AccountType        `bson:"account_type,omitempty" json:"account_type,omitempty"`
	Assets      []string           `bson:"assets,omitempty" json:"assets,omitempty"`

	MaxTxVolume  *decimal.Decimal `bson:"max_tx_volume,omitempty" json:"max_tx_volume,omitempty"`
	MaxUsages    int64            `bson:"max_usages,omitempty" json:"max_usages,omitempty"`
	ExpiresAt    *time.Time       `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	Active       bool             `bson:"active" json:"active"`
	DiscountCode string           `bson:"discount_code,omitempty" json:"discount_code,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Expired reports whether the fee can no longer be applied: deactivated or
// past its expiry date. The usage cap is checked separately because it
// needs the assignment ledger.
func (f *Fee) Expired(now time.Time) bool {
	if f == nil || !f.Active {
		return true
	}
	return f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}

// AllowsAsset reports whether the asset allow-list admits the symbol. An
// empty list admits every asset.
func (f *Fee) AllowsAsset(symbol string) bool {
	if len(f.Assets) == 0 {
		return true
	}
	for _, a := range f.Assets {
		if a == symbol {
			return true
		}
	}
	return false
}

// FeeQuery is one fee-resolution request: which direction, which asset, and
// (when known) the EUR transaction volume.
type FeeQuery struct {
	Direction   Direction
	Asset       Currency
	TxVolume    decimal.Decimal
	AccountType AccountType
}

// Matches applies the non-expiry filters: account type, direction, asset
// allow-list and volume ceiling.
func (f *Fee) Matches(q FeeQuery) bool {
	if f.AccountType != "" && f.AccountType != q.AccountType {
		return false
	}
	if f.Direction != "" && f.Direction != q.Direction {
		return false
	}
	if !f.AllowsAsset(q.Asset.Symbol) {
		return false
	}
	if f.MaxTxVolume != nil && q.TxVolume.GreaterThan(*f.MaxTxVolume) {
		return false
	}
	return true
}

// UserAccount is the slice of the user service's account record this core
// needs: identity, account type, individually assigned fees, and the
// remaining trading limit in CHF.
type UserAccount struct {
	ID                    int64                `json:"id"`
	AccountType           AccountType          `json:"account_type"`
	FeeIDs                []primitive.ObjectID `json:"fee_ids"`
	AvailableTradingLimit decimal.Decimal      `json:"available_trading_limit"`
}

// HasFee reports whether the fee is individually assigned to the account.
func (u *UserAccount) HasFee(id primitive.ObjectID) bool {
	for _, f := range u.FeeIDs {
		if f == id {
			return true
		}
	}
	return false
}
