package models

import (
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SpecDirection is the leg a transaction specification applies to. An empty
// direction matches both legs.
type SpecDirection string

const (
	SpecDirectionIn  SpecDirection = "in"
	SpecDirectionOut SpecDirection = "out"
)

// TransactionSpecification holds the minimum fee and minimum volume floor
// for one (system, asset, direction) combination, denominated in EUR. Asset
// may be empty, in which case the specification matches every asset within
// the system.
type TransactionSpecification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	System    string             `bson:"system" json:"system"`
	Asset     string             `bson:"asset,omitempty" json:"asset,omitempty"`
	Direction SpecDirection      `bson:"direction,omitempty" json:"direction,omitempty"`
	MinFee    decimal.Decimal    `bson:"min_fee" json:"min_fee"`
	MinVolume decimal.Decimal    `bson:"min_volume" json:"min_volume"`
}

// DefaultTransactionSpecification is the built-in floor used when no stored
// specification matches: 1 EUR minimum fee, 1 EUR minimum volume.
func DefaultTransactionSpecification() *TransactionSpecification {
	return &TransactionSpecification{
		MinFee:    decimal.NewFromInt(1),
		MinVolume: decimal.NewFromInt(1),
	}
}

// TxSpec is a resolved pair of floors, in whatever denomination the caller
// requested (EUR from the cache, source/target after conversion).
type TxSpec struct {
	MinFee    decimal.Decimal `json:"min_fee"`
	MinVolume decimal.Decimal `json:"min_volume"`
}

// TxSpecLimits extends TxSpec with the optional trading-limit ceiling.
// MaxVolume is nil when no user (and therefore no limit) is involved.
type TxSpecLimits struct {
	MinFee    decimal.Decimal
	MinVolume decimal.Decimal
	MaxVolume *decimal.Decimal
}

// SpecQuery addresses one specification lookup.
type SpecQuery struct {
	System    string
	Asset     string
	Direction SpecDirection
}

// SpecMatchRanks is the specificity order for specification lookup, most
// specific first. The precedence is part of the data model contract:
// exact (system, asset, direction), then system-wide per direction, then
// per asset for both directions, then system-wide, then the built-in
// default.
var SpecMatchRanks = []func(s *TransactionSpecification, q SpecQuery) bool{
	func(s *TransactionSpecification, q SpecQuery) bool {
		return s.System == q.System && s.Asset == q.Asset && s.Direction == q.Direction
	},
	func(s *TransactionSpecification, q SpecQuery) bool {
		return s.System == q.System && s.Asset == "" && s.Direction == q.Direction
	},
	func(s *TransactionSpecification, q SpecQuery) bool {
		return s.System == q.System && s.Asset == q.Asset && s.Direction == ""
	},
	func(s *TransactionSpecification, q SpecQuery) bool {
		return s.System == q.System && s.Asset == "" && s.Direction == ""
	},
}
