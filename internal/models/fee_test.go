package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFeeExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		fee     *Fee
		expired bool
	}{
		{
			name:    "active without expiry",
			fee:     &Fee{Active: true},
			expired: false,
		},
		{
			name:    "inactive",
			fee:     &Fee{Active: false},
			expired: true,
		},
		{
			name:    "past expiry date",
			fee:     &Fee{Active: true, ExpiresAt: &past},
			expired: true,
		},
		{
			name:    "future expiry date",
			fee:     &Fee{Active: true, ExpiresAt: &future},
			expired: false,
		},
		{
			name:    "nil fee",
			fee:     nil,
			expired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, tt.fee.Expired(now))
		})
	}
}

func TestFeeMatches(t *testing.T) {
	btc := NewCrypto("BTC", "Bitcoin", true)
	eth := NewCrypto("ETH", "Ethereum", true)
	ceiling := decimal.NewFromInt(1000)

	base := &Fee{
		Kind:        FeeKindBase,
		Direction:   DirectionBuy,
		AccountType: AccountTypePersonal,
		Assets:      []string{"BTC"},
		MaxTxVolume: &ceiling,
		Active:      true,
	}

	tests := []struct {
		name    string
		query   FeeQuery
		matches bool
	}{
		{
			name: "full match",
			query: FeeQuery{
				Direction:   DirectionBuy,
				Asset:       btc,
				TxVolume:    decimal.NewFromInt(500),
				AccountType: AccountTypePersonal,
			},
			matches: true,
		},
		{
			name: "wrong account type",
			query: FeeQuery{
				Direction:   DirectionBuy,
				Asset:       btc,
				AccountType: AccountTypeBusiness,
			},
			matches: false,
		},
		{
			name: "wrong direction",
			query: FeeQuery{
				Direction:   DirectionSell,
				Asset:       btc,
				AccountType: AccountTypePersonal,
			},
			matches: false,
		},
		{
			name: "asset not in allow-list",
			query: FeeQuery{
				Direction:   DirectionBuy,
				Asset:       eth,
				AccountType: AccountTypePersonal,
			},
			matches: false,
		},
		{
			name: "volume above ceiling",
			query: FeeQuery{
				Direction:   DirectionBuy,
				Asset:       btc,
				TxVolume:    decimal.NewFromInt(1001),
				AccountType: AccountTypePersonal,
			},
			matches: false,
		},
		{
			name: "volume exactly at ceiling",
			query: FeeQuery{
				Direction:   DirectionBuy,
				Asset:       btc,
				TxVolume:    decimal.NewFromInt(1000),
				AccountType: AccountTypePersonal,
			},
			matches: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, base.Matches(tt.query))
		})
	}
}

func TestFeeMatchesUnrestricted(t *testing.T) {
	// A fee without direction, account type, or asset list matches anything.
	fee := &Fee{Kind: FeeKindDiscount, Active: true}

	assert.True(t, fee.Matches(FeeQuery{
		Direction:   DirectionSell,
		Asset:       NewCrypto("ETH", "Ethereum", true),
		TxVolume:    decimal.NewFromInt(1000000),
		AccountType: AccountTypeBusiness,
	}))
}

func TestFeeAllowsAsset(t *testing.T) {
	fee := &Fee{Assets: []string{"BTC", "ETH"}}
	assert.True(t, fee.AllowsAsset("BTC"))
	assert.True(t, fee.AllowsAsset("ETH"))
	assert.False(t, fee.AllowsAsset("SOL"))

	open := &Fee{}
	assert.True(t, open.AllowsAsset("anything"))
}

func TestUserAccountHasFee(t *testing.T) {
	id := primitive.NewObjectID()
	other := primitive.NewObjectID()

	account := &UserAccount{FeeIDs: []primitive.ObjectID{id}}
	assert.True(t, account.HasFee(id))
	assert.False(t, account.HasFee(other))
}
