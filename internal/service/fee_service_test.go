package service

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricing-api/internal/config"
	"pricing-api/internal/models"
	"pricing-api/internal/repository"
)

func newTestFeeService(repo *MockFeeRepository, users *MockUserAccountService, publisher *MockFeeEventPublisher) FeeService {
	return NewFeeService(repo, users, publisher, noopMetrics{}, &config.PricingConfig{
		CardFee:            decimal.RequireFromString("0.0399"),
		DefaultAccountType: string(models.AccountTypePersonal),
		ReferenceCurrency:  "EUR",
		LimitCurrency:      "CHF",
	})
}

func baseFee(value string) *models.Fee {
	return &models.Fee{
		ID:          primitive.NewObjectID(),
		Label:       "base-" + value,
		Kind:        models.FeeKindBase,
		Value:       decimal.RequireFromString(value),
		AccountType: models.AccountTypePersonal,
		Assets:      []string{"BTC"},
		Active:      true,
	}
}

func discountFee(value string) *models.Fee {
	return &models.Fee{
		ID:     primitive.NewObjectID(),
		Label:  "discount-" + value,
		Kind:   models.FeeKindDiscount,
		Value:  decimal.RequireFromString(value),
		Active: true,
	}
}

func customFee(value string) *models.Fee {
	return &models.Fee{
		ID:     primitive.NewObjectID(),
		Label:  "custom-" + value,
		Kind:   models.FeeKindCustom,
		Value:  decimal.RequireFromString(value),
		Active: true,
	}
}

// notFound mirrors the wrapped form the mongo repositories return, so the
// service is tested against the errors it sees in production.
func notFound(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, repository.ErrNotFound)...)
}

func btcQuery() models.FeeQuery {
	return models.FeeQuery{
		Direction:   models.DirectionBuy,
		Asset:       models.NewCrypto("BTC", "Bitcoin", true),
		TxVolume:    decimal.NewFromInt(1000),
		AccountType: models.AccountTypePersonal,
	}
}

func TestGetDefaultFee(t *testing.T) {
	tests := []struct {
		name         string
		candidates   []*models.Fee
		expectedRate string
		expectedErr  error
		appliedFees  int
	}{
		{
			name:         "base fee only",
			candidates:   []*models.Fee{baseFee("0.029")},
			expectedRate: "0.029",
			appliedFees:  1,
		},
		{
			name:         "base minus discount",
			candidates:   []*models.Fee{baseFee("0.029"), discountFee("0.005")},
			expectedRate: "0.024",
			appliedFees:  2,
		},
		{
			name:         "lowest base wins",
			candidates:   []*models.Fee{baseFee("0.029"), baseFee("0.0175")},
			expectedRate: "0.0175",
			appliedFees:  1,
		},
		{
			name:         "highest discount wins",
			candidates:   []*models.Fee{baseFee("0.0175"), discountFee("0.001"), discountFee("0.009")},
			expectedRate: "0.0085",
			appliedFees:  2,
		},
		{
			name:         "custom dominates base and discount",
			candidates:   []*models.Fee{baseFee("0.029"), discountFee("0.005"), customFee("0.01")},
			expectedRate: "0.01",
			appliedFees:  1,
		},
		{
			name:         "lowest custom wins",
			candidates:   []*models.Fee{customFee("0.02"), customFee("0.01")},
			expectedRate: "0.01",
			appliedFees:  1,
		},
		{
			name:         "discount exceeding base falls back to base",
			candidates:   []*models.Fee{baseFee("0.029"), discountFee("0.035")},
			expectedRate: "0.029",
			appliedFees:  1,
		},
		{
			name:         "negative discount ignored",
			candidates:   []*models.Fee{baseFee("0.029"), discountFee("-0.01")},
			expectedRate: "0.029",
			appliedFees:  1,
		},
		{
			name:        "no base fee",
			candidates:  []*models.Fee{discountFee("0.005")},
			expectedErr: ErrBaseFeeMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockFeeRepository)
			users := new(MockUserAccountService)
			publisher := new(MockFeeEventPublisher)
			repo.On("FindCandidates", mock.Anything, mock.Anything).Return(tt.candidates, nil)

			svc := newTestFeeService(repo, users, publisher)
			result, err := svc.GetDefaultFee(context.Background(), btcQuery(), "")

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.True(t, result.Rate.Equal(decimal.RequireFromString(tt.expectedRate)),
				"got rate %s, want %s", result.Rate, tt.expectedRate)
			assert.Len(t, result.Fees, tt.appliedFees)
		})
	}
}

func TestGetDefaultFeeExcludesNonMatchingBase(t *testing.T) {
	// Base fee for ETH only: resolving for BTC must fail.
	fee := baseFee("0.029")
	fee.Assets = []string{"ETH"}

	repo := new(MockFeeRepository)
	repo.On("FindCandidates", mock.Anything, mock.Anything).Return([]*models.Fee{fee}, nil)

	svc := newTestFeeService(repo, new(MockUserAccountService), new(MockFeeEventPublisher))
	_, err := svc.GetDefaultFee(context.Background(), btcQuery(), "")
	assert.ErrorIs(t, err, ErrBaseFeeMissing)
}

func TestGetUserFeeUsesAssignedCustomFee(t *testing.T) {
	custom := customFee("0.01")
	account := &models.UserAccount{
		ID:          42,
		AccountType: models.AccountTypePersonal,
		FeeIDs:      []primitive.ObjectID{custom.ID},
	}

	repo := new(MockFeeRepository)
	users := new(MockUserAccountService)
	users.On("GetAccount", mock.Anything, int64(42)).Return(account, nil)
	repo.On("FindCandidates", mock.Anything, account.FeeIDs).
		Return([]*models.Fee{baseFee("0.029"), custom}, nil)

	svc := newTestFeeService(repo, users, new(MockFeeEventPublisher))
	result, err := svc.GetUserFee(context.Background(), 42, btcQuery())

	assert.NoError(t, err)
	assert.True(t, result.Rate.Equal(decimal.RequireFromString("0.01")))
}

func TestGetUserFeeCleansUpExpiredAssignments(t *testing.T) {
	expired := customFee("0.01")
	expired.Active = false
	account := &models.UserAccount{
		ID:          42,
		AccountType: models.AccountTypePersonal,
		FeeIDs:      []primitive.ObjectID{expired.ID},
	}

	repo := new(MockFeeRepository)
	users := new(MockUserAccountService)
	publisher := new(MockFeeEventPublisher)
	users.On("GetAccount", mock.Anything, int64(42)).Return(account, nil)
	repo.On("FindCandidates", mock.Anything, account.FeeIDs).
		Return([]*models.Fee{baseFee("0.029"), expired}, nil)
	removed := make(chan struct{})
	users.On("RemoveFeeAssignment", mock.Anything, int64(42), expired.ID).
		Return(nil).
		Run(func(args mock.Arguments) { close(removed) })
	publisher.On("PublishAssignmentRemoved", mock.Anything, int64(42), expired.ID).Return(nil)

	svc := newTestFeeService(repo, users, publisher)
	result, err := svc.GetUserFee(context.Background(), 42, btcQuery())

	// The expired custom fee is ignored, the resolution falls back to base.
	assert.NoError(t, err)
	assert.True(t, result.Rate.Equal(decimal.RequireFromString("0.029")))

	// Cleanup runs in the background.
	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("expired assignment was never removed")
	}
}

func TestRedeemDiscountCode(t *testing.T) {
	code := "ABCD-EFGH-IJKL"
	fee := discountFee("0.005")
	fee.DiscountCode = code
	fee.MaxUsages = 1

	account := &models.UserAccount{ID: 42, AccountType: models.AccountTypePersonal}

	t.Run("first redemption succeeds", func(t *testing.T) {
		repo := new(MockFeeRepository)
		users := new(MockUserAccountService)
		publisher := new(MockFeeEventPublisher)
		repo.On("FindByDiscountCode", mock.Anything, code).Return(fee, nil)
		users.On("GetAccount", mock.Anything, int64(42)).Return(account, nil)
		users.On("CountFeeUsages", mock.Anything, fee.ID).Return(int64(0), nil)
		users.On("AddFeeAssignment", mock.Anything, int64(42), fee.ID).Return(nil)
		publisher.On("PublishDiscountRedeemed", mock.Anything, int64(42), fee).Return(nil)

		svc := newTestFeeService(repo, users, publisher)
		redeemed, err := svc.RedeemDiscountCode(context.Background(), 42, code)

		assert.NoError(t, err)
		assert.Equal(t, fee.ID, redeemed.ID)
		users.AssertCalled(t, "AddFeeAssignment", mock.Anything, int64(42), fee.ID)
	})

	t.Run("second redemption hits usage cap", func(t *testing.T) {
		repo := new(MockFeeRepository)
		users := new(MockUserAccountService)
		repo.On("FindByDiscountCode", mock.Anything, code).Return(fee, nil)
		users.On("GetAccount", mock.Anything, int64(43)).
			Return(&models.UserAccount{ID: 43, AccountType: models.AccountTypePersonal}, nil)
		users.On("CountFeeUsages", mock.Anything, fee.ID).Return(int64(1), nil)

		svc := newTestFeeService(repo, users, new(MockFeeEventPublisher))
		_, err := svc.RedeemDiscountCode(context.Background(), 43, code)

		assert.ErrorIs(t, err, ErrMaxUsagesReached)
	})

	t.Run("unknown code", func(t *testing.T) {
		repo := new(MockFeeRepository)
		repo.On("FindByDiscountCode", mock.Anything, "NOPE").
			Return(nil, notFound("discount code %s", "NOPE"))

		svc := newTestFeeService(repo, new(MockUserAccountService), new(MockFeeEventPublisher))
		_, err := svc.RedeemDiscountCode(context.Background(), 42, "NOPE")

		assert.ErrorIs(t, err, ErrDiscountCodeNotFound)
	})

	t.Run("expired fee", func(t *testing.T) {
		inactive := discountFee("0.005")
		inactive.DiscountCode = code
		inactive.Active = false

		repo := new(MockFeeRepository)
		users := new(MockUserAccountService)
		repo.On("FindByDiscountCode", mock.Anything, code).Return(inactive, nil)
		users.On("GetAccount", mock.Anything, int64(42)).Return(account, nil)

		svc := newTestFeeService(repo, users, new(MockFeeEventPublisher))
		_, err := svc.RedeemDiscountCode(context.Background(), 42, code)

		assert.ErrorIs(t, err, ErrFeeExpired)
	})

	t.Run("account type mismatch", func(t *testing.T) {
		restricted := discountFee("0.005")
		restricted.DiscountCode = code
		restricted.AccountType = models.AccountTypeBusiness

		repo := new(MockFeeRepository)
		users := new(MockUserAccountService)
		repo.On("FindByDiscountCode", mock.Anything, code).Return(restricted, nil)
		users.On("GetAccount", mock.Anything, int64(42)).Return(account, nil)

		svc := newTestFeeService(repo, users, new(MockFeeEventPublisher))
		_, err := svc.RedeemDiscountCode(context.Background(), 42, code)

		assert.ErrorIs(t, err, ErrAccountTypeMismatch)
	})

	t.Run("already assigned is a no-op", func(t *testing.T) {
		holder := &models.UserAccount{
			ID:          42,
			AccountType: models.AccountTypePersonal,
			FeeIDs:      []primitive.ObjectID{fee.ID},
		}

		repo := new(MockFeeRepository)
		users := new(MockUserAccountService)
		repo.On("FindByDiscountCode", mock.Anything, code).Return(fee, nil)
		users.On("GetAccount", mock.Anything, int64(42)).Return(holder, nil)

		svc := newTestFeeService(repo, users, new(MockFeeEventPublisher))
		redeemed, err := svc.RedeemDiscountCode(context.Background(), 42, code)

		assert.NoError(t, err)
		assert.Equal(t, fee.ID, redeemed.ID)
		users.AssertNotCalled(t, "AddFeeAssignment", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCreateFee(t *testing.T) {
	t.Run("duplicate label and direction", func(t *testing.T) {
		repo := new(MockFeeRepository)
		repo.On("FindByLabelAndDirection", mock.Anything, "existing", models.DirectionBuy).
			Return(baseFee("0.029"), nil)

		svc := newTestFeeService(repo, new(MockUserAccountService), new(MockFeeEventPublisher))
		_, err := svc.CreateFee(context.Background(), &CreateFeeRequest{
			Label:     "existing",
			Kind:      models.FeeKindBase,
			Direction: models.DirectionBuy,
		})

		assert.ErrorIs(t, err, ErrFeeAlreadyExists)
	})

	t.Run("fresh label succeeds", func(t *testing.T) {
		repo := new(MockFeeRepository)
		publisher := new(MockFeeEventPublisher)
		repo.On("FindByLabelAndDirection", mock.Anything, "new-fee", models.DirectionBuy).
			Return(nil, notFound("fee %q/%s", "new-fee", models.DirectionBuy))
		repo.On("Insert", mock.Anything, mock.AnythingOfType("*models.Fee")).Return(nil)
		publisher.On("PublishFeeCreated", mock.Anything, mock.AnythingOfType("*models.Fee")).Return(nil)

		svc := newTestFeeService(repo, new(MockUserAccountService), publisher)
		fee, err := svc.CreateFee(context.Background(), &CreateFeeRequest{
			Label:       "new-fee",
			Kind:        models.FeeKindBase,
			Direction:   models.DirectionBuy,
			Value:       decimal.RequireFromString("0.029"),
			AccountType: models.AccountTypePersonal,
			Assets:      []string{"BTC"},
		})

		assert.NoError(t, err)
		assert.Equal(t, "new-fee", fee.Label)
		repo.AssertCalled(t, "Insert", mock.Anything, mock.AnythingOfType("*models.Fee"))
	})

	t.Run("rate outside the unit interval is rejected", func(t *testing.T) {
		for _, value := range []string{"1", "1.5", "-0.01"} {
			repo := new(MockFeeRepository)
			repo.On("FindByLabelAndDirection", mock.Anything, "over-unit", models.Direction("")).
				Return(nil, notFound("fee %q/%s", "over-unit", models.Direction("")))

			svc := newTestFeeService(repo, new(MockUserAccountService), new(MockFeeEventPublisher))
			_, err := svc.CreateFee(context.Background(), &CreateFeeRequest{
				Label:       "over-unit",
				Kind:        models.FeeKindBase,
				Value:       decimal.RequireFromString(value),
				AccountType: models.AccountTypePersonal,
				Assets:      []string{"BTC"},
			})

			assert.Error(t, err, "value %s", value)
			repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		}
	})

	t.Run("base fee requires account type and assets", func(t *testing.T) {
		repo := new(MockFeeRepository)
		repo.On("FindByLabelAndDirection", mock.Anything, "bare-base", models.Direction("")).
			Return(nil, notFound("fee %q/%s", "bare-base", models.Direction("")))

		svc := newTestFeeService(repo, new(MockUserAccountService), new(MockFeeEventPublisher))
		_, err := svc.CreateFee(context.Background(), &CreateFeeRequest{
			Label: "bare-base",
			Kind:  models.FeeKindBase,
			Value: decimal.RequireFromString("0.029"),
		})

		assert.Error(t, err)
	})

	t.Run("discount with generated code", func(t *testing.T) {
		repo := new(MockFeeRepository)
		publisher := new(MockFeeEventPublisher)
		repo.On("FindByLabelAndDirection", mock.Anything, "summer", models.Direction("")).
			Return(nil, notFound("fee %q/%s", "summer", models.Direction("")))
		repo.On("Insert", mock.Anything, mock.AnythingOfType("*models.Fee")).Return(nil)
		publisher.On("PublishFeeCreated", mock.Anything, mock.AnythingOfType("*models.Fee")).Return(nil)

		svc := newTestFeeService(repo, new(MockUserAccountService), publisher)
		fee, err := svc.CreateFee(context.Background(), &CreateFeeRequest{
			Label:        "summer",
			Kind:         models.FeeKindDiscount,
			Value:        decimal.RequireFromString("0.005"),
			MaxUsages:    100,
			GenerateCode: true,
		})

		assert.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`), fee.DiscountCode)
		assert.True(t, fee.Active)
	})

	t.Run("generated code is deterministic", func(t *testing.T) {
		assert.Equal(t,
			generateDiscountCode("summer", models.FeeKindDiscount),
			generateDiscountCode("summer", models.FeeKindDiscount))
		assert.NotEqual(t,
			generateDiscountCode("summer", models.FeeKindDiscount),
			generateDiscountCode("winter", models.FeeKindDiscount))
	})

	t.Run("generated code only for discounts", func(t *testing.T) {
		repo := new(MockFeeRepository)
		repo.On("FindByLabelAndDirection", mock.Anything, "base-coded", models.Direction("")).
			Return(nil, notFound("fee %q/%s", "base-coded", models.Direction("")))

		svc := newTestFeeService(repo, new(MockUserAccountService), new(MockFeeEventPublisher))
		_, err := svc.CreateFee(context.Background(), &CreateFeeRequest{
			Label:        "base-coded",
			Kind:         models.FeeKindBase,
			AccountType:  models.AccountTypePersonal,
			Assets:       []string{"BTC"},
			GenerateCode: true,
		})

		assert.Error(t, err)
	})
}

func TestGrantSignUpFeesSkipsFailures(t *testing.T) {
	good := discountFee("0.005")
	account := &models.UserAccount{ID: 42, AccountType: models.AccountTypePersonal}

	repo := new(MockFeeRepository)
	users := new(MockUserAccountService)
	publisher := new(MockFeeEventPublisher)
	repo.On("FindByID", mock.Anything, good.ID).Return(good, nil)
	users.On("GetAccount", mock.Anything, int64(42)).Return(account, nil)
	users.On("AddFeeAssignment", mock.Anything, int64(42), good.ID).Return(nil)
	publisher.On("PublishAssignmentGranted", mock.Anything, int64(42), good.ID).Return(nil)

	svc := NewFeeService(repo, users, publisher, noopMetrics{}, &config.PricingConfig{
		DefaultAccountType: string(models.AccountTypePersonal),
		SignUpFeeIDs:       []string{"not-a-hex-id", good.ID.Hex()},
	})

	// The malformed ID is skipped, the valid fee is granted.
	svc.GrantSignUpFees(context.Background(), 42)
	users.AssertCalled(t, "AddFeeAssignment", mock.Anything, int64(42), good.ID)
}
