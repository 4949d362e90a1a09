package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricing-api/internal/clients"
	"pricing-api/internal/config"
	"pricing-api/internal/messaging"
	"pricing-api/internal/models"
	"pricing-api/internal/monitoring"
	"pricing-api/internal/repository"
)

// FeeService resolves the effective percentage fee for a transaction and
// manages the fee catalog: discount code redemption, sign-up grants, and
// administrative fee creation.
type FeeService interface {
	GetUserFee(ctx context.Context, userID int64, query models.FeeQuery) (*FeeResult, error)
	GetFeeForAccount(ctx context.Context, account *models.UserAccount, query models.FeeQuery) (*FeeResult, error)
	GetDefaultFee(ctx context.Context, query models.FeeQuery, accountType models.AccountType) (*FeeResult, error)
	RedeemDiscountCode(ctx context.Context, userID int64, code string) (*models.Fee, error)
	GrantFee(ctx context.Context, userID int64, feeID primitive.ObjectID) error
	GrantSignUpFees(ctx context.Context, userID int64)
	CreateFee(ctx context.Context, req *CreateFeeRequest) (*models.Fee, error)
}

// FeeResult carries the winning rate and the fees that produced it: one
// custom fee, or a base fee optionally paired with the discount applied on
// top of it.
type FeeResult struct {
	Rate decimal.Decimal `json:"rate"`
	Fees []*models.Fee   `json:"fees"`
}

// CreateFeeRequest is the administrative fee-creation payload.
type CreateFeeRequest struct {
	Label        string             `json:"label" binding:"required"`
	Kind         models.FeeKind     `json:"kind" binding:"required,feekind"`
	Direction    models.Direction   `json:"direction" binding:"omitempty,txdirection"`
	Value        decimal.Decimal    `json:"value"`
	AccountType  models.AccountType `json:"account_type"`
	Assets       []string           `json:"assets"`
	MaxTxVolume  *decimal.Decimal   `json:"max_tx_volume"`
	MaxUsages    int64              `json:"max_usages"`
	ExpiresAt    *time.Time         `json:"expires_at"`
	DiscountCode string             `json:"discount_code"`
	GenerateCode bool               `json:"generate_code"`
}

type feeService struct {
	repo      repository.FeeRepository
	users     clients.UserAccountService
	publisher messaging.FeeEventPublisher
	metrics   monitoring.MetricsService
	config    *config.PricingConfig
}

func NewFeeService(
	repo repository.FeeRepository,
	users clients.UserAccountService,
	publisher messaging.FeeEventPublisher,
	metrics monitoring.MetricsService,
	cfg *config.PricingConfig,
) FeeService {
	return &feeService{
		repo:      repo,
		users:     users,
		publisher: publisher,
		metrics:   metrics,
		config:    cfg,
	}
}

// GetUserFee resolves the effective fee for a known account, taking its
// individually assigned fees into account. Assigned fees found expired are
// unassigned asynchronously; the resolution itself never waits for that.
func (s *feeService) GetUserFee(ctx context.Context, userID int64, query models.FeeQuery) (*FeeResult, error) {
	account, err := s.users.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", userID, err)
	}
	return s.GetFeeForAccount(ctx, account, query)
}

// GetFeeForAccount is GetUserFee for callers that already hold the account
// record, saving a lookup against the users service.
func (s *feeService) GetFeeForAccount(ctx context.Context, account *models.UserAccount, query models.FeeQuery) (*FeeResult, error) {
	if query.AccountType == "" {
		query.AccountType = account.AccountType
	}

	candidates, expired, err := s.getValidFees(ctx, account, query)
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		s.dispatchAssignmentCleanup(account.ID, expired)
	}

	return s.calculateFee(candidates, query)
}

// GetDefaultFee resolves the fee for anonymous quoting: no account, no
// assigned fees, just the public base and codeless discount catalog.
func (s *feeService) GetDefaultFee(ctx context.Context, query models.FeeQuery, accountType models.AccountType) (*FeeResult, error) {
	if accountType == "" {
		accountType = models.AccountType(s.config.DefaultAccountType)
	}
	query.AccountType = accountType

	candidates, _, err := s.getValidFees(ctx, nil, query)
	if err != nil {
		return nil, err
	}
	return s.calculateFee(candidates, query)
}

// getValidFees loads the candidate set (base fees, codeless discounts, and
// any fee assigned to the account) and applies the matching filters. It
// returns the survivors plus the IDs of assigned fees that turned out to be
// expired, for the caller to garbage-collect.
func (s *feeService) getValidFees(ctx context.Context, account *models.UserAccount, query models.FeeQuery) ([]*models.Fee, []primitive.ObjectID, error) {
	var assignedIDs []primitive.ObjectID
	if account != nil {
		assignedIDs = account.FeeIDs
	}

	candidates, err := s.repo.FindCandidates(ctx, assignedIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fee candidates: %w", err)
	}

	now := time.Now()
	var valid []*models.Fee
	var expiredAssigned []primitive.ObjectID

	for _, fee := range candidates {
		if fee.Expired(now) {
			if account != nil && account.HasFee(fee.ID) {
				expiredAssigned = append(expiredAssigned, fee.ID)
			}
			continue
		}
		if !fee.Matches(query) {
			continue
		}
		valid = append(valid, fee)
	}

	return valid, expiredAssigned, nil
}

// calculateFee picks the winner: the lowest custom fee short-circuits
// everything; otherwise the lowest base fee reduced by the highest discount.
// A discount exceeding the base fee is logged and ignored, leaving the base
// fee in effect.
func (s *feeService) calculateFee(fees []*models.Fee, query models.FeeQuery) (*FeeResult, error) {
	var custom, base, discount *models.Fee

	for _, fee := range fees {
		switch fee.Kind {
		case models.FeeKindCustom:
			if custom == nil || fee.Value.LessThan(custom.Value) {
				custom = fee
			}
		case models.FeeKindBase:
			if base == nil || fee.Value.LessThan(base.Value) {
				base = fee
			}
		case models.FeeKindDiscount:
			if fee.Value.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if discount == nil || fee.Value.GreaterThan(discount.Value) {
				discount = fee
			}
		}
	}

	if custom != nil {
		s.metrics.IncrementFeeResolutions(string(models.FeeKindCustom))
		return &FeeResult{Rate: custom.Value, Fees: []*models.Fee{custom}}, nil
	}

	if base == nil {
		logrus.WithFields(logrus.Fields{
			"direction":    query.Direction,
			"asset":        query.Asset.Symbol,
			"account_type": query.AccountType,
		}).Error("No base fee configured for request")
		return nil, ErrBaseFeeMissing
	}

	rate := base.Value
	applied := []*models.Fee{base}
	if discount != nil {
		net := base.Value.Sub(discount.Value)
		if net.IsNegative() {
			logrus.WithFields(logrus.Fields{
				"base":     base.Label,
				"discount": discount.Label,
			}).Warn("Discount exceeds base fee, applying base fee without discount")
		} else {
			rate = net
			applied = append(applied, discount)
		}
	}

	s.metrics.IncrementFeeResolutions(string(models.FeeKindBase))
	return &FeeResult{Rate: rate, Fees: applied}, nil
}

// dispatchAssignmentCleanup unassigns expired fees in the background. The
// resolution that found them has already moved on; failures here are logged
// and retried on the next resolution that sees the same stale assignment.
func (s *feeService) dispatchAssignmentCleanup(userID int64, feeIDs []primitive.ObjectID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		for _, feeID := range feeIDs {
			if err := s.users.RemoveFeeAssignment(ctx, userID, feeID); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"user_id": userID,
					"fee_id":  feeID.Hex(),
				}).Warn("Failed to remove expired fee assignment")
				continue
			}
			if err := s.publisher.PublishAssignmentRemoved(ctx, userID, feeID); err != nil {
				logrus.WithError(err).Warn("Failed to publish assignment removal")
			}
		}
	}()
}

// RedeemDiscountCode validates the code and assigns its fee to the account.
// Redeeming a code the account already holds is a no-op success.
func (s *feeService) RedeemDiscountCode(ctx context.Context, userID int64, code string) (*models.Fee, error) {
	fee, err := s.repo.FindByDiscountCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.IncrementDiscountRedemptions("not_found")
			return nil, ErrDiscountCodeNotFound
		}
		return nil, fmt.Errorf("failed to look up discount code: %w", err)
	}

	account, err := s.users.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", userID, err)
	}
	if account.HasFee(fee.ID) {
		return fee, nil
	}

	if err := s.verifyFee(ctx, account, fee); err != nil {
		s.metrics.IncrementDiscountRedemptions("rejected")
		return nil, err
	}

	if err := s.users.AddFeeAssignment(ctx, userID, fee.ID); err != nil {
		return nil, fmt.Errorf("failed to assign fee %s to user %d: %w", fee.ID.Hex(), userID, err)
	}

	s.metrics.IncrementDiscountRedemptions("success")
	if err := s.publisher.PublishDiscountRedeemed(ctx, userID, fee); err != nil {
		logrus.WithError(err).Warn("Failed to publish discount redemption")
	}
	return fee, nil
}

// GrantFee assigns a fee by identifier, using the same validation as code
// redemption. Granting an already-assigned fee is a no-op success.
func (s *feeService) GrantFee(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	fee, err := s.repo.FindByID(ctx, feeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDiscountCodeNotFound
		}
		return fmt.Errorf("failed to load fee %s: %w", feeID.Hex(), err)
	}

	account, err := s.users.GetAccount(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load account %d: %w", userID, err)
	}
	if account.HasFee(fee.ID) {
		return nil
	}

	if err := s.verifyFee(ctx, account, fee); err != nil {
		return err
	}

	if err := s.users.AddFeeAssignment(ctx, userID, fee.ID); err != nil {
		return fmt.Errorf("failed to assign fee %s to user %d: %w", fee.ID.Hex(), userID, err)
	}

	if err := s.publisher.PublishAssignmentGranted(ctx, userID, fee.ID); err != nil {
		logrus.WithError(err).Warn("Failed to publish fee grant")
	}
	return nil
}

// GrantSignUpFees applies every configured sign-up fee to a fresh account.
// Individual failures are logged and skipped so one bad fee does not block
// registration.
func (s *feeService) GrantSignUpFees(ctx context.Context, userID int64) {
	for _, raw := range s.config.SignUpFeeIDs {
		feeID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			logrus.WithField("fee_id", raw).Warn("Invalid sign-up fee id in configuration")
			continue
		}
		if err := s.GrantFee(ctx, userID, feeID); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"fee_id":  raw,
			}).Warn("Failed to grant sign-up fee")
		}
	}
}

// verifyFee is the shared redemption/grant validation: the fee must not be
// expired, must match the account type, and must have redemptions left.
func (s *feeService) verifyFee(ctx context.Context, account *models.UserAccount, fee *models.Fee) error {
	if fee.Expired(time.Now()) {
		return ErrFeeExpired
	}
	if fee.AccountType != "" && fee.AccountType != account.AccountType {
		return ErrAccountTypeMismatch
	}
	if fee.MaxUsages > 0 {
		usages, err := s.users.CountFeeUsages(ctx, fee.ID)
		if err != nil {
			return fmt.Errorf("failed to count usages of fee %s: %w", fee.ID.Hex(), err)
		}
		if usages >= fee.MaxUsages {
			return ErrMaxUsagesReached
		}
	}
	return nil
}

// CreateFee stores an administratively defined fee. Discount fees can ask
// for a generated XXXX-XXXX-XXXX code derived from the label and kind.
func (s *feeService) CreateFee(ctx context.Context, req *CreateFeeRequest) (*models.Fee, error) {
	existing, err := s.repo.FindByLabelAndDirection(ctx, req.Label, req.Direction)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing fee: %w", err)
	}
	if existing != nil {
		return nil, ErrFeeAlreadyExists
	}

	one := decimal.NewFromInt(1)
	if req.Value.IsNegative() || req.Value.GreaterThanOrEqual(one) {
		return nil, fmt.Errorf("fee %q rate must be a fraction in [0, 1): %s", req.Label, req.Value)
	}
	if req.Kind == models.FeeKindBase && (req.AccountType == "" || len(req.Assets) == 0) {
		return nil, fmt.Errorf("base fee %q must carry an account type and an asset list", req.Label)
	}
	if req.GenerateCode && req.Kind != models.FeeKindDiscount {
		return nil, fmt.Errorf("only discount fees can carry a generated code")
	}

	code := req.DiscountCode
	if req.GenerateCode && code == "" {
		code = generateDiscountCode(req.Label, req.Kind)
	}
	if req.MaxUsages > 0 && code == "" {
		return nil, fmt.Errorf("fee %q with a usage cap must have a discount code", req.Label)
	}

	now := time.Now().UTC()
	fee := &models.Fee{
		Label:        req.Label,
		Kind:         req.Kind,
		Direction:    req.Direction,
		Value:        req.Value,
		AccountType:  req.AccountType,
		Assets:       req.Assets,
		MaxTxVolume:  req.MaxTxVolume,
		MaxUsages:    req.MaxUsages,
		ExpiresAt:    req.ExpiresAt,
		Active:       true,
		DiscountCode: code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, fee); err != nil {
		return nil, fmt.Errorf("failed to insert fee %q: %w", req.Label, err)
	}

	if err := s.publisher.PublishFeeCreated(ctx, fee); err != nil {
		logrus.WithError(err).Warn("Failed to publish fee creation")
	}
	return fee, nil
}

// generateDiscountCode derives a deterministic XXXX-XXXX-XXXX code from the
// fee's label and kind.
func generateDiscountCode(label string, kind models.FeeKind) string {
	sum := sha256.Sum256([]byte(label + string(kind)))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))
	return fmt.Sprintf("%s-%s-%s", hash[0:4], hash[4:8], hash[8:12])
}
