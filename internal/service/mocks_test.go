package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricing-api/internal/models"
)

type MockFeeRepository struct {
	mock.Mock
}

func (m *MockFeeRepository) Insert(ctx context.Context, fee *models.Fee) error {
	args := m.Called(ctx, fee)
	return args.Error(0)
}

func (m *MockFeeRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Fee, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fee), args.Error(1)
}

func (m *MockFeeRepository) FindByLabelAndDirection(ctx context.Context, label string, direction models.Direction) (*models.Fee, error) {
	args := m.Called(ctx, label, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fee), args.Error(1)
}

func (m *MockFeeRepository) FindByDiscountCode(ctx context.Context, code string) (*models.Fee, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Fee), args.Error(1)
}

func (m *MockFeeRepository) FindCandidates(ctx context.Context, assignedIDs []primitive.ObjectID) ([]*models.Fee, error) {
	args := m.Called(ctx, assignedIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Fee), args.Error(1)
}

type MockSpecificationRepository struct {
	mock.Mock
}

func (m *MockSpecificationRepository) FindAll(ctx context.Context) ([]*models.TransactionSpecification, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TransactionSpecification), args.Error(1)
}

type MockUserAccountService struct {
	mock.Mock
}

func (m *MockUserAccountService) GetAccount(ctx context.Context, userID int64) (*models.UserAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserAccount), args.Error(1)
}

func (m *MockUserAccountService) AddFeeAssignment(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	args := m.Called(ctx, userID, feeID)
	return args.Error(0)
}

func (m *MockUserAccountService) RemoveFeeAssignment(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	args := m.Called(ctx, userID, feeID)
	return args.Error(0)
}

func (m *MockUserAccountService) CountFeeUsages(ctx context.Context, feeID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, feeID)
	return args.Get(0).(int64), args.Error(1)
}

type MockFeeEventPublisher struct {
	mock.Mock
}

func (m *MockFeeEventPublisher) PublishFeeCreated(ctx context.Context, fee *models.Fee) error {
	args := m.Called(ctx, fee)
	return args.Error(0)
}

func (m *MockFeeEventPublisher) PublishDiscountRedeemed(ctx context.Context, userID int64, fee *models.Fee) error {
	args := m.Called(ctx, userID, fee)
	return args.Error(0)
}

func (m *MockFeeEventPublisher) PublishAssignmentGranted(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	args := m.Called(ctx, userID, feeID)
	return args.Error(0)
}

func (m *MockFeeEventPublisher) PublishAssignmentRemoved(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	args := m.Called(ctx, userID, feeID)
	return args.Error(0)
}

func (m *MockFeeEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockPriceProvider struct {
	mock.Mock
}

func (m *MockPriceProvider) GetPrice(ctx context.Context, from, to models.Currency) (*models.Price, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Price), args.Error(1)
}

// noopMetrics satisfies monitoring.MetricsService for tests.
type noopMetrics struct{}

func (noopMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (noopMetrics) RecordQuote(direction string, valid bool, duration time.Duration) {}
func (noopMetrics) IncrementQuoteErrors(direction, errorType string)                 {}
func (noopMetrics) IncrementFeeResolutions(kind string)                              {}
func (noopMetrics) IncrementDiscountRedemptions(status string)                       {}
func (noopMetrics) RecordSpecRefresh(success bool, duration time.Duration)           {}
func (noopMetrics) SetSpecCacheSize(size int)                                        {}
func (noopMetrics) RecordExternalServiceCall(service, operation string, success bool, duration time.Duration) {
}
