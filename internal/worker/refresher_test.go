package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pricing-api/internal/cache"
	"pricing-api/internal/models"
	"pricing-api/internal/repository"
)

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

type MockRefreshLock struct {
	mock.Mock
}

func (m *MockRefreshLock) Acquire(ctx context.Context, key string, ttl time.Duration) (*repository.HeldLock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.HeldLock), args.Error(1)
}

func (m *MockRefreshLock) Release(ctx context.Context, lock *repository.HeldLock) error {
	args := m.Called(ctx, lock)
	return args.Error(0)
}

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

func testSpecs() []*models.TransactionSpecification {
	return []*models.TransactionSpecification{
		{
			System:    models.FiatSystem,
			MinFee:    decimal.NewFromInt(1),
			MinVolume: decimal.NewFromInt(10),
		},
	}
}

func TestRunSkipsWhenLockHeldElsewhere(t *testing.T) {
	repo := new(MockSpecificationRepository)
	lock := new(MockRefreshLock)
	// The real lock wraps the sentinel with the key it failed on.
	lock.On("Acquire", mock.Anything, refreshLockKey, mock.Anything).
		Return(nil, fmt.Errorf("lock %s: %w", refreshLockKey, repository.ErrLockHeld))

	refresher := NewSpecRefresher(cache.NewSpecCache(repo), lock, noopMetrics{}, "@hourly", time.Minute)
	refresher.run()

	// Another instance is refreshing; this one must not hit the database or
	// touch the lock again.
	repo.AssertNotCalled(t, "FindAll", mock.Anything)
	lock.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestRunRefreshesWhenLockAcquired(t *testing.T) {
	repo := new(MockSpecificationRepository)
	repo.On("FindAll", mock.Anything).Return(testSpecs(), nil)

	held := &repository.HeldLock{Key: "lock:" + refreshLockKey, Value: "token"}
	lock := new(MockRefreshLock)
	lock.On("Acquire", mock.Anything, refreshLockKey, mock.Anything).Return(held, nil)
	lock.On("Release", mock.Anything, held).Return(nil)

	specs := cache.NewSpecCache(repo)
	refresher := NewSpecRefresher(specs, lock, noopMetrics{}, "@hourly", time.Minute)
	refresher.run()

	assert.Equal(t, 1, specs.Size())
	lock.AssertCalled(t, "Release", mock.Anything, held)
}

func TestRunRefreshesOnLockError(t *testing.T) {
	repo := new(MockSpecificationRepository)
	repo.On("FindAll", mock.Anything).Return(testSpecs(), nil)

	lock := new(MockRefreshLock)
	lock.On("Acquire", mock.Anything, refreshLockKey, mock.Anything).
		Return(nil, fmt.Errorf("failed to acquire lock %s: connection refused", refreshLockKey))

	specs := cache.NewSpecCache(repo)
	refresher := NewSpecRefresher(specs, lock, noopMetrics{}, "@hourly", time.Minute)
	refresher.run()

	// A broken lock degrades to refreshing anyway rather than going stale.
	assert.Equal(t, 1, specs.Size())
}
