package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"pricing-api/internal/models"
	"pricing-api/internal/repository"
)

// SpecCache holds an immutable snapshot of all transaction specifications.
// Lookups never touch the database: they scan the snapshot in specificity
// order and fall back to the built-in default. Refresh swaps the whole
// snapshot atomically, so readers either see the old set or the new one,
// never a mix.
type SpecCache struct {
	repo     repository.SpecificationRepository
	snapshot atomic.Pointer[specSnapshot]
}

type specSnapshot struct {
	specs    []*models.TransactionSpecification
	loadedAt time.Time
}

func NewSpecCache(repo repository.SpecificationRepository) *SpecCache {
	c := &SpecCache{repo: repo}
	c.snapshot.Store(&specSnapshot{loadedAt: time.Time{}})
	return c
}

// Refresh reloads every specification from storage and swaps the snapshot.
// On failure the previous snapshot stays in place.
func (c *SpecCache) Refresh(ctx context.Context) error {
	specs, err := c.repo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh transaction specifications: %w", err)
	}

	c.snapshot.Store(&specSnapshot{
		specs:    specs,
		loadedAt: time.Now().UTC(),
	})

	logrus.WithField("count", len(specs)).Info("Transaction specifications refreshed")
	return nil
}

// Lookup returns the most specific specification for the query, or the
// built-in default (1 EUR fee, 1 EUR volume) when nothing matches.
func (c *SpecCache) Lookup(query models.SpecQuery) *models.TransactionSpecification {
	snap := c.snapshot.Load()
	for _, matches := range models.SpecMatchRanks {
		for _, spec := range snap.specs {
			if matches(spec, query) {
				return spec
			}
		}
	}
	return models.DefaultTransactionSpecification()
}

// Spec resolves the floors for one leg of a transaction, in EUR.
func (c *SpecCache) Spec(currency models.Currency, direction models.SpecDirection) models.TxSpec {
	spec := c.Lookup(models.SpecQuery{
		System:    currency.System,
		Asset:     currency.Symbol,
		Direction: direction,
	})
	return models.TxSpec{
		MinFee:    spec.MinFee,
		MinVolume: spec.MinVolume,
	}
}

// LoadedAt reports when the current snapshot was taken. The zero time
// means the cache has never been refreshed.
func (c *SpecCache) LoadedAt() time.Time {
	return c.snapshot.Load().loadedAt
}

// Size returns the number of cached specifications.
func (c *SpecCache) Size() int {
	return len(c.snapshot.Load().specs)
}
