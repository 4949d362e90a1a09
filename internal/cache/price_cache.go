package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"pricing-api/internal/models"
)

// PriceCache keeps recently fetched market prices in Redis so repeated
// quote requests for the same pair do not hammer the market service.
// Misses and Redis failures are equivalent: the caller falls through to
// the market client.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PriceCache{
		client: client,
		ttl:    ttl,
	}
}

func priceKey(source, target string) string {
	return fmt.Sprintf("price:%s:%s", source, target)
}

func (c *PriceCache) Get(ctx context.Context, source, target string) (*models.Price, bool) {
	data, err := c.client.Get(ctx, priceKey(source, target)).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"source": source,
				"target": target,
			}).Warn("Price cache lookup failed")
		}
		return nil, false
	}

	var price models.Price
	if err := json.Unmarshal([]byte(data), &price); err != nil {
		logrus.WithError(err).Warn("Failed to decode cached price")
		return nil, false
	}

	if err := price.Validate(); err != nil {
		return nil, false
	}
	return &price, true
}

func (c *PriceCache) Set(ctx context.Context, price *models.Price) {
	data, err := json.Marshal(price)
	if err != nil {
		logrus.WithError(err).Warn("Failed to encode price for cache")
		return
	}

	if err := c.client.Set(ctx, priceKey(price.Source, price.Target), data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"source": price.Source,
			"target": price.Target,
		}).Warn("Failed to cache price")
	}
}
