package worker

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"pricing-api/internal/cache"
	"pricing-api/internal/monitoring"
	"pricing-api/internal/repository"
)

const refreshLockKey = "spec-refresh"

// SpecRefresher reloads the specification cache on a cron schedule. The
// Redis lock keeps refreshes from running concurrently when several
// instances share the same database.
type SpecRefresher struct {
	specs    *cache.SpecCache
	lock     repository.RefreshLock
	metrics  monitoring.MetricsService
	schedule string
	lockTTL  time.Duration
	cron     *cron.Cron
}

func NewSpecRefresher(
	specs *cache.SpecCache,
	lock repository.RefreshLock,
	metrics monitoring.MetricsService,
	schedule string,
	lockTTL time.Duration,
) *SpecRefresher {
	return &SpecRefresher{
		specs:    specs,
		lock:     lock,
		metrics:  metrics,
		schedule: schedule,
		lockTTL:  lockTTL,
	}
}

// Start performs an initial synchronous refresh so the service never
// serves quotes from an empty cache, then schedules the periodic one.
func (r *SpecRefresher) Start(ctx context.Context) error {
	if err := r.refresh(ctx); err != nil {
		return err
	}

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, r.run); err != nil {
		return err
	}
	r.cron.Start()

	logrus.WithField("schedule", r.schedule).Info("Specification refresher started")
	return nil
}

func (r *SpecRefresher) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

func (r *SpecRefresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	held, err := r.lock.Acquire(ctx, refreshLockKey, r.lockTTL)
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			logrus.Debug("Specification refresh already running elsewhere")
			return
		}
		logrus.WithError(err).Warn("Failed to acquire refresh lock, refreshing anyway")
	} else {
		defer func() {
			if err := r.lock.Release(ctx, held); err != nil {
				logrus.WithError(err).Warn("Failed to release refresh lock")
			}
		}()
	}

	if err := r.refresh(ctx); err != nil {
		logrus.WithError(err).Error("Specification refresh failed")
	}
}

func (r *SpecRefresher) refresh(ctx context.Context) error {
	start := time.Now()
	err := r.specs.Refresh(ctx)
	r.metrics.RecordSpecRefresh(err == nil, time.Since(start))
	if err == nil {
		r.metrics.SetSpecCacheSize(r.specs.Size())
	}
	return err
}
