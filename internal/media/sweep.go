package media

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/activity-hub/backend/pkg/queue"
)

const sweepBatch = 500

// UnusedLister finds media no activity references.
type UnusedLister interface {
	ListUnused(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error)
}

// Sweeper periodically queues cleanup for media that was uploaded but never
// attached, or lost its activity without a release. Media younger than grace
// is left alone so an upload can still be attached.
type Sweeper struct {
	repo     UnusedLister
	queue    Enqueuer
	grace    time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. An interval of zero or less disables Run.
func NewSweeper(repo UnusedLister, q Enqueuer, grace, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{repo: repo, queue: q, grace: grace, interval: interval, now: time.Now, logger: logger}
}

// Sweep queues one cleanup job per unused media older than the grace period
// and returns how many were queued. The cleanup job rechecks usage.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.repo.ListUnused(ctx, s.now().Add(-s.grace), sweepBatch)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, id := range ids {
		if err := s.queue.EnqueueMediaCleanup(ctx, queue.MediaCleanupPayload{MediaID: id}); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// Run sweeps once, then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		n, err := s.Sweep(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			s.logger.Warn("media sweep failed", zap.Int("queued", n), zap.Error(err))
		case n > 0:
			s.logger.Info("queued orphan media cleanup", zap.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
