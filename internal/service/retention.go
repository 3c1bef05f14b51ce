package service

import (
	"context"
	"time"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/store"
)

// RetentionService deletes old scores. Scheduling is up to the caller.
type RetentionService struct {
	store  store.ScoreStore
	cache  Invalidator
	clock  clock.Clock
	logger *logger.Logger
}

// NewRetentionService creates a new retention service.
func NewRetentionService(s store.ScoreStore, cache Invalidator, clk clock.Clock, log *logger.Logger) *RetentionService {
	if log == nil {
		log = logger.Discard()
	}
	return &RetentionService{
		store:  s,
		cache:  cache,
		clock:  clk,
		logger: log.WithComponent("retention"),
	}
}

// Purge removes every entry submitted before cutoff and reports how many
// went. Safe to run while scores are being submitted and read.
func (s *RetentionService) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	if cutoff.After(s.clock.Now()) {
		return 0, domainerrors.MalformedInput("olderThan", "cutoff must not be in the future")
	}

	start := time.Now()
	n, err := s.store.PurgeOlderThan(ctx, cutoff)
	if n > 0 {
		// Even a partial purge may have removed top-N entries.
		s.cache.Invalidate()
	}
	if err != nil {
		s.logger.Error("retention purge failed", "cutoff", cutoff, "purged", n, "error", err)
		return n, store.ToDomain(err)
	}

	s.logger.Info("retention purge complete",
		"cutoff", cutoff,
		"purged", n,
		"took", time.Since(start),
	)
	return n, nil
}

// PurgeOlderThan removes entries older than maxAge.
func (s *RetentionService) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, domainerrors.MalformedInput("maxAge", "must be positive")
	}
	return s.Purge(ctx, s.clock.Now().Add(-maxAge))
}
