package service

import (
	"context"
	"errors"
	"time"

	"github.com/punkouter26/podropsquare-server/internal/cache"
	"github.com/punkouter26/podropsquare-server/internal/domain"
	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/ranking"
	"github.com/punkouter26/podropsquare-server/internal/store"
	"github.com/punkouter26/podropsquare-server/internal/validation"
)

// LeaderboardService owns the read path.
type LeaderboardService struct {
	cache  *cache.Leaderboard
	ranker *ranking.Engine
	logger *logger.Logger
}

// NewLeaderboardService creates a new leaderboard service.
func NewLeaderboardService(c *cache.Leaderboard, ranker *ranking.Engine, log *logger.Logger) *LeaderboardService {
	if log == nil {
		log = logger.Discard()
	}
	return &LeaderboardService{
		cache:  c,
		ranker: ranker,
		logger: log.WithComponent("leaderboard"),
	}
}

// Top returns the cached leaderboard cut to limit entries. A limit of zero or
// one beyond the cached size returns the whole snapshot.
//
// A cut snapshot carries its own freshness token, so a client switching
// limits never revalidates against the wrong view.
func (s *LeaderboardService) Top(ctx context.Context, limit int) (*domain.Snapshot, error) {
	snap, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Error("leaderboard unavailable", "error", err)
		return nil, store.ToDomain(err)
	}
	if limit <= 0 || limit >= len(snap.Entries) {
		return snap, nil
	}

	cut := *snap
	cut.Entries = snap.Top(limit)
	cut.FreshnessToken = cache.Token(cut.Entries)
	return &cut, nil
}

// MaxLimit is the largest leaderboard the cache can serve.
func (s *LeaderboardService) MaxLimit() int {
	return s.cache.TopN()
}

// Peek returns the cached snapshot without refreshing it, or nil.
func (s *LeaderboardService) Peek() *domain.Snapshot {
	return s.cache.Peek()
}

// CacheTTL is how long a served snapshot stays fresh.
func (s *LeaderboardService) CacheTTL() time.Duration {
	return s.cache.TTL()
}

// Standing returns a player's best entry and its exact rank, computed against
// the store rather than the cached top-N.
func (s *LeaderboardService) Standing(ctx context.Context, initials string) (*domain.Standing, error) {
	initials, err := validation.NormalizeInitials(initials)
	if err != nil {
		return nil, err
	}
	standing, err := s.ranker.PlayerStanding(ctx, initials)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("no scores recorded for %s", initials).WithCause(err)
		}
		return nil, store.ToDomain(err)
	}
	return standing, nil
}
