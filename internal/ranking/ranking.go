// Package ranking computes exact leaderboard positions from the score store.
package ranking

import (
	"context"

	"github.com/punkouter26/podropsquare-server/internal/domain"
	"github.com/punkouter26/podropsquare-server/internal/store"
)

// Reader is the slice of store.ScoreStore the engine reads from.
type Reader interface {
	QueryTopN(ctx context.Context, n int) ([]*domain.ScoreEntry, error)
	QueryByPlayer(ctx context.Context, initials string) ([]*domain.ScoreEntry, error)
	CountOutranking(ctx context.Context, e *domain.ScoreEntry) (int, error)
}

// Engine answers rank queries. It keeps no state of its own: every answer is
// computed against the store, never against a cached snapshot.
type Engine struct {
	store Reader
}

// New creates an Engine over s.
func New(s Reader) *Engine {
	return &Engine{store: s}
}

// Rank returns e's 1-based position: one more than the number of stored
// entries strictly ahead of it.
func (r *Engine) Rank(ctx context.Context, e *domain.ScoreEntry) (int, error) {
	ahead, err := r.store.CountOutranking(ctx, e)
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// RefreshTopN reads the n best entries and assigns ranks 1..n.
func (r *Engine) RefreshTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	top, err := r.store.QueryTopN(ctx, n)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, len(top))
	for i, e := range top {
		entries[i] = domain.NewLeaderboardEntry(i+1, e)
	}
	return entries, nil
}

// PlayerStanding returns the player's best entry with its exact rank.
// A player with no entries yields a store NotFound error.
func (r *Engine) PlayerStanding(ctx context.Context, initials string) (*domain.Standing, error) {
	history, err := r.store.QueryByPlayer(ctx, initials)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, store.NotFound("player_standing", initials)
	}

	best := history[0]
	rank, err := r.Rank(ctx, best)
	if err != nil {
		return nil, err
	}
	return &domain.Standing{
		Best:    domain.NewLeaderboardEntry(rank, best),
		Entries: len(history),
	}, nil
}
