// Package store persists accepted score entries.
//
// The store is append-only apart from bulk retention: there is no update and no
// delete by content. Every backend orders entries by the leaderboard's total
// order (score descending, earlier submission first, then id).
package store

import (
	"context"
	"time"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

// ScoreStore is implemented by every storage backend.
// All methods return *Error on failure.
type ScoreStore interface {
	// Append persists a new entry. Fails with KindConflict if the id is taken.
	Append(ctx context.Context, e *domain.ScoreEntry) error
	// QueryByPlayer returns all of a player's entries in leaderboard order.
	QueryByPlayer(ctx context.Context, initials string) ([]*domain.ScoreEntry, error)
	// QueryTopN returns the n best entries in leaderboard order.
	QueryTopN(ctx context.Context, n int) ([]*domain.ScoreEntry, error)
	// QueryByID returns the entry with id, or a KindNotFound error.
	QueryByID(ctx context.Context, id string) (*domain.ScoreEntry, error)
	// CountOutranking counts stored entries strictly ahead of e.
	CountOutranking(ctx context.Context, e *domain.ScoreEntry) (int, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	// PurgeOlderThan removes entries submitted before cutoff and returns how
	// many were removed. Safe to run alongside reads and appends.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// DefaultPurgeTimeout bounds a retention sweep unless WithPurgeTimeout says
// otherwise.
const DefaultPurgeTimeout = 10 * time.Minute

// Bounded wraps a ScoreStore so every call runs under its own deadline.
// A zero timeout leaves calls unbounded.
type Bounded struct {
	ScoreStore
	timeout      time.Duration
	purgeTimeout time.Duration
}

// WithTimeout bounds every call on s by timeout. Retention sweeps get the
// longer DefaultPurgeTimeout.
func WithTimeout(s ScoreStore, timeout time.Duration) *Bounded {
	b := &Bounded{ScoreStore: s, timeout: timeout}
	if timeout > 0 {
		b.purgeTimeout = DefaultPurgeTimeout
	}
	return b
}

// WithPurgeTimeout sets the deadline for PurgeOlderThan.
func (b *Bounded) WithPurgeTimeout(d time.Duration) *Bounded {
	b.purgeTimeout = d
	return b
}

func (b *Bounded) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return withDeadline(ctx, b.timeout)
}

func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// Append implements ScoreStore.
func (b *Bounded) Append(ctx context.Context, e *domain.ScoreEntry) error {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.ScoreStore.Append(ctx, e)
}

// QueryByPlayer implements ScoreStore.
func (b *Bounded) QueryByPlayer(ctx context.Context, initials string) ([]*domain.ScoreEntry, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.ScoreStore.QueryByPlayer(ctx, initials)
}

// QueryTopN implements ScoreStore.
func (b *Bounded) QueryTopN(ctx context.Context, n int) ([]*domain.ScoreEntry, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.ScoreStore.QueryTopN(ctx, n)
}

// QueryByID implements ScoreStore.
func (b *Bounded) QueryByID(ctx context.Context, id string) (*domain.ScoreEntry, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.ScoreStore.QueryByID(ctx, id)
}

// CountOutranking implements ScoreStore.
func (b *Bounded) CountOutranking(ctx context.Context, e *domain.ScoreEntry) (int, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.ScoreStore.CountOutranking(ctx, e)
}

// Count implements ScoreStore.
func (b *Bounded) Count(ctx context.Context) (int, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.ScoreStore.Count(ctx)
}

// PurgeOlderThan runs under the purge timeout, which is longer than the
// per-call one since a sweep may touch many rows.
func (b *Bounded) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, cancel := withDeadline(ctx, b.purgeTimeout)
	defer cancel()
	return b.ScoreStore.PurgeOlderThan(ctx, cutoff)
}
