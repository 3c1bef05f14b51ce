// Package cache holds the materialized top-N leaderboard.
//
// A single snapshot is shared by all readers. Writers never recompute it:
// Invalidate only advances a generation counter, and the next reader to see a
// stale snapshot refreshes it on behalf of everyone waiting at that moment.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/domain"
	"github.com/punkouter26/podropsquare-server/internal/logger"
)

const refreshKey = "top"

// Source produces the ranked top-N entries.
type Source interface {
	RefreshTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// Leaderboard is the shared top-N snapshot. Safe for concurrent use.
type Leaderboard struct {
	source Source
	clock  clock.Clock
	topN   int
	ttl    time.Duration
	logger *logger.Logger

	current    atomic.Pointer[domain.Snapshot]
	generation atomic.Uint64
	group      singleflight.Group
}

// New creates a cache of the topN best entries, fresh for ttl after each
// refresh. A ttl of zero refreshes on every read.
func New(source Source, clk clock.Clock, topN int, ttl time.Duration, log *logger.Logger) *Leaderboard {
	if log == nil {
		log = logger.Discard()
	}
	return &Leaderboard{
		source: source,
		clock:  clk,
		topN:   topN,
		ttl:    ttl,
		logger: log.WithComponent("leaderboard_cache"),
	}
}

// TopN is the number of entries the snapshot holds.
func (c *Leaderboard) TopN() int { return c.topN }

// TTL is how long a snapshot stays fresh.
func (c *Leaderboard) TTL() time.Duration { return c.ttl }

// Invalidate marks the current snapshot stale. It never blocks and never
// touches the store.
func (c *Leaderboard) Invalidate() {
	c.generation.Add(1)
}

// Get returns a fresh snapshot, refreshing it if needed.
//
// If a refresh fails and an earlier snapshot exists, that snapshot is returned
// with Stale set. Without one the refresh error is returned.
func (c *Leaderboard) Get(ctx context.Context) (*domain.Snapshot, error) {
	if snap := c.current.Load(); c.fresh(snap) {
		return snap, nil
	}

	// The refresh outlives any single caller; each caller still honors its
	// own context while waiting.
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.fallback(res.Err)
		}
		return res.Val.(*domain.Snapshot), nil
	case <-ctx.Done():
		return c.fallback(ctx.Err())
	}
}

// Peek returns the current snapshot without refreshing, or nil before the
// first refresh.
func (c *Leaderboard) Peek() *domain.Snapshot {
	return c.current.Load()
}

func (c *Leaderboard) fresh(snap *domain.Snapshot) bool {
	if snap == nil || snap.Generation() != c.generation.Load() {
		return false
	}
	return c.clock.Now().Before(snap.ExpiresAt())
}

func (c *Leaderboard) refresh(ctx context.Context) (*domain.Snapshot, error) {
	// Read the generation first: an invalidation racing with the query leaves
	// this snapshot already stale, so the write it announced is never missed.
	gen := c.generation.Load()
	start := c.clock.Now()

	entries, err := c.source.RefreshTopN(ctx, c.topN)
	if err != nil {
		return nil, fmt.Errorf("refresh top %d: %w", c.topN, err)
	}

	snap := (&domain.Snapshot{
		Entries:        entries,
		GeneratedAt:    start,
		FreshnessToken: Token(entries),
		TTL:            c.ttl,
	}).WithGeneration(gen)

	for {
		old := c.current.Load()
		if old != nil && old.Generation() > gen {
			// A later refresh already landed; keep it.
			return snap, nil
		}
		if c.current.CompareAndSwap(old, snap) {
			break
		}
	}

	c.logger.Debug("leaderboard refreshed",
		"entries", len(entries),
		"generation", gen,
		"token", snap.FreshnessToken,
	)
	return snap, nil
}

func (c *Leaderboard) fallback(err error) (*domain.Snapshot, error) {
	prev := c.current.Load()
	if prev == nil {
		return nil, err
	}
	c.logger.Warn("serving stale leaderboard",
		"error", err,
		"generated_at", prev.GeneratedAt,
	)
	stale := *prev
	stale.Stale = true
	return &stale, nil
}

// Token fingerprints the ordered (rank, initials, score) tuples of entries as
// 16 hex digits. Equal content always yields an equal token.
func Token(entries []domain.LeaderboardEntry) string {
	d := xxhash.New()
	buf := make([]byte, 0, 64)
	for _, e := range entries {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(e.Rank), 10)
		buf = append(buf, 0x1f)
		buf = append(buf, e.PlayerInitials...)
		buf = append(buf, 0x1f)
		buf = strconv.AppendInt(buf, e.CalculatedScore, 10)
		buf = append(buf, 0x1e)
		_, _ = d.Write(buf)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
