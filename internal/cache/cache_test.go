package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punkouter26/podropsquare-server/internal/cache"
	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/domain"
	"github.com/punkouter26/podropsquare-server/internal/ranking"
	"github.com/punkouter26/podropsquare-server/internal/store"
	"github.com/punkouter26/podropsquare-server/internal/store/storetest"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// fakeSource serves entries and counts refreshes.
type fakeSource struct {
	mu      sync.Mutex
	entries []domain.LeaderboardEntry
	err     error
	gate    chan struct{}
	calls   atomic.Int32
}

func (f *fakeSource) RefreshTopN(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := f.entries
	if len(out) > n {
		out = out[:n]
	}
	return append([]domain.LeaderboardEntry(nil), out...), nil
}

func (f *fakeSource) set(entries []domain.LeaderboardEntry, err error) {
	f.mu.Lock()
	f.entries, f.err = entries, err
	f.mu.Unlock()
}

func board(pairs ...any) []domain.LeaderboardEntry {
	var out []domain.LeaderboardEntry
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.LeaderboardEntry{
			Rank:            len(out) + 1,
			PlayerInitials:  pairs[i].(string),
			CalculatedScore: int64(pairs[i+1].(int)),
		})
	}
	return out
}

func setup(ttl time.Duration) (*cache.Leaderboard, *fakeSource, *clock.Manual) {
	src := &fakeSource{entries: board("AAA", 900, "BBB", 500)}
	clk := clock.NewManual(t0)
	return cache.New(src, clk, 10, ttl, nil), src, clk
}

func TestGet_IdempotentWithinTTL(t *testing.T) {
	c, src, clk := setup(5 * time.Second)
	ctx := context.Background()

	first, err := c.Get(ctx)
	require.NoError(t, err)

	clk.Advance(4 * time.Second)
	second, err := c.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.FreshnessToken, second.FreshnessToken)
	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.False(t, second.Stale)
	assert.Equal(t, t0, first.GeneratedAt)
}

func TestGet_RefreshesAfterTTL(t *testing.T) {
	c, src, clk := setup(5 * time.Second)
	ctx := context.Background()

	_, err := c.Get(ctx)
	require.NoError(t, err)

	clk.Advance(5 * time.Second)
	snap, err := c.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, t0.Add(5*time.Second), snap.GeneratedAt)
}

func TestInvalidate(t *testing.T) {
	c, src, _ := setup(time.Minute)
	ctx := context.Background()

	before, err := c.Get(ctx)
	require.NoError(t, err)

	t.Run("changed top-N changes token", func(t *testing.T) {
		src.set(board("NEW", 2000, "AAA", 900, "BBB", 500), nil)
		c.Invalidate()

		after, err := c.Get(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, before.FreshnessToken, after.FreshnessToken)
		assert.Equal(t, "NEW", after.Entries[0].PlayerInitials)
	})

	t.Run("unchanged top-N keeps token", func(t *testing.T) {
		current, err := c.Get(ctx)
		require.NoError(t, err)

		c.Invalidate()
		again, err := c.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, current.FreshnessToken, again.FreshnessToken)
	})

	assert.Equal(t, int32(3), src.calls.Load())
}

func TestGet_CoalescesConcurrentMisses(t *testing.T) {
	c, src, _ := setup(time.Minute)
	src.gate = make(chan struct{})

	const readers = 50
	var wg sync.WaitGroup
	tokens := make([]string, readers)
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := c.Get(context.Background())
			if err == nil {
				tokens[i] = snap.FreshnessToken
			}
		}()
	}

	// Let the readers pile up behind the one in-flight refresh.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
}

func TestGet_StaleFallback(t *testing.T) {
	c, src, _ := setup(time.Minute)
	ctx := context.Background()

	good, err := c.Get(ctx)
	require.NoError(t, err)

	src.set(nil, errors.New("store down"))
	c.Invalidate()

	snap, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	assert.Equal(t, good.FreshnessToken, snap.FreshnessToken)
	assert.False(t, c.Peek().Stale, "the shared snapshot is never marked stale")

	// Recovery replaces the stale answer.
	src.set(board("AAA", 900, "BBB", 500), nil)
	snap, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Stale)
}

func TestGet_ErrorWithoutPriorSnapshot(t *testing.T) {
	c, src, _ := setup(time.Minute)
	src.set(nil, errors.New("store down"))

	snap, err := c.Get(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, err.Error(), "store down")
}

func TestGet_CallerContextCanceled(t *testing.T) {
	c, src, _ := setup(time.Minute)
	src.gate = make(chan struct{})
	defer close(src.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestToken(t *testing.T) {
	base := board("AAA", 900, "BBB", 500)

	assert.Len(t, cache.Token(base), 16)
	assert.Equal(t, cache.Token(base), cache.Token(board("AAA", 900, "BBB", 500)))
	assert.Len(t, cache.Token(nil), 16)

	tests := []struct {
		name    string
		entries []domain.LeaderboardEntry
	}{
		{"score changed", board("AAA", 901, "BBB", 500)},
		{"initials changed", board("AAB", 900, "BBB", 500)},
		{"order swapped", board("BBB", 500, "AAA", 900)},
		{"entry added", board("AAA", 900, "BBB", 500, "CCC", 100)},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, cache.Token(base), cache.Token(tt.entries))
		})
	}
}

func TestToken_IgnoresNonRankingFields(t *testing.T) {
	a := board("AAA", 900)
	b := board("AAA", 900)
	b[0].ID = "other"
	b[0].SurvivalTimeSeconds = 9.5
	b[0].AchievedAt = t0

	assert.Equal(t, cache.Token(a), cache.Token(b))
}

func TestLeaderboard_OverStore(t *testing.T) {
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i, score := range []int64{500, 400, 300} {
		require.NoError(t, s.Append(ctx, storetest.Entry(t, "TOP", score, time.Duration(i)*time.Second)))
	}

	clk := clock.NewManual(t0)
	c := cache.New(ranking.New(s), clk, 3, 5*time.Second, nil)

	before, err := c.Get(ctx)
	require.NoError(t, err)
	require.Len(t, before.Entries, 3)

	// Below the top 3: content stays correct after invalidation.
	require.NoError(t, s.Append(ctx, storetest.Entry(t, "LOW", 10, time.Minute)))
	c.Invalidate()
	after, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.FreshnessToken, after.FreshnessToken)

	// Into the top 3: the token moves.
	require.NoError(t, s.Append(ctx, storetest.Entry(t, "NEW", 450, time.Minute)))
	c.Invalidate()
	after, err = c.Get(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.FreshnessToken, after.FreshnessToken)
	assert.Equal(t, "NEW", after.Entries[1].PlayerInitials)
	assert.Equal(t, 2, after.Entries[1].Rank)
}
