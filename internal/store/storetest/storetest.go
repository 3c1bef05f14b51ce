// Package storetest holds behavior tests shared by every ScoreStore backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punkouter26/podropsquare-server/internal/domain"
	"github.com/punkouter26/podropsquare-server/internal/id"
	"github.com/punkouter26/podropsquare-server/internal/store"
)

// Base is the submission instant the helpers count from.
var Base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// Entry builds an entry submitted offset after Base.
func Entry(t testing.TB, initials string, score int64, offset time.Duration) *domain.ScoreEntry {
	t.Helper()
	at := Base.Add(offset)
	entryID, err := id.NewScoreID(at)
	require.NoError(t, err)
	return &domain.ScoreEntry{
		ID:                  entryID,
		PlayerInitials:      initials,
		SurvivalTimeSeconds: float64(score) / 100,
		CalculatedScore:     score,
		SubmittedAt:         at,
		ClientClaimedAt:     at.Add(-time.Second),
	}
}

// Factory opens a fresh, empty store. It should register its own cleanup.
type Factory func(t *testing.T) store.ScoreStore

// Run exercises the ScoreStore contract against stores made by open.
func Run(t *testing.T, open Factory) {
	t.Run("AppendAndQueryByID", func(t *testing.T) { testAppendAndQueryByID(t, open(t)) })
	t.Run("AppendConflict", func(t *testing.T) { testAppendConflict(t, open(t)) })
	t.Run("QueryByIDNotFound", func(t *testing.T) { testQueryByIDNotFound(t, open(t)) })
	t.Run("QueryTopNOrder", func(t *testing.T) { testQueryTopNOrder(t, open(t)) })
	t.Run("QueryTopNEdges", func(t *testing.T) { testQueryTopNEdges(t, open(t)) })
	t.Run("QueryByPlayer", func(t *testing.T) { testQueryByPlayer(t, open(t)) })
	t.Run("CountOutranking", func(t *testing.T) { testCountOutranking(t, open(t)) })
	t.Run("PurgeOlderThan", func(t *testing.T) { testPurgeOlderThan(t, open(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, open(t)) })
	t.Run("CanceledContext", func(t *testing.T) { testCanceledContext(t, open(t)) })
}

func testAppendAndQueryByID(t *testing.T, s store.ScoreStore) {
	ctx := context.Background()
	e := Entry(t, "ABC", 2325, 0)
	e.SurvivalTimeSeconds = 15.75

	require.NoError(t, s.Append(ctx, e))

	got, err := s.QueryByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "ABC", got.PlayerInitials)
	assert.Equal(t, int64(2325), got.CalculatedScore)
	assert.InDelta(t, 15.75, got.SurvivalTimeSeconds, 1e-9)
	assert.True(t, e.SubmittedAt.Equal(got.SubmittedAt))
	assert.True(t, e.ClientClaimedAt.Equal(got.ClientClaimedAt))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testAppendConflict(t *testing.T, s store.ScoreStore) {
	ctx := context.Background()
	e := Entry(t, "ABC", 1000, 0)
	require.NoError(t, s.Append(ctx, e))

	dup := *e
	dup.CalculatedScore = 5000
	err := s.Append(ctx, &dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConflict)

	// The original row is untouched and no stray index was written.
	got, err := s.QueryByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.CalculatedScore)

	top, err := s.QueryTopN(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func testQueryByIDNotFound(t *testing.T, s store.ScoreStore) {
	_, err := s.QueryByID(context.Background(), "7fffffffffffffff-nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "query_by_id", se.Op)
}

func testQueryTopNOrder(t *testing.T, s store.ScoreStore) {
	ctx := context.Background()
	entries := []*domain.ScoreEntry{
		Entry(t, "AAA", 500, 1*time.Second),
		Entry(t, "BBB", 900, 2*time.Second),
		Entry(t, "CCC", 900, 1*time.Second), // ties BBB, submitted earlier
		Entry(t, "DDD", 100, 0),
		Entry(t, "EEE", 700, 5*time.Second),
	}
	for _, e := range entries {
		require.NoError(t, s.Append(ctx, e))
	}

	top, err := s.QueryTopN(ctx, 4)
	require.NoError(t, err)
	require.Len(t, top, 4)

	var got []string
	for _, e := range top {
		got = append(got, e.PlayerInitials)
	}
	assert.Equal(t, []string{"CCC", "BBB", "EEE", "AAA"}, got)

	for i := 1; i < len(top); i++ {
		assert.True(t, top[i-1].Outranks(top[i]), "entry %d should outrank entry %d", i-1, i)
	}
}

func testQueryTopNEdges(t *testing.T, s store.ScoreStore) {
	ctx := context.Background()

	top, err := s.QueryTopN(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	for i := range 3 {
		require.NoError(t, s.Append(ctx, Entry(t, "AB", int64(100*(i+1)), time.Duration(i)*time.Second)))
	}

	top, err = s.QueryTopN(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, top, 3)

	top, err = s.QueryTopN(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func testQueryByPlayer(t *testing.T, s store.ScoreStore) {
	ctx := context.Background()
	for i, score := range []int64{300, 1200, 800} {
		require.NoError(t, s.Append(ctx, Entry(t, "ABC", score, time.Duration(i)*time.Second)))
	}
	// Initials that share a prefix must not leak into each other's partition.
	require.NoError(t, s.Append(ctx, Entry(t, "AB", 5000, 0)))
	require.NoError(t, s.Append(ctx, Entry(t, "ABC", 50, 10*time.Second)))

	history, err := s.QueryByPlayer(ctx, "ABC")
	require.NoError(t, err)
	require.Len(t, history, 4)
	for _, e := range history {
		assert.Equal(t, "ABC", e.PlayerInitials)
	}
	assert.Equal(t, int64(1200), history[0].CalculatedScore)
	assert.Equal(t, int64(50), history[3].CalculatedScore)

	none, err := s.QueryByPlayer(ctx, "ZZZ")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testCountOutranking(t *testing.T, s store.ScoreStore) {
	ctx := context.Background()
	var all []*domain.ScoreEntry
	for i := range 60 {
		e := Entry(t, fmt.Sprintf("P%d", i%10), int64((i*37)%1000), time.Duration(i)*time.Millisecond)
		require.NoError(t, s.Append(ctx, e))
		all = append(all, e)
	}

	for _, e := range all {
		want := 0
		for _, other := range all {
			if other.Outranks(e) {
				want++
			}
		}
		got, err := s.CountOutranking(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, want, got, "entry %s score %d", e.ID, e.CalculatedScore)
	}

	// An entry that is not stored is ranked against everything that is.
	best := Entry(t, "TOP", 100000, time.Hour)
	n, err := s.CountOutranking(ctx, best)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testPurgeOlderThan(t *testing.T, s store.ScoreStore) {
	ctx := context.Background()
	var old, recent []*domain.ScoreEntry
	for i := range 5 {
		e := Entry(t, "OLD", int64(9000+i), -time.Duration(i+1)*time.Hour)
		old = append(old, e)
		require.NoError(t, s.Append(ctx, e))
	}
	for i := range 3 {
		e := Entry(t, "NEW", int64(100+i), time.Duration(i)*time.Minute)
		recent = append(recent, e)
		require.NoError(t, s.Append(ctx, e))
	}

	purged, err := s.PurgeOlderThan(ctx, Base)
	require.NoError(t, err)
	assert.Equal(t, 5, purged)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, e := range old {
		_, err := s.QueryByID(ctx, e.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}

	// Index partitions are purged along with the rows.
	top, err := s.QueryTopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, recent[2].ID, top[0].ID)

	history, err := s.QueryByPlayer(ctx, "OLD")
	require.NoError(t, err)
	assert.Empty(t, history)

	// The entry submitted exactly at the cutoff survives.
	again, err := s.PurgeOlderThan(ctx, Base)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func testConcurrentAppends(t *testing.T, s store.ScoreStore) {
	ctx := context.Background()
	const writers = 20

	entries := make([]*domain.ScoreEntry, writers)
	for i := range entries {
		entries[i] = Entry(t, "CON", int64(i*10), time.Duration(i)*time.Microsecond)
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Append(ctx, e)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers, n)
}

func testCanceledContext(t *testing.T, s store.ScoreStore) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := Entry(t, "ABC", 100, 0)
	err := s.Append(ctx, e)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTimeout)

	_, err = s.QueryTopN(ctx, 10)
	assert.ErrorIs(t, err, store.ErrTimeout)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "canceled append must not persist")
}
