package ranking_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punkouter26/podropsquare-server/internal/ranking"
	"github.com/punkouter26/podropsquare-server/internal/store"
	"github.com/punkouter26/podropsquare-server/internal/store/storetest"
)

func setupEngine(t *testing.T) (*ranking.Engine, store.ScoreStore) {
	t.Helper()
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return ranking.New(s), s
}

func TestRank_MonotonicInScore(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	for i := range 50 {
		require.NoError(t, s.Append(ctx, storetest.Entry(t, fmt.Sprintf("R%d", i), int64(100+i*10), time.Duration(i)*time.Second)))
	}

	low := storetest.Entry(t, "LOW", 50, time.Hour)
	mid := storetest.Entry(t, "MID", 345, time.Hour)
	high := storetest.Entry(t, "HI", 10000, time.Hour)

	lowRank, err := engine.Rank(ctx, low)
	require.NoError(t, err)
	midRank, err := engine.Rank(ctx, mid)
	require.NoError(t, err)
	highRank, err := engine.Rank(ctx, high)
	require.NoError(t, err)

	assert.Equal(t, 51, lowRank)
	assert.Equal(t, 1, highRank)
	assert.Less(t, highRank, midRank)
	assert.Less(t, midRank, lowRank)
}

func TestRank_EarlierSubmissionWinsTie(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	first := storetest.Entry(t, "AAA", 1000, 0)
	second := storetest.Entry(t, "BBB", 1000, time.Second)
	require.NoError(t, s.Append(ctx, second))
	require.NoError(t, s.Append(ctx, first))

	r1, err := engine.Rank(ctx, first)
	require.NoError(t, err)
	r2, err := engine.Rank(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, 1, r1)
	assert.Equal(t, 2, r2)
}

func TestRefreshTopN(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	for i, score := range []int64{300, 900, 600, 100} {
		require.NoError(t, s.Append(ctx, storetest.Entry(t, fmt.Sprintf("P%d", i), score, 0)))
	}

	top, err := engine.RefreshTopN(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)

	for i, e := range top {
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, int64(900), top[0].CalculatedScore)
	assert.Equal(t, int64(600), top[1].CalculatedScore)
	assert.Equal(t, int64(300), top[2].CalculatedScore)
	assert.True(t, storetest.Base.Equal(top[0].AchievedAt))
}

func TestRefreshTopN_Empty(t *testing.T) {
	engine, _ := setupEngine(t)

	top, err := engine.RefreshTopN(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestPlayerStanding(t *testing.T) {
	engine, s := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, storetest.Entry(t, "TOP", 5000, 0)))
	require.NoError(t, s.Append(ctx, storetest.Entry(t, "ABC", 800, time.Second)))
	require.NoError(t, s.Append(ctx, storetest.Entry(t, "ABC", 2325, 2*time.Second)))
	require.NoError(t, s.Append(ctx, storetest.Entry(t, "ZZZ", 1000, 3*time.Second)))

	standing, err := engine.PlayerStanding(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, 2, standing.Best.Rank)
	assert.Equal(t, int64(2325), standing.Best.CalculatedScore)
	assert.Equal(t, 2, standing.Entries)
}

func TestPlayerStanding_Unknown(t *testing.T) {
	engine, _ := setupEngine(t)

	_, err := engine.PlayerStanding(context.Background(), "NOP")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
