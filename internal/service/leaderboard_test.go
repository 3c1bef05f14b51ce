package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
)

func TestLeaderboard_Top(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 15)

	full, err := f.leaderboard.Top(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, full.Entries, 10)
	assert.Equal(t, 10, f.leaderboard.MaxLimit())

	cut, err := f.leaderboard.Top(ctx, 3)
	require.NoError(t, err)
	require.Len(t, cut.Entries, 3)
	assert.Equal(t, full.Entries[:3], cut.Entries)
	assert.NotEqual(t, full.FreshnessToken, cut.FreshnessToken)

	again, err := f.leaderboard.Top(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, cut.FreshnessToken, again.FreshnessToken)

	for i := 1; i < len(full.Entries); i++ {
		assert.GreaterOrEqual(t, full.Entries[i-1].CalculatedScore, full.Entries[i].CalculatedScore)
		assert.Equal(t, i+1, full.Entries[i].Rank)
	}
}

func TestLeaderboard_Standing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, 20)

	_, err := f.scores.Submit(ctx, f.submission("ABC", 19.9))
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.scores.Submit(ctx, f.submission("ABC", 2))
	require.NoError(t, err)

	standing, err := f.leaderboard.Standing(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, standing.Best.Rank)
	assert.Equal(t, "ABC", standing.Best.PlayerInitials)
	assert.Equal(t, 2, standing.Entries)

	_, err = f.leaderboard.Standing(ctx, "ZZZ")
	requireCode(t, err, domainerrors.CodeNotFound)

	_, err = f.leaderboard.Standing(ctx, "!!")
	requireCode(t, err, domainerrors.CodeMalformedInput)
}
