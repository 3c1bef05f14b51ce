package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punkouter26/podropsquare-server/internal/cache"
	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/domain"
	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/ranking"
	"github.com/punkouter26/podropsquare-server/internal/ratelimit"
	"github.com/punkouter26/podropsquare-server/internal/scoring"
	"github.com/punkouter26/podropsquare-server/internal/service"
	"github.com/punkouter26/podropsquare-server/internal/store"
	"github.com/punkouter26/podropsquare-server/internal/validation"
)

const testSecret = "service-test-secret"

var serverNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// countingInvalidator wraps the real cache and counts invalidations.
type countingInvalidator struct {
	next  service.Invalidator
	count atomic.Int32
}

func (c *countingInvalidator) Invalidate() {
	c.count.Add(1)
	c.next.Invalidate()
}

// faultyStore injects failures into selected store operations.
type faultyStore struct {
	store.ScoreStore
	appendErr error
	rankErr   error
}

func (f *faultyStore) Append(ctx context.Context, e *domain.ScoreEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.ScoreStore.Append(ctx, e)
}

func (f *faultyStore) CountOutranking(ctx context.Context, e *domain.ScoreEntry) (int, error) {
	if f.rankErr != nil {
		return 0, f.rankErr
	}
	return f.ScoreStore.CountOutranking(ctx, e)
}

type fixture struct {
	store       *faultyStore
	clock       *clock.Manual
	limiter     *ratelimit.FixedWindow
	cache       *cache.Leaderboard
	invalidator *countingInvalidator
	scores      *service.ScoreService
	leaderboard *service.LeaderboardService
	retention   *service.RetentionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })

	s := &faultyStore{ScoreStore: base}
	clk := clock.NewManual(serverNow)
	limiter := ratelimit.NewFixedWindow(5, time.Minute)
	pipeline := validation.NewPipeline(clk, nil, validation.DefaultValidators(validation.Options{
		MinSurvivalSeconds: 0.25,
		MaxSurvivalSeconds: 20,
		MaxClockSkew:       10 * time.Minute,
		SignatureSecret:    testSecret,
	}, limiter)...)
	ranker := ranking.New(s)
	lb := cache.New(ranker, clk, 10, 5*time.Second, nil)
	inv := &countingInvalidator{next: lb}

	return &fixture{
		store:       s,
		clock:       clk,
		limiter:     limiter,
		cache:       lb,
		invalidator: inv,
		scores:      service.NewScoreService(s, pipeline, scoring.Default, ranker, inv, clk, nil),
		leaderboard: service.NewLeaderboardService(lb, ranker, nil),
		retention:   service.NewRetentionService(s, inv, clk, nil),
	}
}

// submission builds a correctly signed submission stamped at the fixture's
// current time.
func (f *fixture) submission(initials string, survival float64) domain.Submission {
	stamp := f.clock.Now().Format(time.RFC3339Nano)
	return domain.Submission{
		PlayerInitials:      initials,
		SurvivalTimeSeconds: &survival,
		SessionSignature:    validation.Sign(testSecret, initials, survival, stamp),
		ClientTimestamp:     stamp,
	}
}

// seed submits n scores from distinct players, one second apart.
func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	for i := range n {
		// Spread across the plausible range: 0.5s to 19.4s.
		survival := 0.5 + float64((i*37)%190)/10
		_, err := f.scores.Submit(context.Background(), f.submission(fmt.Sprintf("S%02d", i), survival))
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
}

func requireCode(t *testing.T, err error, code domainerrors.Code) *domainerrors.Error {
	t.Helper()
	var de *domainerrors.Error
	require.True(t, errors.As(err, &de), "expected *errors.Error, got %v", err)
	assert.Equal(t, code, de.Code)
	return de
}
