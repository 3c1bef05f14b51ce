package sse

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/domain"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeSource serves a settable snapshot and counts reads.
type fakeSource struct {
	mu    sync.Mutex
	snap  *domain.Snapshot
	err   error
	reads int
}

func (f *fakeSource) Top(context.Context, int) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.snap, f.err
}

func (f *fakeSource) set(token string, initials ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]domain.LeaderboardEntry, len(initials))
	for i, in := range initials {
		entries[i] = domain.LeaderboardEntry{Rank: i + 1, PlayerInitials: in, CalculatedScore: int64(1000 - i)}
	}
	f.snap = &domain.Snapshot{Entries: entries, GeneratedAt: testNow, FreshnessToken: token}
}

func (f *fakeSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(clock.NewManual(testNow), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e, ok := <-c.EventChan:
		require.True(t, ok, "client channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestManager_BroadcastAndReplayLatest(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Connect()
	require.NoError(t, err)
	assert.Equal(t, 1, m.ClientCount())

	snap := &domain.Snapshot{FreshnessToken: "t1", Entries: []domain.LeaderboardEntry{{Rank: 1, PlayerInitials: "ABC"}}}
	m.Emit(NewLeaderboardEvent(snap, testNow))

	got := receive(t, first)
	assert.Equal(t, EventLeaderboardUpdated, got.Type)
	assert.Equal(t, "t1", got.Data.(LeaderboardEventData).FreshnessToken)

	// A late joiner is handed the current board immediately.
	late, err := m.Connect()
	require.NoError(t, err)
	replayed := receive(t, late)
	assert.Equal(t, "t1", replayed.Data.(LeaderboardEventData).FreshnessToken)

	m.Disconnect(late.ID)
	m.Disconnect(late.ID) // second call is a no-op
	assert.Equal(t, 1, m.ClientCount())
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	m := newTestManager(t)

	c, err := m.Connect()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, m.Shutdown(ctx))

	select {
	case <-c.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("client not closed on shutdown")
	}
	assert.Zero(t, m.ClientCount())

	// Emit after shutdown must not panic.
	m.Emit(NewHeartbeatEvent(testNow))
}

func TestPublisher_EmitsOnlyWhenTokenChanges(t *testing.T) {
	m := newTestManager(t)
	c, err := m.Connect()
	require.NoError(t, err)

	src := &fakeSource{}
	src.set("t1", "ABC")
	p := NewPublisher(src, m, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	initial := receive(t, c)
	assert.Equal(t, "t1", initial.Data.(LeaderboardEventData).FreshnessToken)

	// Same token: a refresh happens but nothing is emitted.
	p.Notify()
	require.Eventually(t, func() bool { return src.readCount() >= 2 }, 2*time.Second, 5*time.Millisecond)

	src.set("t2", "XYZ", "ABC")
	inv := &countingInvalidator{}
	p.Notifying(inv).Invalidate()
	assert.Equal(t, 1, inv.n)

	next := receive(t, c)
	data := next.Data.(LeaderboardEventData)
	assert.Equal(t, "t2", data.FreshnessToken)
	require.Len(t, data.Entries, 2)
	assert.Equal(t, "XYZ", data.Entries[0].PlayerInitials)

	select {
	case e := <-c.EventChan:
		if e.Type == EventLeaderboardUpdated {
			t.Fatalf("unexpected extra leaderboard event with token %q", e.Data.(LeaderboardEventData).FreshnessToken)
		}
	default:
	}
}

func TestPublisher_SourceErrorEmitsNothing(t *testing.T) {
	m := newTestManager(t)
	c, err := m.Connect()
	require.NoError(t, err)

	src := &fakeSource{err: errors.New("store down")}
	p := NewPublisher(src, m, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return src.readCount() >= 1 }, 2*time.Second, 5*time.Millisecond)
	select {
	case e := <-c.EventChan:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisher_NotifyNeverBlocks(t *testing.T) {
	p := NewPublisher(&fakeSource{}, NewManager(clock.NewManual(testNow), nil), 0, nil)
	for range 100 {
		p.Notify()
	}
	assert.Len(t, p.notify, 1)
}

func TestHandler_StreamsEvents(t *testing.T) {
	m := newTestManager(t)
	srv := httptest.NewServer(NewHandler(m, nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan(), "stream ended")
		return lines.Text()
	}

	assert.Equal(t, "event: connected", next())
	assert.True(t, strings.HasPrefix(next(), "data: {"))
	assert.Empty(t, next())

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	m.Emit(NewLeaderboardEvent(&domain.Snapshot{FreshnessToken: "abc"}, testNow))

	assert.Equal(t, "event: leaderboard.updated", next())
	assert.Contains(t, next(), `"freshnessToken":"abc"`)
}

func TestHandler_RejectsNonGET(t *testing.T) {
	m := NewManager(clock.NewManual(testNow), nil)
	w := httptest.NewRecorder()
	NewHandler(m, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
