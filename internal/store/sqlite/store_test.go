package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punkouter26/podropsquare-server/internal/store"
	"github.com/punkouter26/podropsquare-server/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.ScoreStore { return newTestStore(t) })
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	for _, index := range []string{"idx_scores_rank", "idx_scores_player_rank", "idx_scores_submitted_at"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		assert.NoError(t, err, "index %s", index)
	}
}

func TestOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath, nil)
	require.NoError(t, err)
	e := storetest.Entry(t, "ABC", 2325, 0)
	require.NoError(t, s.Append(context.Background(), e))
	require.NoError(t, s.Close())

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.QueryByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2325), got.CalculatedScore)
}

func TestPurgeOlderThan_Chunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const old = purgeChunk*2 + 7
	tx, err := s.db.Begin()
	require.NoError(t, err)
	for i := range old {
		e := storetest.Entry(t, "OLD", int64(i), -time.Duration(i+1)*time.Second)
		_, err := tx.Exec(`INSERT INTO scores (id, player_initials, survival_time_seconds, calculated_score,
			submitted_at, submitted_at_ns, client_claimed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.PlayerInitials, e.SurvivalTimeSeconds, e.CalculatedScore,
			formatTime(e.SubmittedAt), e.SubmittedAt.UnixNano(), formatTime(e.ClientClaimedAt))
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	purged, err := s.PurgeOlderThan(ctx, storetest.Base)
	require.NoError(t, err)
	assert.Equal(t, old, purged)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
