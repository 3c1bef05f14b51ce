package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

// batch groups deletes into a Badger WriteBatch. A WriteBatch splits itself
// into as many transactions as needed, so it is not atomic as a whole; each
// entry's three keys may briefly disagree, which readers tolerate.
type batch struct {
	wb     *badger.WriteBatch
	logger *slog.Logger
	count  int
}

func newBatch(db *badger.DB, logger *slog.Logger) *batch {
	return &batch{wb: db.NewWriteBatch(), logger: logger}
}

// deleteEntry queues removal of e's row and index keys.
func (b *batch) deleteEntry(e *domain.ScoreEntry) error {
	// WriteBatch keeps the key slices, so these are not pooled.
	idx := appendRankKey(nil, e)
	keys := [][]byte{
		[]byte(scorePrefix + e.ID),
		append([]byte(rankPrefix), idx...),
		append([]byte(playerPrefix+e.PlayerInitials+":"), idx...),
	}
	for _, k := range keys {
		if err := b.wb.Delete(k); err != nil {
			return fmt.Errorf("batch delete %s: %w", k, err)
		}
	}
	b.count++
	return nil
}

// flush commits all queued deletes.
func (b *batch) flush() error {
	if b.count == 0 {
		b.wb.Cancel()
		return nil
	}
	if err := b.wb.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	b.logger.LogAttrs(context.Background(), slog.LevelDebug, "batch flushed",
		slog.Int("entries", b.count),
	)
	b.count = 0
	return nil
}

// cancel discards queued deletes.
func (b *batch) cancel() {
	b.wb.Cancel()
	b.count = 0
}
