package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

// purgeBatchSize bounds how many entries one retention pass reads before
// deleting them.
const purgeBatchSize = 512

// Badger is the default ScoreStore, backed by an embedded BadgerDB.
//
// Badger does not take a context, so each call checks ctx before it starts and
// between iterator steps; a deadline that passes mid-transaction aborts it.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ ScoreStore = (*Badger)(nil)

// Open opens (or creates) a Badger score store at path.
func Open(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // An accepted score must survive a crash
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, logger)
}

// OpenInMemory opens a Badger store that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Badger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("Badger score store opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return &Badger{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Badger) Close() error {
	s.logger.Info("Closing score store")
	return s.db.Close()
}

// Append implements ScoreStore. The row and both index keys are written in one
// transaction.
func (s *Badger) Append(ctx context.Context, e *domain.ScoreEntry) error {
	const op = "append"
	if err := ctx.Err(); err != nil {
		return Wrap(op, e.ID, err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return opErr(op, e.ID, "marshal entry: %w", err)
	}

	// Badger holds on to key slices until commit; release afterwards.
	rowKey, rk, pk := scoreKey(e.ID), rankKey(e), playerKey(e)
	defer func() {
		releaseKey(rowKey)
		releaseKey(rk)
		releaseKey(pk)
	}()

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(rowKey); err == nil {
			return errIDExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(rowKey, data); err != nil {
			return err
		}
		if err := txn.Set(rk, []byte(e.ID)); err != nil {
			return err
		}
		if err := txn.Set(pk, []byte(e.ID)); err != nil {
			return err
		}
		// Do not commit work the caller has already given up on.
		return ctx.Err()
	})
	return Wrap(op, e.ID, err)
}

// QueryByID implements ScoreStore.
func (s *Badger) QueryByID(ctx context.Context, entryID string) (*domain.ScoreEntry, error) {
	const op = "query_by_id"
	if err := ctx.Err(); err != nil {
		return nil, Wrap(op, entryID, err)
	}

	key := scoreKey(entryID)
	defer releaseKey(key)

	var entry *domain.ScoreEntry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = getEntry(txn, key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, NotFound(op, entryID)
	}
	if err != nil {
		return nil, Wrap(op, entryID, err)
	}
	return entry, nil
}

// QueryTopN implements ScoreStore.
func (s *Badger) QueryTopN(ctx context.Context, n int) ([]*domain.ScoreEntry, error) {
	const op = "query_top_n"
	if n <= 0 {
		return []*domain.ScoreEntry{}, nil
	}
	entries, err := s.scanPartition(ctx, []byte(rankPrefix), n)
	return entries, Wrap(op, "", err)
}

// QueryByPlayer implements ScoreStore.
func (s *Badger) QueryByPlayer(ctx context.Context, initials string) ([]*domain.ScoreEntry, error) {
	const op = "query_by_player"
	prefix := playerPartition(initials)
	defer releaseKey(prefix)

	entries, err := s.scanPartition(ctx, prefix, 0)
	return entries, Wrap(op, initials, err)
}

// scanPartition walks an index partition in key order and loads up to limit
// entries (all of them when limit is 0).
func (s *Badger) scanPartition(ctx context.Context, prefix []byte, limit int) ([]*domain.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := []*domain.ScoreEntry{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		if limit > 0 && limit < opts.PrefetchSize {
			opts.PrefetchSize = limit
		}

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var entryID []byte
			if err := it.Item().Value(func(val []byte) error {
				entryID = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}

			rowKey := scoreKey(string(entryID))
			entry, err := getEntry(txn, rowKey)
			releaseKey(rowKey)
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Index written without its row; only possible after a crash
				// mid-purge. Skip it.
				continue
			}
			if err != nil {
				return err
			}

			entries = append(entries, entry)
			if limit > 0 && len(entries) == limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountOutranking implements ScoreStore. Rank keys sort in leaderboard order,
// so the answer is the number of keys before e's own rank key.
func (s *Badger) CountOutranking(ctx context.Context, e *domain.ScoreEntry) (int, error) {
	const op = "count_outranking"
	if err := ctx.Err(); err != nil {
		return 0, Wrap(op, e.ID, err)
	}

	bound := rankKey(e)
	defer releaseKey(bound)

	n, err := s.countKeys(ctx, []byte(rankPrefix), bound)
	return n, Wrap(op, e.ID, err)
}

// Count implements ScoreStore.
func (s *Badger) Count(ctx context.Context) (int, error) {
	n, err := s.countKeys(ctx, []byte(scorePrefix), nil)
	return n, Wrap("count", "", err)
}

// countKeys counts keys under prefix that sort strictly before bound
// (every key when bound is nil). Values are never read.
func (s *Badger) countKeys(ctx context.Context, prefix, bound []byte) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false // Only need keys

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if bound != nil && bytes.Compare(it.Item().Key(), bound) >= 0 {
				return nil
			}
			n++
			if n%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return ctx.Err()
	})
	return n, err
}

// PurgeOlderThan implements ScoreStore.
//
// Row keys sort newest first, so every entry older than cutoff lies after a
// single seek. Entries are removed in batches together with their index keys;
// concurrent appends only ever add keys ahead of the seek point.
func (s *Badger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	const op = "purge"
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, Wrap(op, "", err)
		}

		victims, err := s.collectOlderThan(ctx, cutoff, purgeBatchSize)
		if err != nil {
			return total, Wrap(op, "", err)
		}
		if len(victims) == 0 {
			break
		}

		if err := s.deleteEntries(victims); err != nil {
			return total, Wrap(op, "", err)
		}
		total += len(victims)

		if len(victims) < purgeBatchSize {
			break
		}
	}

	if total > 0 {
		s.logger.Info("purged scores", "count", total, "cutoff", cutoff)
	}
	return total, nil
}

func (s *Badger) collectOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.ScoreEntry, error) {
	seek := purgeSeekKey(cutoff)
	defer releaseKey(seek)
	prefix := []byte(scorePrefix)

	var victims []*domain.ScoreEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(victims) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e domain.ScoreEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			// Entries stamped exactly at cutoff share the seek prefix; keep them.
			if !e.SubmittedAt.Before(cutoff) {
				continue
			}
			victims = append(victims, &e)
		}
		return nil
	})
	return victims, err
}

// deleteEntries removes entries and their index keys through a write batch.
func (s *Badger) deleteEntries(entries []*domain.ScoreEntry) error {
	b := newBatch(s.db, s.logger)
	for _, e := range entries {
		if err := b.deleteEntry(e); err != nil {
			b.cancel()
			return err
		}
	}
	return b.flush()
}

func getEntry(txn *badger.Txn, key []byte) (*domain.ScoreEntry, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var e domain.ScoreEntry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	}); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}
