package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/punkouter26/podropsquare-server/internal/domain"
	"github.com/punkouter26/podropsquare-server/internal/store"
)

// scoreColumns must match the scan order in scanScore.
const scoreColumns = `id, player_initials, survival_time_seconds, calculated_score, submitted_at_ns, client_claimed_at`

// rankOrder is the leaderboard's total order.
const rankOrder = `calculated_score DESC, submitted_at_ns ASC, id ASC`

// purgeChunk bounds each retention delete so writers are not starved.
const purgeChunk = 500

func scanScore(scanner interface{ Scan(dest ...any) error }) (*domain.ScoreEntry, error) {
	var (
		e           domain.ScoreEntry
		submittedNs int64
		claimedAt   string
	)
	err := scanner.Scan(
		&e.ID,
		&e.PlayerInitials,
		&e.SurvivalTimeSeconds,
		&e.CalculatedScore,
		&submittedNs,
		&claimedAt,
	)
	if err != nil {
		return nil, err
	}

	e.SubmittedAt = time.Unix(0, submittedNs).UTC()
	e.ClientClaimedAt, err = parseTime(claimedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Append implements store.ScoreStore.
func (s *Store) Append(ctx context.Context, e *domain.ScoreEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scores (id, player_initials, survival_time_seconds, calculated_score,
			submitted_at, submitted_at_ns, client_claimed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.PlayerInitials,
		e.SurvivalTimeSeconds,
		e.CalculatedScore,
		formatTime(e.SubmittedAt),
		e.SubmittedAt.UnixNano(),
		formatTime(e.ClientClaimedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.Conflict("append", e.ID, err)
		}
		return store.Wrap("append", e.ID, err)
	}
	return nil
}

// QueryByID implements store.ScoreStore.
func (s *Store) QueryByID(ctx context.Context, entryID string) (*domain.ScoreEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scoreColumns+` FROM scores WHERE id = ?`, entryID)

	e, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("query_by_id", entryID)
	}
	if err != nil {
		return nil, store.Wrap("query_by_id", entryID, err)
	}
	return e, nil
}

// QueryTopN implements store.ScoreStore.
func (s *Store) QueryTopN(ctx context.Context, n int) ([]*domain.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Wrap("query_top_n", "", err)
	}
	if n <= 0 {
		return []*domain.ScoreEntry{}, nil
	}
	entries, err := s.queryScores(ctx,
		`SELECT `+scoreColumns+` FROM scores ORDER BY `+rankOrder+` LIMIT ?`, n)
	return entries, store.Wrap("query_top_n", "", err)
}

// QueryByPlayer implements store.ScoreStore.
func (s *Store) QueryByPlayer(ctx context.Context, initials string) ([]*domain.ScoreEntry, error) {
	entries, err := s.queryScores(ctx,
		`SELECT `+scoreColumns+` FROM scores WHERE player_initials = ? ORDER BY `+rankOrder, initials)
	return entries, store.Wrap("query_by_player", initials, err)
}

func (s *Store) queryScores(ctx context.Context, query string, args ...any) ([]*domain.ScoreEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*domain.ScoreEntry{}
	for rows.Next() {
		e, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountOutranking implements store.ScoreStore.
func (s *Store) CountOutranking(ctx context.Context, e *domain.ScoreEntry) (int, error) {
	ns := e.SubmittedAt.UnixNano()
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scores
		WHERE calculated_score > ?
		   OR (calculated_score = ? AND submitted_at_ns < ?)
		   OR (calculated_score = ? AND submitted_at_ns = ? AND id < ?)`,
		e.CalculatedScore,
		e.CalculatedScore, ns,
		e.CalculatedScore, ns, e.ID,
	).Scan(&n)
	if err != nil {
		return 0, store.Wrap("count_outranking", e.ID, err)
	}
	return n, nil
}

// Count implements store.ScoreStore.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		return 0, store.Wrap("count", "", err)
	}
	return n, nil
}

// PurgeOlderThan implements store.ScoreStore. Deletes run in short chunks so
// appends interleave with a long purge.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ns := cutoff.UnixNano()
	total := 0
	for {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM scores WHERE id IN (
				SELECT id FROM scores WHERE submitted_at_ns < ? LIMIT ?
			)`, ns, purgeChunk)
		if err != nil {
			return total, store.Wrap("purge", "", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, store.Wrap("purge", "", err)
		}
		total += int(n)
		if n < purgeChunk {
			break
		}
	}

	if total > 0 {
		s.logger.Info("purged scores", "count", total, "cutoff", cutoff)
	}
	return total, nil
}
