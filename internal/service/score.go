// Package service implements the score server's use cases on top of the
// validation pipeline, the score store, the ranking engine and the cache.
package service

import (
	"context"
	"errors"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/domain"
	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/id"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/ranking"
	"github.com/punkouter26/podropsquare-server/internal/scoring"
	"github.com/punkouter26/podropsquare-server/internal/store"
	"github.com/punkouter26/podropsquare-server/internal/validation"
)

// Invalidator is told whenever stored scores change.
type Invalidator interface {
	Invalidate()
}

// SubmitResult describes an accepted submission.
type SubmitResult struct {
	Entry *domain.ScoreEntry
	// Rank is the entry's exact position at acceptance, or 0 when it could
	// not be computed. The entry is persisted either way.
	Rank int
}

// ScoreService owns the write path: validate, score, persist, invalidate,
// rank.
type ScoreService struct {
	store    store.ScoreStore
	pipeline *validation.Pipeline
	scorer   scoring.Scorer
	ranker   *ranking.Engine
	cache    Invalidator
	clock    clock.Clock
	logger   *logger.Logger
}

// NewScoreService creates a new score service.
func NewScoreService(
	s store.ScoreStore,
	pipeline *validation.Pipeline,
	scorer scoring.Scorer,
	ranker *ranking.Engine,
	cache Invalidator,
	clk clock.Clock,
	log *logger.Logger,
) *ScoreService {
	if log == nil {
		log = logger.Discard()
	}
	return &ScoreService{
		store:    s,
		pipeline: pipeline,
		scorer:   scorer,
		ranker:   ranker,
		cache:    cache,
		clock:    clk,
		logger:   log.WithComponent("scores"),
	}
}

// Submit validates sub and, if accepted, stores it.
//
// Rejections are *errors.Error values with a validation code. A store failure
// during append means nothing was persisted and the client may retry; it is
// never retried here.
func (s *ScoreService) Submit(ctx context.Context, sub domain.Submission) (*SubmitResult, error) {
	// One instant for the whole submission: validation, id and ordering.
	now := s.clock.Now()

	valid, err := s.pipeline.ValidateAt(ctx, sub, now)
	if err != nil {
		return nil, err
	}

	entryID, err := id.NewScoreID(now)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to assign score id")
	}

	survival := valid.Survival()
	entry := &domain.ScoreEntry{
		ID:                  entryID,
		PlayerInitials:      valid.PlayerInitials,
		SurvivalTimeSeconds: survival,
		CalculatedScore:     s.scorer.Score(survival),
		SubmittedAt:         now,
		ClientClaimedAt:     valid.ClientClaimedAt,
	}

	log := s.logger.WithPlayer(entry.PlayerInitials)
	if err := s.store.Append(ctx, entry); err != nil {
		log.Error("failed to persist score", "id", entry.ID, "error", err)
		return nil, store.ToDomain(err)
	}
	s.cache.Invalidate()

	result := &SubmitResult{Entry: entry}
	rank, err := s.ranker.Rank(ctx, entry)
	if err != nil {
		// Already persisted: report the acceptance without a rank.
		log.Warn("score accepted but rank unavailable", "id", entry.ID, "error", err)
	} else {
		result.Rank = rank
	}

	log.Info("score accepted",
		"id", entry.ID,
		"survival", entry.SurvivalTimeSeconds,
		"score", entry.CalculatedScore,
		"rank", result.Rank,
	)
	return result, nil
}

// Entry returns a stored entry by id.
func (s *ScoreService) Entry(ctx context.Context, entryID string) (*domain.ScoreEntry, error) {
	e, err := s.store.QueryByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("score %s not found", entryID).WithCause(err)
		}
		return nil, store.ToDomain(err)
	}
	return e, nil
}

// History returns all of a player's entries, best first.
func (s *ScoreService) History(ctx context.Context, initials string) ([]*domain.ScoreEntry, error) {
	initials, err := validation.NormalizeInitials(initials)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.QueryByPlayer(ctx, initials)
	if err != nil {
		return nil, store.ToDomain(err)
	}
	return entries, nil
}
