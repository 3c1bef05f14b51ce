package sse

import (
	"context"
	"log/slog"
	"time"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

// SnapshotSource returns the current top-N leaderboard.
type SnapshotSource interface {
	Top(ctx context.Context, limit int) (*domain.Snapshot, error)
}

// Invalidator is what score writers already call after a change.
type Invalidator interface {
	Invalidate()
}

// Publisher turns leaderboard invalidations into leaderboard.updated events.
//
// Notifications are coalesced: a burst of submissions within settle produces a
// single refresh, and an event is only emitted when the freshness token moved.
type Publisher struct {
	source    SnapshotSource
	manager   *Manager
	notify    chan struct{}
	settle    time.Duration
	lastToken string
	logger    *slog.Logger
}

// NewPublisher creates a publisher reading from source.
func NewPublisher(source SnapshotSource, manager *Manager, settle time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		source:  source,
		manager: manager,
		notify:  make(chan struct{}, 1),
		settle:  settle,
		logger:  logger,
	}
}

// Notify schedules a refresh. It never blocks.
func (p *Publisher) Notify() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run publishes refreshes until ctx is done. The current board is published
// once at start so new clients always have something to render.
func (p *Publisher) Run(ctx context.Context) {
	p.publish(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.notify:
		}

		if p.settle > 0 {
			timer := time.NewTimer(p.settle)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			// Fold notifications that arrived while settling into this refresh.
			select {
			case <-p.notify:
			default:
			}
		}

		p.publish(ctx)
	}
}

func (p *Publisher) publish(ctx context.Context) {
	snap, err := p.source.Top(ctx, 0)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("leaderboard refresh for stream failed", slog.String("error", err.Error()))
		}
		return
	}
	if snap.FreshnessToken == p.lastToken {
		return
	}
	p.lastToken = snap.FreshnessToken
	p.manager.Emit(NewLeaderboardEvent(snap, p.manager.clock.Now()))
}

// Notifying wraps next so every invalidation also notifies p.
func (p *Publisher) Notifying(next Invalidator) Invalidator {
	return notifyingInvalidator{next: next, publisher: p}
}

type notifyingInvalidator struct {
	next      Invalidator
	publisher *Publisher
}

func (n notifyingInvalidator) Invalidate() {
	n.next.Invalidate()
	n.publisher.Notify()
}
