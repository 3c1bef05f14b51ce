package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/service"
	"github.com/punkouter26/podropsquare-server/internal/sse"
)

// streamSettle coalesces bursts of submissions into one leaderboard push.
const streamSettle = 250 * time.Millisecond

// StreamHandle wraps the SSE manager and its publisher for lifecycle management.
type StreamHandle struct {
	*sse.Manager
	*sse.Publisher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *StreamHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Manager.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideStream provides the leaderboard event stream.
func ProvideStream(i do.Injector) (*StreamHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	clk := do.MustInvoke[clock.Clock](i)
	leaderboard := do.MustInvoke[*service.LeaderboardService](i)

	streamLog := log.WithComponent("sse").Logger
	manager := sse.NewManager(clk, streamLog)
	publisher := sse.NewPublisher(leaderboard, manager, streamSettle, streamLog)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)
	go publisher.Run(ctx)

	log.Info("Leaderboard stream started")

	return &StreamHandle{
		Manager:   manager,
		Publisher: publisher,
		cancel:    cancel,
	}, nil
}
