package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/ratelimit"
	"github.com/punkouter26/podropsquare-server/internal/service"
)

// sweepSchedule is how often expired limiter state is pruned.
const sweepSchedule = "@every 1m"

// JanitorHandle wraps the housekeeping scheduler for lifecycle management.
type JanitorHandle struct {
	*service.Janitor
}

// Shutdown implements do.Shutdownable.
func (h *JanitorHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Stop(ctx)
}

// ProvideJanitor schedules retention purges and limiter sweeps.
// It depends on the HTTP server so the per-IP limiter can be pruned too.
func ProvideJanitor(i do.Injector) (*JanitorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	clk := do.MustInvoke[clock.Clock](i)
	retention := do.MustInvoke[*service.RetentionService](i)
	windows := do.MustInvoke[*ratelimit.FixedWindow](i)
	httpHandle := do.MustInvoke[*HTTPServerHandle](i)

	var buckets service.BucketEvicter
	if ipLimiter := httpHandle.api.IPLimiter(); ipLimiter != nil {
		buckets = ipLimiter
	}

	janitor := service.NewJanitor(retention, windows, buckets, clk, log)
	if err := janitor.ScheduleSweep(sweepSchedule); err != nil {
		return nil, err
	}
	if cfg.Retention.Schedule != "" {
		if err := janitor.ScheduleRetention(cfg.Retention.Schedule, cfg.Retention.MaxAge); err != nil {
			return nil, err
		}
	} else {
		log.Info("Retention purges disabled")
	}

	janitor.Start()

	return &JanitorHandle{Janitor: janitor}, nil
}
