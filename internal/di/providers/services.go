package providers

import (
	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/cache"
	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/ranking"
	"github.com/punkouter26/podropsquare-server/internal/ratelimit"
	"github.com/punkouter26/podropsquare-server/internal/scoring"
	"github.com/punkouter26/podropsquare-server/internal/service"
	"github.com/punkouter26/podropsquare-server/internal/validation"
)

// ProvidePlayerLimiter provides the per-player fixed-window limiter.
func ProvidePlayerLimiter(i do.Injector) (*ratelimit.FixedWindow, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ratelimit.NewFixedWindow(cfg.RateLimit.Limit, cfg.RateLimit.Window), nil
}

// ProvidePipeline provides the anti-cheat validation pipeline.
func ProvidePipeline(i do.Injector) (*validation.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	clk := do.MustInvoke[clock.Clock](i)
	limiter := do.MustInvoke[*ratelimit.FixedWindow](i)

	validators := validation.DefaultValidators(validation.Options{
		MinSurvivalSeconds: cfg.Game.MinSurvivalSeconds,
		MaxSurvivalSeconds: cfg.Game.MaxSurvivalSeconds,
		MaxClockSkew:       cfg.Game.MaxClockSkew,
		SignatureSecret:    cfg.Game.SignatureSecret,
	}, limiter)

	return validation.NewPipeline(clk, log, validators...), nil
}

// ProvideRanker provides the ranking engine over the score store.
func ProvideRanker(i do.Injector) (*ranking.Engine, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	return ranking.New(storeHandle), nil
}

// ProvideLeaderboardCache provides the materialized top-N view.
func ProvideLeaderboardCache(i do.Injector) (*cache.Leaderboard, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	clk := do.MustInvoke[clock.Clock](i)
	ranker := do.MustInvoke[*ranking.Engine](i)

	return cache.New(ranker, clk, cfg.Leaderboard.TopN, cfg.Leaderboard.CacheTTL, log), nil
}

// ProvideScoreService provides the score submission service.
func ProvideScoreService(i do.Injector) (*service.ScoreService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	clk := do.MustInvoke[clock.Clock](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	pipeline := do.MustInvoke[*validation.Pipeline](i)
	ranker := do.MustInvoke[*ranking.Engine](i)
	stream := do.MustInvoke[*StreamHandle](i)
	lb := do.MustInvoke[*cache.Leaderboard](i)

	return service.NewScoreService(storeHandle, pipeline, scoring.Default, ranker, stream.Notifying(lb), clk, log), nil
}

// ProvideLeaderboardService provides the leaderboard read service.
func ProvideLeaderboardService(i do.Injector) (*service.LeaderboardService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	ranker := do.MustInvoke[*ranking.Engine](i)
	lb := do.MustInvoke[*cache.Leaderboard](i)

	return service.NewLeaderboardService(lb, ranker, log), nil
}

// ProvideRetentionService provides the retention purge service.
func ProvideRetentionService(i do.Injector) (*service.RetentionService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	clk := do.MustInvoke[clock.Clock](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	stream := do.MustInvoke[*StreamHandle](i)
	lb := do.MustInvoke[*cache.Leaderboard](i)

	return service.NewRetentionService(storeHandle, stream.Notifying(lb), clk, log), nil
}
