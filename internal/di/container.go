// Package di provides dependency injection configuration for the score server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/auth"
	"github.com/punkouter26/podropsquare-server/internal/cache"
	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/di/providers"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideClock)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Anti-cheat and ranking
	do.Provide(injector, providers.ProvidePlayerLimiter)
	do.Provide(injector, providers.ProvidePipeline)
	do.Provide(injector, providers.ProvideRanker)
	do.Provide(injector, providers.ProvideLeaderboardCache)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Leaderboard stream
	do.Provide(injector, providers.ProvideStream)

	// Business services
	do.Provide(injector, providers.ProvideScoreService)
	do.Provide(injector, providers.ProvideLeaderboardService)
	do.Provide(injector, providers.ProvideRetentionService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	// Workers
	do.Provide(injector, providers.ProvideJanitor)
	do.Provide(injector, providers.ProvideSecretWatcher)
	do.Provide(injector, providers.ProvideMDNSService)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[clock.Clock](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*cache.Leaderboard](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	_ = do.MustInvoke[*providers.StreamHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.ScoreService](injector)
	_ = do.MustInvoke[*service.LeaderboardService](injector)
	_ = do.MustInvoke[*service.RetentionService](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Workers
	_ = do.MustInvoke[*providers.JanitorHandle](injector)
	_ = do.MustInvoke[*providers.SecretWatcherHandle](injector)
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)

	return nil
}
