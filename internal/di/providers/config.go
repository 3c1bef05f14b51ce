// Package providers contains dependency injection providers for the score server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting PoDropSquare score server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"store", cfg.Store.Backend,
	)
	if cfg.Game.SignatureSecret == config.DevSignatureSecret {
		log.Warn("Using the development signature secret; set SIGNATURE_SECRET before exposing this server")
	}

	return log, nil
}

// ProvideClock provides the wall clock.
func ProvideClock(i do.Injector) (clock.Clock, error) {
	return clock.Real{}, nil
}
