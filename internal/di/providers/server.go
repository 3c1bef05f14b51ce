package providers

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/samber/do/v2"
	"golang.org/x/net/netutil"

	"github.com/punkouter26/podropsquare-server/internal/api"
	"github.com/punkouter26/podropsquare-server/internal/auth"
	"github.com/punkouter26/podropsquare-server/internal/config"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts serving.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	stream := do.MustInvoke[*StreamHandle](i)

	services := &api.Services{
		Scores:      do.MustInvoke[*service.ScoreService](i),
		Leaderboard: do.MustInvoke[*service.LeaderboardService](i),
		Retention:   do.MustInvoke[*service.RetentionService](i),
		Tokens:      do.MustInvoke[*auth.TokenService](i),
		Stream:      stream.Manager,
	}

	handler := api.NewServer(storeHandle, services, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IPRate:         cfg.Server.IPRate,
		IPBurst:        cfg.Server.IPBurst,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	// Open streams never go idle; end them so Shutdown can drain connections.
	srv.RegisterOnShutdown(func() {
		if err := stream.Shutdown(); err != nil {
			log.Warn("Leaderboard stream shutdown", "error", err)
		}
	})

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr, "max_connections", cfg.Server.MaxConnections)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", ln.Addr().String())

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
