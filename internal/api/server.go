// Package api provides the HTTP API server and handlers for the score server.
package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/sse"
	"github.com/punkouter26/podropsquare-server/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// IPRate and IPBurst bound submissions per client address, ahead of the
	// per-player window.
	IPRate  float64
	IPBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     store.ScoreStore
	services  *Services
	router    *chi.Mux
	api       huma.API
	logger    *logger.Logger
	ipLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st store.ScoreStore, services *Services, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(opts.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Retry-After", "Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if services != nil && services.Tokens != nil {
		router.Use(adminMiddleware(services.Tokens))
	}

	humaConfig := huma.DefaultConfig("PoDropSquare Score API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:     st,
		services:  services,
		router:    router,
		api:       api,
		logger:    log.WithComponent("api"),
		ipLimiter: newIPLimiter(opts.IPRate, opts.IPBurst),
	}

	s.registerHealthRoutes()
	s.registerScoreRoutes()
	s.registerLeaderboardRoutes()
	s.registerPlayerRoutes()
	s.registerAdminRoutes()

	// SSE is streamed outside Huma, which only models request/response.
	if services != nil && services.Stream != nil {
		router.Get("/api/v1/leaderboard/stream", sse.NewHandler(services.Stream, log.WithComponent("sse").Logger).ServeHTTP)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// IPLimiter is the per-client flood limiter, so idle buckets can be evicted.
func (s *Server) IPLimiter() *RateLimiter {
	return s.ipLimiter
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// requestLogger logs one line per request at debug level, and failures above it.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.WithComponent("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"took", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				log.Error("request failed", args...)
			case ww.Status() >= http.StatusBadRequest:
				log.Info("request rejected", args...)
			default:
				log.Debug("request", args...)
			}
		})
	}
}
