package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"store":       s.checkStore(ctx),
		"leaderboard": s.checkLeaderboard(),
	}
	if s.services != nil && s.services.Stream != nil {
		components["stream"] = ComponentHealth{
			Status:  "healthy",
			Message: strconv.Itoa(s.services.Stream.ClientCount()) + " clients connected",
		}
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkStore verifies the score store answers a cheap query.
func (s *Server) checkStore(ctx context.Context) ComponentHealth {
	// Handle nil store (e.g., in tests)
	if s.store == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "store not configured",
		}
	}

	start := time.Now()
	n, err := s.store.Count(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "store read failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
		Message: formatScoreCount(n),
	}
}

// checkLeaderboard reports when the cached snapshot was last computed.
func (s *Server) checkLeaderboard() ComponentHealth {
	if s.services == nil || s.services.Leaderboard == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "leaderboard not configured",
		}
	}

	snap := s.services.Leaderboard.Peek()
	if snap == nil {
		return ComponentHealth{Status: "healthy", Message: "not yet computed"}
	}
	return ComponentHealth{Status: "healthy", Message: "generated " + snap.GeneratedAt.Format(time.RFC3339)}
}

func formatScoreCount(n int) string {
	if n == 1 {
		return "1 score stored"
	}
	return strconv.Itoa(n) + " scores stored"
}
