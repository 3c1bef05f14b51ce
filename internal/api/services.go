package api

import (
	"github.com/punkouter26/podropsquare-server/internal/auth"
	"github.com/punkouter26/podropsquare-server/internal/service"
	"github.com/punkouter26/podropsquare-server/internal/sse"
)

// Services groups the business logic used by the API server.
type Services struct {
	Scores      *service.ScoreService
	Leaderboard *service.LeaderboardService
	Retention   *service.RetentionService
	Tokens      *auth.TokenService // nil disables the admin endpoints
	Stream      *sse.Manager       // nil disables the leaderboard stream
}
