package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/conditional"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

func (s *Server) registerLeaderboardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getLeaderboard",
		Method:      http.MethodGet,
		Path:        "/api/v1/leaderboard",
		Summary:     "Get the leaderboard",
		Description: "Returns the top scores. Supports If-None-Match against the freshness token.",
		Tags:        []string{"Leaderboard"},
	}, s.handleGetLeaderboard)
}

// === DTOs ===

// GetLeaderboardInput contains parameters for reading the leaderboard.
type GetLeaderboardInput struct {
	conditional.Params
	Limit int `query:"limit" minimum:"0" doc:"Maximum entries to return; 0 or above the server maximum returns all cached entries"`
}

// LeaderboardEntryResponse is one ranked row.
type LeaderboardEntryResponse struct {
	Rank                int       `json:"rank" doc:"1-based position"`
	ID                  string    `json:"id" doc:"Score ID"`
	PlayerInitials      string    `json:"playerInitials" doc:"Player initials"`
	CalculatedScore     int64     `json:"calculatedScore" doc:"Points"`
	SurvivalTimeSeconds float64   `json:"survivalTimeSeconds" doc:"Survival time in seconds"`
	AchievedAt          time.Time `json:"achievedAt" doc:"When the score was submitted"`
}

// LeaderboardResponse is a leaderboard snapshot.
type LeaderboardResponse struct {
	Entries        []LeaderboardEntryResponse `json:"entries" doc:"Ranked entries, best first"`
	GeneratedAt    time.Time                  `json:"generatedAt" doc:"When the snapshot was computed"`
	FreshnessToken string                     `json:"freshnessToken" doc:"Changes exactly when the ranking changes"`
	Stale          bool                       `json:"stale" doc:"True when served from an older snapshot because a refresh failed"`
}

// LeaderboardOutput wraps the leaderboard for Huma.
type LeaderboardOutput struct {
	ETag         string `header:"ETag"`
	CacheControl string `header:"Cache-Control"`
	Body         LeaderboardResponse
}

// === Handlers ===

func (s *Server) handleGetLeaderboard(ctx context.Context, input *GetLeaderboardInput) (*LeaderboardOutput, error) {
	limit := input.Limit
	if limit > s.services.Leaderboard.MaxLimit() {
		limit = 0
	}

	snap, err := s.services.Leaderboard.Top(ctx, limit)
	if err != nil {
		return nil, toAPIError(err)
	}

	etag := quoteETag(snap.FreshnessToken)
	if input.HasConditionalParams() {
		if err := input.PreconditionFailed(snap.FreshnessToken, time.Time{}); err != nil {
			return nil, huma.ErrorWithHeaders(err, http.Header{"ETag": []string{etag}})
		}
	}

	return &LeaderboardOutput{
		ETag:         etag,
		CacheControl: s.cacheControl(snap),
		Body:         newLeaderboardResponse(snap),
	}, nil
}

func (s *Server) cacheControl(snap *domain.Snapshot) string {
	if snap.Stale {
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d", int(s.services.Leaderboard.CacheTTL().Seconds()))
}

func quoteETag(token string) string {
	return `"` + token + `"`
}

func newLeaderboardResponse(snap *domain.Snapshot) LeaderboardResponse {
	entries := make([]LeaderboardEntryResponse, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		entries = append(entries, newLeaderboardEntryResponse(e))
	}
	return LeaderboardResponse{
		Entries:        entries,
		GeneratedAt:    snap.GeneratedAt,
		FreshnessToken: snap.FreshnessToken,
		Stale:          snap.Stale,
	}
}

func newLeaderboardEntryResponse(e domain.LeaderboardEntry) LeaderboardEntryResponse {
	return LeaderboardEntryResponse{
		Rank:                e.Rank,
		ID:                  e.ID,
		PlayerInitials:      e.PlayerInitials,
		CalculatedScore:     e.CalculatedScore,
		SurvivalTimeSeconds: e.SurvivalTimeSeconds,
		AchievedAt:          e.AchievedAt,
	}
}
