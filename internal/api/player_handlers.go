package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/punkouter26/podropsquare-server/internal/validation"
)

func (s *Server) registerPlayerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPlayerScores",
		Method:      http.MethodGet,
		Path:        "/api/v1/players/{initials}/scores",
		Summary:     "List a player's scores",
		Description: "Returns every stored score for the player, best first",
		Tags:        []string{"Players"},
	}, s.handleListPlayerScores)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPlayerRank",
		Method:      http.MethodGet,
		Path:        "/api/v1/players/{initials}/rank",
		Summary:     "Get a player's rank",
		Description: "Returns the player's best score and its exact leaderboard position",
		Tags:        []string{"Players"},
	}, s.handleGetPlayerRank)
}

// === DTOs ===

// PlayerInput identifies a player.
type PlayerInput struct {
	Initials string `path:"initials" doc:"Player initials"`
}

// PlayerScoresResponse contains a player's history.
type PlayerScoresResponse struct {
	PlayerInitials string          `json:"playerInitials" doc:"Normalized initials"`
	Scores         []ScoreResponse `json:"scores" doc:"Scores, best first"`
}

// PlayerScoresOutput wraps the history for Huma.
type PlayerScoresOutput struct {
	Body PlayerScoresResponse
}

// PlayerRankResponse is a player's standing.
type PlayerRankResponse struct {
	PlayerInitials string                   `json:"playerInitials" doc:"Normalized initials"`
	Rank           int                      `json:"rank" doc:"Exact position of the player's best score"`
	Best           LeaderboardEntryResponse `json:"best" doc:"The player's best score"`
	Entries        int                      `json:"entries" doc:"How many scores the player has on record"`
}

// PlayerRankOutput wraps the standing for Huma.
type PlayerRankOutput struct {
	Body PlayerRankResponse
}

// === Handlers ===

func (s *Server) handleListPlayerScores(ctx context.Context, input *PlayerInput) (*PlayerScoresOutput, error) {
	history, err := s.services.Scores.History(ctx, input.Initials)
	if err != nil {
		return nil, toAPIError(err)
	}

	// History has already accepted the initials.
	initials, _ := validation.NormalizeInitials(input.Initials)
	resp := PlayerScoresResponse{
		PlayerInitials: initials,
		Scores:         make([]ScoreResponse, 0, len(history)),
	}
	for _, e := range history {
		resp.Scores = append(resp.Scores, newScoreResponse(e))
	}
	return &PlayerScoresOutput{Body: resp}, nil
}

func (s *Server) handleGetPlayerRank(ctx context.Context, input *PlayerInput) (*PlayerRankOutput, error) {
	standing, err := s.services.Leaderboard.Standing(ctx, input.Initials)
	if err != nil {
		return nil, toAPIError(err)
	}

	return &PlayerRankOutput{
		Body: PlayerRankResponse{
			PlayerInitials: standing.Best.PlayerInitials,
			Rank:           standing.Best.Rank,
			Best:           newLeaderboardEntryResponse(standing.Best),
			Entries:        standing.Entries,
		},
	}, nil
}
