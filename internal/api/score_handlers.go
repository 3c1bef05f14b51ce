package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/punkouter26/podropsquare-server/internal/domain"
)

func (s *Server) registerScoreRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "submitScore",
		Method:        http.MethodPost,
		Path:          "/api/v1/scores",
		Summary:       "Submit a score",
		Description:   "Validates a game result and, if accepted, records it and returns its exact rank",
		Tags:          []string{"Scores"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{s.limitByIP},
	}, s.handleSubmitScore)

	huma.Register(s.api, huma.Operation{
		OperationID: "getScore",
		Method:      http.MethodGet,
		Path:        "/api/v1/scores/{id}",
		Summary:     "Get a score",
		Description: "Returns a single accepted score by ID",
		Tags:        []string{"Scores"},
	}, s.handleGetScore)
}

// === DTOs ===

// SubmitScoreRequest is the body of a score submission. Every field is
// optional at the schema level so that missing values are reported by the
// validation pipeline with the same shape as any other rejection.
type SubmitScoreRequest struct {
	PlayerInitials      string   `json:"playerInitials" required:"false" doc:"1-3 characters, A-Z and 0-9" example:"ABC"`
	SurvivalTimeSeconds *float64 `json:"survivalTimeSeconds" required:"false" doc:"Seconds survived" example:"15.75"`
	SessionSignature    string   `json:"sessionSignature" required:"false" doc:"Hex MAC over the submission issued to the game session"`
	ClientTimestamp     string   `json:"clientTimestamp" required:"false" doc:"RFC 3339 time the client finished the game" example:"2026-03-14T12:00:00Z"`
}

// SubmitScoreInput wraps the submission for Huma.
type SubmitScoreInput struct {
	Body SubmitScoreRequest
}

// SubmitScoreResponse describes an accepted score.
type SubmitScoreResponse struct {
	Accepted            bool      `json:"accepted" doc:"Always true"`
	ID                  string    `json:"id" doc:"Score ID"`
	PlayerInitials      string    `json:"playerInitials" doc:"Normalized initials"`
	SurvivalTimeSeconds float64   `json:"survivalTimeSeconds" doc:"Survival time as stored"`
	CalculatedScore     int64     `json:"calculatedScore" doc:"Points awarded"`
	Rank                int       `json:"rank,omitempty" doc:"1-based leaderboard position at acceptance; omitted if it could not be computed"`
	SubmittedAt         time.Time `json:"submittedAt" doc:"Server receipt time"`
}

// SubmitScoreOutput wraps the submit response for Huma.
type SubmitScoreOutput struct {
	Location string `header:"Location"`
	Body     SubmitScoreResponse
}

// ScoreResponse is a stored score.
type ScoreResponse struct {
	ID                  string    `json:"id" doc:"Score ID"`
	PlayerInitials      string    `json:"playerInitials" doc:"Player initials"`
	SurvivalTimeSeconds float64   `json:"survivalTimeSeconds" doc:"Survival time in seconds"`
	CalculatedScore     int64     `json:"calculatedScore" doc:"Points awarded"`
	SubmittedAt         time.Time `json:"submittedAt" doc:"Server receipt time"`
	ClientClaimedAt     time.Time `json:"clientClaimedAt" doc:"Completion time claimed by the client"`
}

// GetScoreInput contains parameters for getting a score.
type GetScoreInput struct {
	ID string `path:"id" doc:"Score ID"`
}

// ScoreOutput wraps a score for Huma.
type ScoreOutput struct {
	Body ScoreResponse
}

// === Handlers ===

func (s *Server) handleSubmitScore(ctx context.Context, input *SubmitScoreInput) (*SubmitScoreOutput, error) {
	sub := domain.Submission{
		PlayerInitials:      input.Body.PlayerInitials,
		SurvivalTimeSeconds: input.Body.SurvivalTimeSeconds,
		SessionSignature:    input.Body.SessionSignature,
		ClientTimestamp:     input.Body.ClientTimestamp,
	}

	result, err := s.services.Scores.Submit(ctx, sub)
	if err != nil {
		return nil, rejection(err)
	}

	e := result.Entry
	return &SubmitScoreOutput{
		Location: "/api/v1/scores/" + e.ID,
		Body: SubmitScoreResponse{
			Accepted:            true,
			ID:                  e.ID,
			PlayerInitials:      e.PlayerInitials,
			SurvivalTimeSeconds: e.SurvivalTimeSeconds,
			CalculatedScore:     e.CalculatedScore,
			Rank:                result.Rank,
			SubmittedAt:         e.SubmittedAt,
		},
	}, nil
}

func (s *Server) handleGetScore(ctx context.Context, input *GetScoreInput) (*ScoreOutput, error) {
	e, err := s.services.Scores.Entry(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &ScoreOutput{Body: newScoreResponse(e)}, nil
}

func newScoreResponse(e *domain.ScoreEntry) ScoreResponse {
	return ScoreResponse{
		ID:                  e.ID,
		PlayerInitials:      e.PlayerInitials,
		SurvivalTimeSeconds: e.SurvivalTimeSeconds,
		CalculatedScore:     e.CalculatedScore,
		SubmittedAt:         e.SubmittedAt,
		ClientClaimedAt:     e.ClientClaimedAt,
	}
}
