package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
)

func (s *Server) registerAdminRoutes() {
	if s.services == nil || s.services.Tokens == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "purgeScores",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/retention/purge",
		Summary:     "Purge old scores",
		Description: "Deletes every score submitted before a cutoff. Admin only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePurgeScores)
}

// === DTOs ===

// PurgeRequest names the cutoff, either absolutely or as an age.
type PurgeRequest struct {
	OlderThan *time.Time `json:"olderThan,omitempty" doc:"Delete scores submitted before this instant"`
	MaxAge    string     `json:"maxAge,omitempty" doc:"Delete scores older than this Go duration, e.g. 720h"`
}

// PurgeInput wraps the purge request for Huma.
type PurgeInput struct {
	Body PurgeRequest
}

// PurgeResponse reports the outcome.
type PurgeResponse struct {
	Purged int `json:"purged" doc:"Number of scores deleted"`
}

// PurgeOutput wraps the purge response for Huma.
type PurgeOutput struct {
	Body PurgeResponse
}

// === Handlers ===

func (s *Server) handlePurgeScores(ctx context.Context, input *PurgeInput) (*PurgeOutput, error) {
	subject, err := RequireAdmin(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}

	var purged int
	switch body := input.Body; {
	case body.OlderThan != nil && body.MaxAge != "":
		return nil, toAPIError(domainerrors.MalformedInput("olderThan", "set either olderThan or maxAge, not both"))
	case body.OlderThan != nil:
		purged, err = s.services.Retention.Purge(ctx, *body.OlderThan)
	case body.MaxAge != "":
		maxAge, perr := time.ParseDuration(body.MaxAge)
		if perr != nil {
			return nil, toAPIError(domainerrors.MalformedInput("maxAge", "not a valid duration"))
		}
		purged, err = s.services.Retention.PurgeOlderThan(ctx, maxAge)
	default:
		return nil, toAPIError(domainerrors.MalformedInput("olderThan", "olderThan or maxAge is required"))
	}
	if err != nil {
		return nil, toAPIError(err)
	}

	s.logger.Info("retention purge requested", "admin", subject, "purged", purged)
	return &PurgeOutput{Body: PurgeResponse{Purged: purged}}, nil
}
