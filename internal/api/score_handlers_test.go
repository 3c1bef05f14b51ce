package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punkouter26/podropsquare-server/internal/store/storetest"
	"github.com/punkouter26/podropsquare-server/internal/validation"
)

// seedStore writes n entries straight to the store, all submitted well before
// the server's clock. Scores run from 100 to 2899, below a perfect 20s run.
func (ts *testServer) seedStore(t *testing.T, n int) (ahead func(score int64) int) {
	t.Helper()
	scores := make([]int64, 0, n)
	for i := range n {
		score := int64(100 + (i*97)%2800)
		e := storetest.Entry(t, fmt.Sprintf("P%02d", i), score, time.Duration(i)*time.Second)
		require.NoError(t, ts.store.Append(context.Background(), e))
		scores = append(scores, score)
	}
	return func(score int64) int {
		count := 0
		for _, s := range scores {
			if s >= score {
				count++ // earlier submission wins ties
			}
		}
		return count
	}
}

func TestSubmitScore_AcceptedWithRank(t *testing.T) {
	ts := setupTestServer(t)
	ahead := ts.seedStore(t, 60)

	resp := ts.api.Post("/api/v1/scores", ts.submission("ABC", 15.75))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	body := decode[SubmitScoreResponse](t, resp)
	assert.True(t, body.Accepted)
	assert.Equal(t, "ABC", body.PlayerInitials)
	assert.Equal(t, int64(2325), body.CalculatedScore)
	assert.InDelta(t, 15.75, body.SurvivalTimeSeconds, 1e-9)
	assert.Equal(t, ahead(2325)+1, body.Rank)
	assert.True(t, serverNow.Equal(body.SubmittedAt))
	assert.Equal(t, "/api/v1/scores/"+body.ID, resp.Header().Get("Location"))

	got := ts.api.Get("/api/v1/scores/" + body.ID)
	require.Equal(t, http.StatusOK, got.Code)
	entry := decode[ScoreResponse](t, got)
	assert.Equal(t, body.ID, entry.ID)
	assert.Equal(t, int64(2325), entry.CalculatedScore)
}

func TestSubmitScore_NormalizesInitials(t *testing.T) {
	ts := setupTestServer(t)

	// Clients sign the normalized form.
	sub := ts.submission("AB", 3)
	sub["playerInitials"] = " ＡＢ "
	resp := ts.api.Post("/api/v1/scores", sub)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "AB", decode[SubmitScoreResponse](t, resp).PlayerInitials)
}

func TestSubmitScore_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   func(ts *testServer) map[string]any
		status int
		code   string
		field  string
		schema bool // rejected by request decoding, before the pipeline
	}{
		{
			name:   "negative survival",
			body:   func(ts *testServer) map[string]any { return ts.submission("ABC", -1) },
			status: http.StatusUnprocessableEntity,
			code:   "MALFORMED_INPUT",
			field:  validation.FieldSurvivalTime,
		},
		{
			name:   "above ceiling",
			body:   func(ts *testServer) map[string]any { return ts.submission("ABC", 20.01) },
			status: http.StatusUnprocessableEntity,
			code:   "IMPLAUSIBLE_VALUE",
			field:  validation.FieldSurvivalTime,
		},
		{
			name: "clock skewed 20 minutes",
			body: func(ts *testServer) map[string]any {
				stamp := ts.clock.Now().Add(20 * time.Minute).Format(time.RFC3339)
				return map[string]any{
					"playerInitials":      "ABC",
					"survivalTimeSeconds": 10.0,
					"sessionSignature":    validation.Sign(testSecret, "ABC", 10, stamp),
					"clientTimestamp":     stamp,
				}
			},
			status: http.StatusUnprocessableEntity,
			code:   "CLOCK_SKEW_EXCEEDED",
			field:  validation.FieldClientTimestamp,
		},
		{
			name: "tampered survival",
			body: func(ts *testServer) map[string]any {
				sub := ts.submission("ABC", 5)
				sub["survivalTimeSeconds"] = 19.5
				return sub
			},
			status: http.StatusUnprocessableEntity,
			code:   "SIGNATURE_MISMATCH",
			field:  validation.FieldSessionSignature,
		},
		{
			name: "missing initials",
			body: func(ts *testServer) map[string]any {
				sub := ts.submission("ABC", 5)
				delete(sub, "playerInitials")
				return sub
			},
			status: http.StatusUnprocessableEntity,
			code:   "MALFORMED_INPUT",
			field:  validation.FieldPlayerInitials,
		},
		{
			name: "survival of the wrong type",
			body: func(ts *testServer) map[string]any {
				sub := ts.submission("ABC", 5)
				sub["survivalTimeSeconds"] = "fast"
				return sub
			},
			status: http.StatusUnprocessableEntity,
			code:   "MALFORMED_INPUT",
			field:  validation.FieldSurvivalTime,
			schema: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)

			resp := ts.api.Post("/api/v1/scores", tt.body(ts))
			require.Equal(t, tt.status, resp.Code, resp.Body.String())

			body := decode[APIError](t, resp)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.field, body.Field)
			if !tt.schema {
				require.NotNil(t, body.Accepted)
				assert.False(t, *body.Accepted)
				assert.NotEmpty(t, body.Reason)
			}

			n, err := ts.store.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n, "rejected submissions are never stored")
		})
	}
}

func TestSubmitScore_PlayerRateLimit(t *testing.T) {
	ts := setupTestServer(t)

	for i := range 5 {
		resp := ts.api.Post("/api/v1/scores", ts.submission("RL", 5))
		require.Equal(t, http.StatusCreated, resp.Code, "submission %d: %s", i, resp.Body.String())
		ts.clock.Advance(2 * time.Second)
	}

	// Window opened at serverNow; ten seconds in, fifty remain.
	resp := ts.api.Post("/api/v1/scores", ts.submission("RL", 5))
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "50", resp.Header().Get("Retry-After"))

	body := decode[APIError](t, resp)
	assert.Equal(t, "RATE_LIMITED", body.Code)
	assert.Equal(t, validation.FieldPlayerInitials, body.Field)
	assert.Equal(t, 50, body.RetryAfterSeconds)
	require.NotNil(t, body.Accepted)
	assert.False(t, *body.Accepted)

	// Another player is unaffected.
	other := ts.api.Post("/api/v1/scores", ts.submission("XY", 5))
	assert.Equal(t, http.StatusCreated, other.Code)

	// windowStart + 61s opens a fresh window.
	ts.clock.Set(serverNow.Add(61 * time.Second))
	again := ts.api.Post("/api/v1/scores", ts.submission("RL", 5))
	assert.Equal(t, http.StatusCreated, again.Code, again.Body.String())
}

func TestGetScore_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/scores/7fffffffffffffff-missing00000")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[APIError](t, resp).Code)
}
