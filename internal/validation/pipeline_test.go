package validation_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/domain"
	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/ratelimit"
	"github.com/punkouter26/podropsquare-server/internal/validation"
)

const testSecret = "test-secret"

var serverNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func defaultOptions() validation.Options {
	return validation.Options{
		MinSurvivalSeconds: 0.25,
		MaxSurvivalSeconds: 20,
		MaxClockSkew:       10 * time.Minute,
		SignatureSecret:    testSecret,
	}
}

func newPipeline(t *testing.T) (*validation.Pipeline, *clock.Manual, *ratelimit.FixedWindow) {
	t.Helper()
	clk := clock.NewManual(serverNow)
	limiter := ratelimit.NewFixedWindow(5, 60*time.Second)
	p := validation.NewPipeline(clk, nil, validation.DefaultValidators(defaultOptions(), limiter)...)
	return p, clk, limiter
}

func signed(initials string, survival float64, ts time.Time) domain.Submission {
	stamp := ts.UTC().Format(time.RFC3339Nano)
	return domain.Submission{
		PlayerInitials:      initials,
		SurvivalTimeSeconds: f64(survival),
		SessionSignature:    validation.Sign(testSecret, initials, survival, stamp),
		ClientTimestamp:     stamp,
	}
}

func requireCode(t *testing.T, err error, code domainerrors.Code, field string) *domainerrors.Error {
	t.Helper()
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
	assert.Equal(t, field, de.Field)
	return de
}

func TestPipeline_Order(t *testing.T) {
	p, _, _ := newPipeline(t)
	assert.Equal(t, []string{"contract", "plausibility", "ratelimit", "signature", "clockskew"}, p.Validators())
}

func TestPipeline_AcceptsAndRounds(t *testing.T) {
	p, _, _ := newPipeline(t)

	sub := signed("ABC", 15.754, serverNow.Add(-30*time.Second))
	got, err := p.Validate(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, "ABC", got.PlayerInitials)
	assert.Equal(t, 15.75, *got.SurvivalTimeSeconds)
	assert.True(t, got.ClientClaimedAt.Equal(serverNow.Add(-30*time.Second)))
}

func TestPipeline_NormalizesFullwidthInitials(t *testing.T) {
	p, _, _ := newPipeline(t)

	// Client signs the normalized form.
	sub := signed("ABC", 3, serverNow)
	sub.PlayerInitials = " ＡＢＣ "

	got, err := p.Validate(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "ABC", got.PlayerInitials)
}

func TestPipeline_PlausibilityBoundaries(t *testing.T) {
	const eps = 1e-6

	tests := []struct {
		name     string
		survival float64
		accepted bool
	}{
		{"exactly at floor", 0.25, true},
		{"just below floor", 0.25 - eps, false},
		{"exactly at ceiling", 20, true},
		{"just above ceiling", 20 + eps, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newPipeline(t)
			_, err := p.Validate(context.Background(), signed("P1", tt.survival, serverNow))
			if tt.accepted {
				assert.NoError(t, err)
				return
			}
			requireCode(t, err, domainerrors.CodeImplausibleValue, "survivalTimeSeconds")
		})
	}
}

func TestPipeline_NegativeSurvival(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.Validate(context.Background(), signed("ABC", -1, serverNow))
	requireCode(t, err, domainerrors.CodeMalformedInput, "survivalTimeSeconds")
}

func TestPipeline_RateLimit(t *testing.T) {
	p, clk, _ := newPipeline(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := p.Validate(ctx, signed("ABC", 5, clk.Now()))
		require.NoError(t, err, "submission %d", i+1)
	}

	clk.Advance(20 * time.Second)
	_, err := p.Validate(ctx, signed("ABC", 5, clk.Now()))
	de := requireCode(t, err, domainerrors.CodeRateLimited, "playerInitials")
	assert.Equal(t, 40*time.Second, de.RetryAfter)
	assert.Equal(t, 40, de.RetryAfterSeconds())

	// Another player is unaffected.
	_, err = p.Validate(ctx, signed("XYZ", 5, clk.Now()))
	assert.NoError(t, err)

	clk.Set(serverNow.Add(61 * time.Second))
	_, err = p.Validate(ctx, signed("ABC", 5, clk.Now()))
	assert.NoError(t, err)
}

func TestPipeline_SignatureMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *domain.Submission)
	}{
		{"tampered survival", func(s *domain.Submission) { s.SurvivalTimeSeconds = f64(19.99) }},
		{"tampered initials", func(s *domain.Submission) { s.PlayerInitials = "ZZZ" }},
		{"tampered timestamp", func(s *domain.Submission) { s.ClientTimestamp = serverNow.Add(time.Second).Format(time.RFC3339) }},
		{"not hex", func(s *domain.Submission) { s.SessionSignature = "not-a-signature" }},
		{"wrong secret", func(s *domain.Submission) {
			s.SessionSignature = validation.Sign("other", s.PlayerInitials, *s.SurvivalTimeSeconds, s.ClientTimestamp)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newPipeline(t)
			sub := signed("ABC", 12.5, serverNow)
			tt.mutate(&sub)

			_, err := p.Validate(context.Background(), sub)
			requireCode(t, err, domainerrors.CodeSignatureMismatch, "sessionSignature")
		})
	}
}

func TestPipeline_SignatureIsCaseInsensitiveHex(t *testing.T) {
	p, _, _ := newPipeline(t)
	sub := signed("ABC", 12.5, serverNow)
	sub.SessionSignature = "  " + upper(sub.SessionSignature)

	_, err := p.Validate(context.Background(), sub)
	assert.NoError(t, err)
}

func TestPipeline_SignatureRotation(t *testing.T) {
	p, clk, _ := newPipeline(t)
	sig, ok := p.Signature()
	require.True(t, ok)

	sig.SetSecret("rotated")

	_, err := p.Validate(context.Background(), signed("ABC", 12.5, clk.Now()))
	requireCode(t, err, domainerrors.CodeSignatureMismatch, "sessionSignature")

	stamp := clk.Now().Format(time.RFC3339Nano)
	sub := signed("ABC", 12.5, clk.Now())
	sub.SessionSignature = validation.Sign("rotated", "ABC", 12.5, stamp)
	_, err = p.Validate(context.Background(), sub)
	assert.NoError(t, err)

	bare := validation.NewPipeline(clk, nil, &validation.Plausibility{Min: 1, Max: 2})
	_, ok = bare.Signature()
	assert.False(t, ok)
}

func TestPipeline_ClockSkew(t *testing.T) {
	tests := []struct {
		name     string
		offset   time.Duration
		accepted bool
	}{
		{"in sync", 0, true},
		{"ten minutes behind", -10 * time.Minute, true},
		{"ten minutes ahead", 10 * time.Minute, true},
		{"twenty minutes behind", -20 * time.Minute, false},
		{"twenty minutes ahead", 20 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newPipeline(t)
			_, err := p.Validate(context.Background(), signed("ABC", 10, serverNow.Add(tt.offset)))
			if tt.accepted {
				assert.NoError(t, err)
				return
			}
			requireCode(t, err, domainerrors.CodeClockSkewExceeded, "clientTimestamp")
		})
	}
}

func TestPipeline_ShortCircuits(t *testing.T) {
	p, _, limiter := newPipeline(t)

	// Implausible submissions never reach the rate limiter.
	for i := 0; i < 10; i++ {
		_, err := p.Validate(context.Background(), signed("ABC", 99, serverNow))
		requireCode(t, err, domainerrors.CodeImplausibleValue, "survivalTimeSeconds")
	}
	_, ok := limiter.Lookup("ABC")
	assert.False(t, ok)
}

func TestPipeline_CanceledContext(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Validate(ctx, signed("ABC", 10, serverNow))
	assert.ErrorIs(t, err, context.Canceled)
}

// Removing or reordering stateless validators must not change the outcome for
// an input every validator accepts, including one that needs normalizing.
func TestPipeline_StatelessValidatorsCommute(t *testing.T) {
	opts := defaultOptions()
	stamp := serverNow.Add(3 * time.Minute).Format(time.RFC3339Nano)
	sub := domain.Submission{
		PlayerInitials:      " ＱＱ７ ",
		SurvivalTimeSeconds: f64(7.77),
		SessionSignature:    " " + upper(validation.Sign(testSecret, "QQ7", 7.77, stamp)) + " ",
		ClientTimestamp:     " " + stamp,
	}

	all := []validation.Validator{
		validation.NewContract(validation.New()),
		&validation.Plausibility{Min: opts.MinSurvivalSeconds, Max: opts.MaxSurvivalSeconds},
		validation.NewSignature(testSecret),
		&validation.ClockSkew{Tolerance: opts.MaxClockSkew},
	}

	for _, order := range permutations(all) {
		for n := 1; n <= len(order); n++ {
			vs := order[:n]
			p := validation.NewPipeline(clock.NewManual(serverNow), nil, vs...)
			t.Run(strings.Join(p.Validators(), ","), func(t *testing.T) {
				_, err := p.Validate(context.Background(), sub)
				require.NoError(t, err)
			})
		}
	}
}

func TestClockSkew_ParsesTimestampItself(t *testing.T) {
	p := validation.NewPipeline(clock.NewManual(serverNow), nil, &validation.ClockSkew{Tolerance: time.Minute})

	got, err := p.Validate(context.Background(), domain.Submission{
		SurvivalTimeSeconds: f64(1),
		ClientTimestamp:     serverNow.Add(-30 * time.Second).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.True(t, got.ClientClaimedAt.Equal(serverNow.Add(-30*time.Second)))

	_, err = p.Validate(context.Background(), domain.Submission{
		SurvivalTimeSeconds: f64(1),
		ClientTimestamp:     "yesterday",
	})
	requireCode(t, err, domainerrors.CodeMalformedInput, "clientTimestamp")
}

func permutations(vs []validation.Validator) [][]validation.Validator {
	if len(vs) <= 1 {
		return [][]validation.Validator{append([]validation.Validator(nil), vs...)}
	}
	var out [][]validation.Validator
	for i := range vs {
		rest := make([]validation.Validator, 0, len(vs)-1)
		rest = append(rest, vs[:i]...)
		rest = append(rest, vs[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]validation.Validator{vs[i]}, p...))
		}
	}
	return out
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
