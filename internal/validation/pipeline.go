package validation

import (
	"context"
	"time"

	"github.com/punkouter26/podropsquare-server/internal/clock"
	"github.com/punkouter26/podropsquare-server/internal/domain"
	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/logger"
	"github.com/punkouter26/podropsquare-server/internal/scoring"
)

// Check is the state shared by the validators for one submission.
// Validators may normalize Submission in place.
type Check struct {
	Submission *domain.Submission
	Now        time.Time
}

// A Validator is one independent rule a submission must satisfy.
// Validate returns a *errors.Error on rejection.
type Validator interface {
	Name() string
	Validate(ctx context.Context, c *Check) error
}

// Pipeline runs validators in order and stops at the first rejection.
type Pipeline struct {
	clock      clock.Clock
	validators []Validator
	logger     *logger.Logger
}

// NewPipeline creates a pipeline over validators, in the order given.
func NewPipeline(clk clock.Clock, log *logger.Logger, validators ...Validator) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{
		clock:      clk,
		validators: validators,
		logger:     log.WithComponent("validation"),
	}
}

// Validators returns the names of the configured validators in run order.
func (p *Pipeline) Validators() []string {
	names := make([]string, len(p.validators))
	for i, v := range p.validators {
		names[i] = v.Name()
	}
	return names
}

// Signature returns the pipeline's signature validator, if it has one.
func (p *Pipeline) Signature() (*Signature, bool) {
	for _, v := range p.validators {
		if sig, ok := v.(*Signature); ok {
			return sig, true
		}
	}
	return nil, false
}

// Validate checks sub against the current time.
func (p *Pipeline) Validate(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	return p.ValidateAt(ctx, sub, p.clock.Now())
}

// ValidateAt checks sub as of now. On success it returns the normalized
// submission with survival time rounded to two decimals; on rejection the
// error is a *errors.Error carrying the code and offending field.
func (p *Pipeline) ValidateAt(ctx context.Context, sub domain.Submission, now time.Time) (domain.Submission, error) {
	c := &Check{Submission: &sub, Now: now}

	for _, v := range p.validators {
		if err := ctx.Err(); err != nil {
			return domain.Submission{}, err
		}
		if err := v.Validate(ctx, c); err != nil {
			var de *domainerrors.Error
			if domainerrors.As(err, &de) {
				p.logger.Debug("submission rejected",
					"validator", v.Name(),
					"code", de.Code,
					"field", de.Field,
					"player", sub.PlayerInitials,
				)
			}
			return domain.Submission{}, err
		}
	}

	// Rounding happens only after every bound was checked on the raw value.
	rounded := scoring.RoundSurvival(sub.Survival())
	sub.SurvivalTimeSeconds = &rounded
	return sub, nil
}

// Options configures the default validator chain.
type Options struct {
	MinSurvivalSeconds float64
	MaxSurvivalSeconds float64
	MaxClockSkew       time.Duration
	SignatureSecret    string
}

// DefaultValidators returns the standard chain: contract, plausibility, rate
// limit, signature, clock skew. Cheap structural checks run first.
func DefaultValidators(opts Options, limiter Limiter) []Validator {
	return []Validator{
		NewContract(New()),
		&Plausibility{Min: opts.MinSurvivalSeconds, Max: opts.MaxSurvivalSeconds},
		&RateLimit{Limiter: limiter},
		NewSignature(opts.SignatureSecret),
		&ClockSkew{Tolerance: opts.MaxClockSkew},
	}
}
