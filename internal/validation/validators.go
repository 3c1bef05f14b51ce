package validation

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"

	"github.com/punkouter26/podropsquare-server/internal/domain"
	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
	"github.com/punkouter26/podropsquare-server/internal/ratelimit"
)

// Field names reported on rejection.
const (
	FieldPlayerInitials   = "playerInitials"
	FieldSurvivalTime     = "survivalTimeSeconds"
	FieldSessionSignature = "sessionSignature"
	FieldClientTimestamp  = "clientTimestamp"
)

// canonicalInitials is the form initials are matched, keyed and signed in.
// Every validator that reads initials applies it, so none depends on Contract
// having run first.
func canonicalInitials(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// claimedAt parses the client timestamp and records it on sub.
func claimedAt(sub *domain.Submission) (time.Time, error) {
	claimed, err := ParseClientTimestamp(sub.ClientTimestamp)
	if err != nil {
		return time.Time{}, domainerrors.MalformedInput(FieldClientTimestamp, "must be an ISO-8601 timestamp")
	}
	sub.ClientClaimedAt = claimed
	return claimed, nil
}

// Contract checks the submission's shape. It normalizes initials to NFKC and
// trims surrounding space before matching them, and parses the client
// timestamp into ClientClaimedAt.
type Contract struct {
	v *StructValidator
}

// NewContract creates a contract validator using v for struct rules.
func NewContract(v *StructValidator) *Contract {
	return &Contract{v: v}
}

// Name implements Validator.
func (*Contract) Name() string { return "contract" }

// Validate implements Validator.
func (c *Contract) Validate(_ context.Context, chk *Check) error {
	sub := chk.Submission
	sub.PlayerInitials = canonicalInitials(sub.PlayerInitials)
	sub.ClientTimestamp = strings.TrimSpace(sub.ClientTimestamp)
	sub.SessionSignature = strings.TrimSpace(sub.SessionSignature)

	if err := c.v.Validate(sub); err != nil {
		return err
	}

	_, err := claimedAt(sub)
	return err
}

// Plausibility rejects survival times outside [Min, Max], both ends inclusive.
// The raw submitted value is compared, before any rounding.
type Plausibility struct {
	Min float64
	Max float64
}

// Name implements Validator.
func (*Plausibility) Name() string { return "plausibility" }

// Validate implements Validator.
func (p *Plausibility) Validate(_ context.Context, chk *Check) error {
	s := chk.Submission.Survival()
	switch {
	case math.IsNaN(s):
		return domainerrors.ImplausibleValue(FieldSurvivalTime, "survival time is not a number")
	case s < p.Min:
		return domainerrors.ImplausibleValuef(FieldSurvivalTime,
			"survival time %gs is below the %gs reaction floor", s, p.Min)
	case s > p.Max:
		return domainerrors.ImplausibleValuef(FieldSurvivalTime,
			"survival time %gs exceeds the %gs session limit", s, p.Max)
	}
	return nil
}

// Limiter is the per-player submission limiter consulted by RateLimit.
type Limiter interface {
	Consume(key string, now time.Time) ratelimit.Decision
}

// RateLimit consumes one submission from the player's window.
type RateLimit struct {
	Limiter Limiter
}

// Name implements Validator.
func (*RateLimit) Name() string { return "ratelimit" }

// Validate implements Validator.
func (r *RateLimit) Validate(_ context.Context, chk *Check) error {
	d := r.Limiter.Consume(canonicalInitials(chk.Submission.PlayerInitials), chk.Now)
	if d.Allowed {
		return nil
	}
	return domainerrors.RateLimited(FieldPlayerInitials, d.RetryAfter)
}

// Signature recomputes the session signature with the shared secret and
// compares it with the submitted one in constant time.
//
// The signature is the hex BLAKE2b-256 MAC, keyed with the secret, of
//
//	INITIALS|SECONDS|CLIENT_TIMESTAMP
//
// where SECONDS is the survival time formatted with two decimals and
// CLIENT_TIMESTAMP is the timestamp exactly as sent.
type Signature struct {
	key atomic.Pointer[[]byte]
}

// NewSignature creates a signature validator for secret.
func NewSignature(secret string) *Signature {
	s := &Signature{}
	s.SetSecret(secret)
	return s
}

// SetSecret replaces the signing secret. Submissions already in flight finish
// against whichever key they loaded.
func (s *Signature) SetSecret(secret string) {
	key := macKey(secret)
	s.key.Store(&key)
}

// Name implements Validator.
func (*Signature) Name() string { return "signature" }

// Validate implements Validator.
func (s *Signature) Validate(_ context.Context, chk *Check) error {
	sub := chk.Submission
	initials := canonicalInitials(sub.PlayerInitials)
	stamp := strings.TrimSpace(sub.ClientTimestamp)
	want := sign(*s.key.Load(), initials, sub.Survival(), stamp)

	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(sub.SessionSignature)))
	if err != nil || subtle.ConstantTimeCompare(got, want) != 1 {
		return domainerrors.SignatureMismatch(FieldSessionSignature)
	}
	return nil
}

// Sign returns the hex session signature a client would send. Used by tools
// and tests that need to produce valid submissions.
func Sign(secret, initials string, survivalSeconds float64, clientTimestamp string) string {
	return hex.EncodeToString(sign(macKey(secret), initials, survivalSeconds, clientTimestamp))
}

// CanonicalPayload is the byte string covered by the session signature.
func CanonicalPayload(initials string, survivalSeconds float64, clientTimestamp string) string {
	return fmt.Sprintf("%s|%.2f|%s", initials, survivalSeconds, clientTimestamp)
}

func sign(key []byte, initials string, survivalSeconds float64, clientTimestamp string) []byte {
	mac, err := blake2b.New256(key)
	if err != nil {
		// macKey never yields a key longer than blake2b.Size.
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	mac.Write([]byte(CanonicalPayload(initials, survivalSeconds, clientTimestamp)))
	return mac.Sum(nil)
}

// macKey fits secret into a BLAKE2b key, hashing secrets longer than 64 bytes.
func macKey(secret string) []byte {
	if len(secret) <= blake2b.Size {
		return []byte(secret)
	}
	sum := blake2b.Sum512([]byte(secret))
	return sum[:]
}

// ClockSkew rejects submissions whose client clock is more than Tolerance
// away from server time, in either direction.
type ClockSkew struct {
	Tolerance time.Duration
}

// Name implements Validator.
func (*ClockSkew) Name() string { return "clockskew" }

// Validate implements Validator. It parses the timestamp itself rather than
// trusting ClientClaimedAt.
func (c *ClockSkew) Validate(_ context.Context, chk *Check) error {
	claimed, err := claimedAt(chk.Submission)
	if err != nil {
		return err
	}
	skew := chk.Now.Sub(claimed)
	if skew < 0 {
		skew = -skew
	}
	if skew > c.Tolerance {
		return domainerrors.ClockSkewExceeded(FieldClientTimestamp, skew, c.Tolerance)
	}
	return nil
}
