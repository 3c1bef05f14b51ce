// Package id generates identifiers for score entries and tokens.
package id

import (
	"fmt"
	"math"
	"strconv"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// suffixAlphabet keeps score IDs lowercase alphanumeric so byte order
	// matches the order a human reads.
	suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixLength   = 12

	// invertedWidth is the fixed hex width of the inverted timestamp prefix.
	invertedWidth = 16
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "tok-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewScoreID returns a score entry ID for an entry submitted at t.
//
// The ID is the inverted timestamp (MaxInt64 - UnixNano) as 16 hex digits,
// a hyphen, and a random lowercase suffix. Byte-wise ascending order of IDs is
// therefore newest-first, which is also the natural scan order of the store.
// Uniqueness needs no coordination: two entries collide only if they share a
// nanosecond and a 12-character random suffix.
func NewScoreID(t time.Time) (string, error) {
	suffix, err := gonanoid.Generate(suffixAlphabet, suffixLength)
	if err != nil {
		return "", fmt.Errorf("generate score id suffix: %w", err)
	}
	return InvertedTime(t) + "-" + suffix, nil
}

// InvertedTime formats t as the fixed-width inverted prefix used by score IDs.
// Later instants produce lexically smaller strings.
func InvertedTime(t time.Time) string {
	return fmt.Sprintf("%0*x", invertedWidth, uint64(math.MaxInt64-t.UnixNano()))
}

// ScoreIDTime recovers the submission instant encoded in a score ID.
func ScoreIDTime(scoreID string) (time.Time, error) {
	if len(scoreID) < invertedWidth+2 || scoreID[invertedWidth] != '-' {
		return time.Time{}, fmt.Errorf("malformed score id %q", scoreID)
	}
	inv, err := strconv.ParseUint(scoreID[:invertedWidth], 16, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed score id %q: %w", scoreID, err)
	}
	if inv > math.MaxInt64 {
		return time.Time{}, fmt.Errorf("malformed score id %q: prefix out of range", scoreID)
	}
	return time.Unix(0, math.MaxInt64-int64(inv)).UTC(), nil
}
