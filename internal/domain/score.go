package domain

import (
	"math"
	"time"
)

// Submission is a raw score submission as sent by a game client.
//
// SurvivalTimeSeconds is a pointer so an absent value can be told apart from
// zero. ClientClaimedAt is filled in once ClientTimestamp has been parsed.
type Submission struct {
	PlayerInitials      string   `json:"playerInitials" validate:"required,initials"`
	SurvivalTimeSeconds *float64 `json:"survivalTimeSeconds" validate:"required,finite,gt=0"`
	SessionSignature    string   `json:"sessionSignature" validate:"required,max=256"`
	ClientTimestamp     string   `json:"clientTimestamp" validate:"required,iso8601"`

	ClientClaimedAt time.Time `json:"-"`
}

// Survival returns the submitted survival time, or NaN when absent.
func (s *Submission) Survival() float64 {
	if s.SurvivalTimeSeconds == nil {
		return math.NaN()
	}
	return *s.SurvivalTimeSeconds
}

// ScoreEntry is an accepted submission. Entries are immutable once stored and
// only ever removed by retention.
type ScoreEntry struct {
	ID                  string    `json:"id"`
	PlayerInitials      string    `json:"playerInitials"`
	SurvivalTimeSeconds float64   `json:"survivalTimeSeconds"`
	CalculatedScore     int64     `json:"calculatedScore"`
	SubmittedAt         time.Time `json:"submittedAt"`
	ClientClaimedAt     time.Time `json:"clientClaimedAt"`
}

// Outranks reports whether e sorts strictly ahead of other on the leaderboard:
// higher score first, then earlier submission, then lower ID.
func (e *ScoreEntry) Outranks(other *ScoreEntry) bool {
	if e.CalculatedScore != other.CalculatedScore {
		return e.CalculatedScore > other.CalculatedScore
	}
	if !e.SubmittedAt.Equal(other.SubmittedAt) {
		return e.SubmittedAt.Before(other.SubmittedAt)
	}
	return e.ID < other.ID
}

// LeaderboardEntry is a ranked view of a ScoreEntry. Never persisted.
type LeaderboardEntry struct {
	Rank                int       `json:"rank"`
	ID                  string    `json:"id"`
	PlayerInitials      string    `json:"playerInitials"`
	CalculatedScore     int64     `json:"calculatedScore"`
	SurvivalTimeSeconds float64   `json:"survivalTimeSeconds"`
	AchievedAt          time.Time `json:"achievedAt"`
}

// NewLeaderboardEntry ranks e.
func NewLeaderboardEntry(rank int, e *ScoreEntry) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:                rank,
		ID:                  e.ID,
		PlayerInitials:      e.PlayerInitials,
		CalculatedScore:     e.CalculatedScore,
		SurvivalTimeSeconds: e.SurvivalTimeSeconds,
		AchievedAt:          e.SubmittedAt,
	}
}

// Snapshot is a materialized top-N leaderboard.
//
// FreshnessToken changes exactly when the ordered (rank, initials, score)
// tuples change. Stale is set when the snapshot is served after a failed
// refresh.
type Snapshot struct {
	Entries        []LeaderboardEntry `json:"entries"`
	GeneratedAt    time.Time          `json:"generatedAt"`
	FreshnessToken string             `json:"freshnessToken"`
	TTL            time.Duration      `json:"-"`
	Stale          bool               `json:"stale"`

	generation uint64
}

// Generation is the cache generation the snapshot was built under.
func (s *Snapshot) Generation() uint64 { return s.generation }

// WithGeneration returns a copy of s tagged with gen.
func (s *Snapshot) WithGeneration(gen uint64) *Snapshot {
	cp := *s
	cp.generation = gen
	return &cp
}

// ExpiresAt is when the snapshot stops being fresh.
func (s *Snapshot) ExpiresAt() time.Time {
	return s.GeneratedAt.Add(s.TTL)
}

// Top returns at most n entries, or all of them when n <= 0.
func (s *Snapshot) Top(n int) []LeaderboardEntry {
	if n <= 0 || n >= len(s.Entries) {
		return s.Entries
	}
	return s.Entries[:n]
}

// RateLimitWindow tracks one player's submissions inside the current window.
// In-memory only.
type RateLimitWindow struct {
	PlayerInitials string
	WindowStart    time.Time
	Count          int
}

// Expired reports whether the window has elapsed at now.
func (w RateLimitWindow) Expired(now time.Time, length time.Duration) bool {
	return now.Sub(w.WindowStart) > length
}

// Standing is a player's best entry together with its exact rank.
type Standing struct {
	Best LeaderboardEntry `json:"best"`
	// Entries is how many scores the player has on record.
	Entries int `json:"entries"`
}
