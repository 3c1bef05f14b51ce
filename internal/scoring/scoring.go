// Package scoring turns a survival time into leaderboard points.
package scoring

import "math"

// Scorer maps a validated survival time in seconds to points.
// Implementations must be deterministic and monotonically non-decreasing.
type Scorer interface {
	Score(survivalSeconds float64) int64
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(survivalSeconds float64) int64

// Score calls f.
func (f ScorerFunc) Score(survivalSeconds float64) int64 { return f(survivalSeconds) }

// Milestone awards PointsPerSecond for every second survived (to the
// hundredth) plus a flat Bonus for each completed Interval.
type Milestone struct {
	PointsPerSecond float64
	Interval        float64
	Bonus           int64
}

// Default is the scorer used by the server: 100 points per second and a 250
// point bonus every 5 seconds. 15.75s scores 1575 + 3*250 = 2325.
var Default Scorer = Milestone{PointsPerSecond: 100, Interval: 5, Bonus: 250}

// Score implements Scorer.
func (m Milestone) Score(survivalSeconds float64) int64 {
	if survivalSeconds <= 0 || math.IsNaN(survivalSeconds) {
		return 0
	}
	points := int64(math.Round(survivalSeconds * m.PointsPerSecond))
	if m.Interval > 0 {
		// Round before flooring so 9.999999 stored as 10.00 still earns its bonus.
		milestones := math.Floor(math.Round(survivalSeconds*100)/100/m.Interval + 1e-9)
		points += int64(milestones) * m.Bonus
	}
	return points
}

// RoundSurvival rounds seconds to two decimals, the precision scores are
// stored at.
func RoundSurvival(seconds float64) float64 {
	return math.Round(seconds*100) / 100
}
