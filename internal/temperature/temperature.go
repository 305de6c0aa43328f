// Package temperature scores how worth keeping a record is.
//
// A record's temperature blends three components:
//   - age: exp(-0.03 * days since creation), half-life of roughly 23 days
//   - references: recent (7-day) reference count / 3, capped at 1
//   - priority: high 1.0, medium 0.5, low 0.0
//
// weighted 0.5 / 0.3 / 0.2. Scores above 0.7 are hot, above 0.3 warm,
// everything else cold.
package temperature

import (
	"math"
	"strings"
	"time"
)

// DecayPerDay is the exponential decay constant of the age component.
const DecayPerDay = 0.03

// RecentWindow is how far back a reference still counts as recent.
const RecentWindow = 7 * 24 * time.Hour

// Weights of the three components. They sum to 1.
var Weights = struct {
	Age, Ref, Priority float64
}{0.5, 0.3, 0.2}

// Priority is the three-level record priority.
type Priority int

const (
	Low Priority = iota
	Medium
	High
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

func (p Priority) score() float64 {
	switch p {
	case High:
		return 1.0
	case Medium:
		return 0.5
	default:
		return 0.0
	}
}

// ParsePriority accepts the word or the legacy marker forms. Anything
// unrecognized is Low.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "🔴":
		return High
	case "medium", "🟡":
		return Medium
	default:
		return Low
	}
}

// Band is a coarse classification of a score.
type Band string

const (
	Hot  Band = "hot"
	Warm Band = "warm"
	Cold Band = "cold"
)

// Input describes a record for scoring.
type Input struct {
	Created    time.Time
	RecentRefs int
	Priority   Priority
}

// Score returns the record's temperature in [0,1] as of now.
func Score(in Input, now time.Time) float64 {
	days := now.Sub(in.Created).Hours() / 24
	if days < 0 {
		days = 0
	}
	ageScore := math.Exp(-DecayPerDay * days)

	refs := in.RecentRefs
	if refs < 0 {
		refs = 0
	}
	refScore := math.Min(float64(refs)/3, 1.0)

	s := Weights.Age*ageScore + Weights.Ref*refScore + Weights.Priority*in.Priority.score()
	return math.Max(0, math.Min(1, s))
}

// Classify maps a score to its band.
func Classify(score float64) Band {
	switch {
	case score > 0.7:
		return Hot
	case score > 0.3:
		return Warm
	default:
		return Cold
	}
}
