// Package gradecalc implements the scoring engine for the gradebook: the
// dynamic regular-assignment cap, status-based scoring, special assignment
// and exam aggregation, point-budget validation and the weighted SGS export
// recombination. Every function is pure; callers fetch the inputs, the
// engine computes, callers persist.
package gradecalc

import (
	"math"
	"strconv"
	"strings"
)

// CourseBudget carries the declared point budgets of a course.
type CourseBudget struct {
	AssignmentTotalScore float64
	ExamTotalScore       float64
}

// AssignmentInfo is the projection of an assignment the engine needs.
type AssignmentInfo struct {
	ID       string
	Type     string // "regular" | "special"
	MaxScore float64
}

const (
	// AssignmentRegular is scored by submission status against the shared cap.
	AssignmentRegular = "regular"
	// AssignmentSpecial carries its own fixed max score.
	AssignmentSpecial = "special"

	lateFactor = 0.8
)

// Round2 rounds to 2 decimal places, half away from zero. Stored submission
// scores and aggregate totals use this; the regular cap itself stays exact.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RegularCap returns the per-item maximum for regular assignments: the
// assignment budget minus all special allocations, split evenly across the
// regular assignments. A course with zero regular assignments has no cap,
// so the result is 0 rather than a division error.
func RegularCap(budget CourseBudget, assignments []AssignmentInfo) float64 {
	special := 0.0
	regularCount := 0
	for _, a := range assignments {
		switch a.Type {
		case AssignmentSpecial:
			special += a.MaxScore
		case AssignmentRegular:
			regularCount++
		}
	}
	if regularCount == 0 {
		return 0
	}
	return (budget.AssignmentTotalScore - special) / float64(regularCount)
}

// ScoreForStatus converts a submission status into a score against the cap:
// submitted earns the full cap, late earns 80%, missing earns nothing.
func ScoreForStatus(cap float64, status SubmissionStatus) float64 {
	switch status {
	case StatusSubmitted:
		return cap
	case StatusLate:
		return cap * lateFactor
	default:
		return 0
	}
}

// SpecialTotal sums the raw scores a student entered for special
// assignments. Assignments without a recorded score contribute 0, and an
// assignment is never counted twice.
func SpecialTotal(specials []AssignmentInfo, rawScores map[string]float64) float64 {
	total := 0.0
	for _, a := range specials {
		if a.Type != AssignmentSpecial {
			continue
		}
		total += rawScores[a.ID]
	}
	return Round2(total)
}

// ExamTotal sums a student's exam scores, treating absent entries as 0.
// Capping against each exam's max score is a data-entry concern, not ours.
func ExamTotal(scores []float64) float64 {
	total := 0.0
	for _, s := range scores {
		total += s
	}
	return Round2(total)
}

// SubmissionScore is a regular submission with its derived score.
type SubmissionScore struct {
	AssignmentID string
	StudentID    string
	Status       SubmissionStatus
	Score        float64
}

// RecomputeRegularScores rewrites every regular submission's score from its
// status against the given cap. This must run after every assignment create
// or delete, because both the pool and the denominator of the cap change.
// The returned rows are the full set the caller persists; submissions are
// never left stale.
func RecomputeRegularScores(cap float64, submissions []SubmissionScore) []SubmissionScore {
	updated := make([]SubmissionScore, len(submissions))
	for i, sub := range submissions {
		sub.Score = Round2(ScoreForStatus(cap, sub.Status))
		updated[i] = sub
	}
	return updated
}

// ParseScore coerces a form-field value to a number. Empty or non-numeric
// input becomes 0 so NaN never enters a sum.
func ParseScore(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
