package gradecalc

import (
	"errors"
	"fmt"
	"math"
)

// ErrZeroAssignmentMax signals that the course's assignment budget is zero
// while building an export row. The export path must surface this instead of
// emitting NaN into an academic record.
var ErrZeroAssignmentMax = errors.New("assignment total score is zero, cannot derive export ratio")

// ExportScores holds the four recombined buckets of an SGS export row plus
// their sum.
type ExportScores struct {
	BeforeMidterm float64 `json:"before_midterm"`
	MidtermExam   float64 `json:"midterm_exam"`
	AfterMidterm  float64 `json:"after_midterm"`
	FinalExam     float64 `json:"final_exam"`
	Total         float64 `json:"total_score"`
}

// BuildExportScores redistributes a student's aggregate assignment score
// into the before/after-midterm buckets and combines them with the two
// selected exam scores. All four buckets round with ceil, in the student's
// favour. The after bucket is the residual of the raw assignment
// contribution minus the rounded before share, so before+after tracks the
// true contribution despite the rounding:
//
//	ratio  = totalAssignment / assignmentMax
//	before = ceil(ratio * beforeWeight)
//	after  = ceil(totalAssignment - ratio*beforeWeight)
func BuildExportScores(totalAssignment, assignmentMax, beforeWeight, midtermRaw, finalRaw float64) (ExportScores, error) {
	if assignmentMax == 0 {
		return ExportScores{}, ErrZeroAssignmentMax
	}
	ratio := totalAssignment / assignmentMax
	before := math.Ceil(ratio * beforeWeight)
	after := math.Ceil(totalAssignment - ratio*beforeWeight)
	midterm := math.Ceil(midtermRaw)
	final := math.Ceil(finalRaw)
	return ExportScores{
		BeforeMidterm: before,
		MidtermExam:   midterm,
		AfterMidterm:  after,
		FinalExam:     final,
		Total:         before + midterm + after + final,
	}, nil
}

// CheckExportWeights verifies that the before/after weights sum to the
// course's assignment budget. A mismatch is a warning the caller must show
// before exporting, never a silent block.
func CheckExportWeights(budget CourseBudget, beforeWeight, afterWeight float64) (string, bool) {
	sum := beforeWeight + afterWeight
	if math.Abs(sum-budget.AssignmentTotalScore) < BudgetEpsilon {
		return "", true
	}
	return fmt.Sprintf("export weights sum to %.2f but the assignment budget is %.2f", sum, budget.AssignmentTotalScore), false
}

// CheckExamBudgetConsumed verifies the exams together claim the whole exam
// budget. The remainder is reported so the teacher can confirm or fix.
func CheckExamBudgetConsumed(budget CourseBudget, examMaxScores []float64) (string, bool) {
	remaining := RemainingExamBudget(budget, examMaxScores)
	if math.Abs(remaining) < BudgetEpsilon {
		return "", true
	}
	return fmt.Sprintf("exam max scores leave %.2f of the exam budget unused", remaining), false
}
