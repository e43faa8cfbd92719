package gradecalc

import "fmt"

// BudgetEpsilon absorbs float drift from repeated weight entry when checking
// whether a budget is fully consumed. Exact equality on summed floats is too
// brittle for 0.01-granularity scores.
const BudgetEpsilon = 0.01

// RemainingRegularBudget is the assignment budget left for the regular pool
// after every special assignment's fixed allocation is carved out. Special
// assignments reduce the regular share; they are never additive on top of
// the assignment total.
func RemainingRegularBudget(budget CourseBudget, assignments []AssignmentInfo) float64 {
	special := 0.0
	for _, a := range assignments {
		if a.Type == AssignmentSpecial {
			special += a.MaxScore
		}
	}
	return budget.AssignmentTotalScore - special
}

// RemainingExamBudget is the exam budget not yet claimed by existing exams.
func RemainingExamBudget(budget CourseBudget, examMaxScores []float64) float64 {
	used := 0.0
	for _, m := range examMaxScores {
		used += m
	}
	return budget.ExamTotalScore - used
}

// BudgetViolation reports a requested allocation that does not fit the
// remaining budget. The message always states the exact remaining amount so
// the teacher can correct the input.
type BudgetViolation struct {
	Requested float64
	Remaining float64
}

func (v *BudgetViolation) Error() string {
	return fmt.Sprintf("requested %.2f points exceeds remaining budget of %.2f", v.Requested, v.Remaining)
}

// ValidateAllocation gates new special assignments and exams: the requested
// max score must be positive and fit the remaining budget computed before
// the new item is added.
func ValidateAllocation(requested, remaining float64) error {
	if requested <= 0 {
		return &BudgetViolation{Requested: requested, Remaining: remaining}
	}
	if requested > remaining {
		return &BudgetViolation{Requested: requested, Remaining: remaining}
	}
	return nil
}
