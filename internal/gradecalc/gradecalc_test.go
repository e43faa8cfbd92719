package gradecalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveGradeBoundaries(t *testing.T) {
	cases := []struct {
		total  float64
		letter string
		point  float64
	}{
		{0, "F", 0},
		{49.99, "F", 0},
		{50, "D", 1.0},
		{54.99, "D", 1.0},
		{55, "D+", 1.5},
		{59.99, "D+", 1.5},
		{60, "C", 2.0},
		{64.99, "C", 2.0},
		{65, "C+", 2.5},
		{69.99, "C+", 2.5},
		{70, "B", 3.0},
		{74.99, "B", 3.0},
		{75, "B+", 3.5},
		{79.99, "B+", 3.5},
		{80, "A", 4.0},
		{100, "A", 4.0},
	}
	for _, tc := range cases {
		got := ResolveGrade(tc.total)
		assert.Equal(t, tc.letter, got.Letter, "total %.2f", tc.total)
		assert.Equal(t, tc.point, got.Point, "total %.2f", tc.total)
	}
}

func TestResolveGradeIsTotal(t *testing.T) {
	assert.Equal(t, "F", ResolveGrade(-15).Letter)
	assert.Equal(t, "A", ResolveGrade(140).Letter)
}

func TestRegularCap(t *testing.T) {
	budget := CourseBudget{AssignmentTotalScore: 50}
	assignments := []AssignmentInfo{
		{ID: "a1", Type: AssignmentRegular},
		{ID: "a2", Type: AssignmentRegular},
		{ID: "s1", Type: AssignmentSpecial, MaxScore: 10},
	}

	cap := RegularCap(budget, assignments)
	assert.InDelta(t, 20.0, cap, 1e-9)

	// Idempotent for a fixed assignment set.
	assert.Equal(t, cap, RegularCap(budget, assignments))

	// Adding a special assignment shrinks the regular cap.
	withExtra := append([]AssignmentInfo{}, assignments...)
	withExtra = append(withExtra, AssignmentInfo{ID: "s2", Type: AssignmentSpecial, MaxScore: 6})
	assert.Less(t, RegularCap(budget, withExtra), cap)

	// A zero-score special holds the cap equal.
	withZero := append([]AssignmentInfo{}, assignments...)
	withZero = append(withZero, AssignmentInfo{ID: "s3", Type: AssignmentSpecial, MaxScore: 0})
	assert.Equal(t, cap, RegularCap(budget, withZero))
}

func TestRegularCapNoAssignments(t *testing.T) {
	cap := RegularCap(CourseBudget{AssignmentTotalScore: 50}, nil)
	assert.Equal(t, 0.0, cap)

	// Specials alone still yield no regular cap.
	cap = RegularCap(CourseBudget{AssignmentTotalScore: 50}, []AssignmentInfo{{ID: "s1", Type: AssignmentSpecial, MaxScore: 10}})
	assert.Equal(t, 0.0, cap)
}

func TestScoreForStatus(t *testing.T) {
	const cap = 12.5
	assert.Equal(t, cap, ScoreForStatus(cap, StatusSubmitted))
	assert.InDelta(t, 10.0, ScoreForStatus(cap, StatusLate), 1e-9)
	assert.Equal(t, 0.0, ScoreForStatus(cap, StatusMissing))
	assert.Equal(t, 0.0, ScoreForStatus(cap, SubmissionStatus("unknown")))

	roster := []SubmissionStatus{StatusSubmitted, StatusLate, StatusMissing, StatusSubmitted}
	total := 0.0
	for _, status := range roster {
		total += ScoreForStatus(10, status)
	}
	assert.InDelta(t, 28.0, total, 1e-9)
}

func TestStatusCycle(t *testing.T) {
	assert.Equal(t, StatusSubmitted, NextStatus(StatusMissing))
	assert.Equal(t, StatusLate, NextStatus(StatusSubmitted))
	assert.Equal(t, StatusMissing, NextStatus(StatusLate))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusSubmitted, NormalizeStatus(" Submitted "))
	assert.Equal(t, StatusLate, NormalizeStatus("LATE"))
	assert.Equal(t, StatusMissing, NormalizeStatus(""))
	assert.Equal(t, StatusMissing, NormalizeStatus("whatever"))
}

func TestRecomputeRegularScoresOnAdd(t *testing.T) {
	budget := CourseBudget{AssignmentTotalScore: 40}
	two := []AssignmentInfo{
		{ID: "a1", Type: AssignmentRegular},
		{ID: "a2", Type: AssignmentRegular},
	}
	cap := RegularCap(budget, two)
	require.InDelta(t, 20.0, cap, 1e-9)

	subs := RecomputeRegularScores(cap, []SubmissionScore{
		{AssignmentID: "a1", StudentID: "stu", Status: StatusSubmitted},
		{AssignmentID: "a2", StudentID: "stu", Status: StatusLate},
	})
	assert.Equal(t, 20.0, subs[0].Score)
	assert.Equal(t, 16.0, subs[1].Score)

	three := append(two, AssignmentInfo{ID: "a3", Type: AssignmentRegular})
	newCap := RegularCap(budget, three)
	require.InDelta(t, 40.0/3.0, newCap, 1e-9)

	subs = RecomputeRegularScores(newCap, []SubmissionScore{
		{AssignmentID: "a1", StudentID: "stu", Status: StatusSubmitted},
		{AssignmentID: "a2", StudentID: "stu", Status: StatusLate},
		{AssignmentID: "a3", StudentID: "stu", Status: StatusMissing},
	})
	assert.Equal(t, 13.33, subs[0].Score)
	assert.Equal(t, 10.67, subs[1].Score)
	assert.Equal(t, 0.0, subs[2].Score)
}

func TestSpecialTotal(t *testing.T) {
	specials := []AssignmentInfo{
		{ID: "s1", Type: AssignmentSpecial, MaxScore: 10},
		{ID: "s2", Type: AssignmentSpecial, MaxScore: 5},
	}
	total := SpecialTotal(specials, map[string]float64{"s1": 5, "s2": 3.5})
	assert.Equal(t, 8.5, total)

	// A missing raw score counts as 0, never double-counted.
	total = SpecialTotal(specials, map[string]float64{"s1": 5})
	assert.Equal(t, 5.0, total)

	// Scores for assignments outside the list are ignored.
	total = SpecialTotal(specials, map[string]float64{"s1": 5, "ghost": 99})
	assert.Equal(t, 5.0, total)
}

func TestExamTotal(t *testing.T) {
	assert.Equal(t, 42.75, ExamTotal([]float64{20.25, 22.5}))
	assert.Equal(t, 0.0, ExamTotal(nil))
}

func TestRemainingBudgets(t *testing.T) {
	budget := CourseBudget{AssignmentTotalScore: 60, ExamTotalScore: 40}
	assignments := []AssignmentInfo{
		{ID: "s1", Type: AssignmentSpecial, MaxScore: 10},
		{ID: "a1", Type: AssignmentRegular},
	}
	remaining := RemainingRegularBudget(budget, assignments)
	assert.Equal(t, 50.0, remaining)

	// 55 over the remaining 50 must be rejected, with the remaining amount visible.
	err := ValidateAllocation(55, remaining)
	require.Error(t, err)
	var violation *BudgetViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, 50.0, violation.Remaining)
	assert.Contains(t, err.Error(), "50.00")

	// Exactly the remaining budget is allowed.
	assert.NoError(t, ValidateAllocation(50, remaining))

	// Non-positive requests are rejected.
	assert.Error(t, ValidateAllocation(0, remaining))
	assert.Error(t, ValidateAllocation(-3, remaining))

	assert.Equal(t, 15.0, RemainingExamBudget(budget, []float64{20, 5}))
}

func TestBuildExportScoresCeilingPolicy(t *testing.T) {
	scores, err := BuildExportScores(40, 50, 20, 27.3, 33.6)
	require.NoError(t, err)
	assert.Equal(t, 16.0, scores.BeforeMidterm)
	assert.Equal(t, 28.0, scores.MidtermExam)
	assert.Equal(t, 24.0, scores.AfterMidterm)
	assert.Equal(t, 34.0, scores.FinalExam)
	assert.Equal(t, 102.0, scores.Total)
}

func TestBuildExportScoresEdges(t *testing.T) {
	// Zero everywhere stays zero; ceil(0) is 0.
	scores, err := BuildExportScores(0, 50, 20, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores.Total)

	// Bonus points push the ratio above 1 without breaking the residual.
	scores, err = BuildExportScores(55, 50, 20, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 22.0, scores.BeforeMidterm)
	assert.Equal(t, 33.0, scores.AfterMidterm)

	// A zero assignment budget is a surfaced error, not NaN.
	_, err = BuildExportScores(40, 0, 20, 27.3, 33.6)
	assert.ErrorIs(t, err, ErrZeroAssignmentMax)
}

func TestCheckExportWeights(t *testing.T) {
	budget := CourseBudget{AssignmentTotalScore: 50}

	warning, ok := CheckExportWeights(budget, 20, 30)
	assert.True(t, ok)
	assert.Empty(t, warning)

	// Float drift within epsilon still passes.
	_, ok = CheckExportWeights(budget, 20.004, 29.999)
	assert.True(t, ok)

	warning, ok = CheckExportWeights(budget, 20, 25)
	assert.False(t, ok)
	assert.Contains(t, warning, "45.00")
}

func TestCheckExamBudgetConsumed(t *testing.T) {
	budget := CourseBudget{ExamTotalScore: 50}

	_, ok := CheckExamBudgetConsumed(budget, []float64{20, 30})
	assert.True(t, ok)

	warning, ok := CheckExamBudgetConsumed(budget, []float64{20, 25})
	assert.False(t, ok)
	assert.Contains(t, warning, "5.00")
}

func TestParseScore(t *testing.T) {
	assert.Equal(t, 12.5, ParseScore("12.5"))
	assert.Equal(t, 0.0, ParseScore(""))
	assert.Equal(t, 0.0, ParseScore("abc"))
	assert.Equal(t, 0.0, ParseScore("NaN"))
	assert.Equal(t, -2.0, ParseScore(" -2 "))
}
