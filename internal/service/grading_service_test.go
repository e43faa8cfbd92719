package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
)

type mockGradingSubmissions struct {
	submissions map[string]models.Submission
}

func (m *mockGradingSubmissions) ListByCourse(ctx context.Context, courseID string) ([]models.Submission, error) {
	var result []models.Submission
	for _, sub := range m.submissions {
		result = append(result, sub)
	}
	return result, nil
}

func (m *mockGradingSubmissions) Find(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	sub, ok := m.submissions[subKey(assignmentID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (m *mockGradingSubmissions) Upsert(ctx context.Context, submission *models.Submission) error {
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	m.submissions[subKey(submission.AssignmentID, submission.StudentID)] = *submission
	return nil
}

func (m *mockGradingSubmissions) BulkUpsert(ctx context.Context, submissions []models.Submission) error {
	for i := range submissions {
		_ = m.Upsert(ctx, &submissions[i])
	}
	return nil
}

type mockGradingExamScores struct {
	scores map[string]models.ExamScore
}

func (m *mockGradingExamScores) ListByCourse(ctx context.Context, courseID string) ([]models.ExamScore, error) {
	var result []models.ExamScore
	for _, score := range m.scores {
		result = append(result, score)
	}
	return result, nil
}

func (m *mockGradingExamScores) Upsert(ctx context.Context, score *models.ExamScore) error {
	if m.scores == nil {
		m.scores = make(map[string]models.ExamScore)
	}
	m.scores[subKey(score.ExamID, score.StudentID)] = *score
	return nil
}

type mockAssignmentLister struct {
	assignments []models.Assignment
}

func (m *mockAssignmentLister) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	return m.assignments, nil
}

type mockExamLister struct {
	exams []models.Exam
}

func (m *mockExamLister) ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	return m.exams, nil
}

func newGradingFixture() (*GradingService, *mockGradingSubmissions, *mockGradingExamScores) {
	courses := &mockCourseReader{
		course: models.Course{ID: "course-1", Code: "MATH101", AssignmentTotalScore: 40, ExamTotalScore: 60},
		students: []models.Student{
			{ID: "stu-1", StudentCode: "10001", FirstName: "Somchai", LastName: "J"},
			{ID: "stu-2", StudentCode: "10002", FirstName: "Suda", LastName: "K"},
		},
	}
	assignments := &mockAssignmentLister{assignments: []models.Assignment{
		{ID: "asg-1", CourseID: "course-1", Title: "HW1", Type: models.AssignmentRegular},
		{ID: "asg-2", CourseID: "course-1", Title: "HW2", Type: models.AssignmentRegular},
		{ID: "asg-sp", CourseID: "course-1", Title: "Project", Type: models.AssignmentSpecial, MaxScore: ptrFloat(10)},
	}}
	exams := &mockExamLister{exams: []models.Exam{
		{ID: "exam-1", CourseID: "course-1", Title: "Midterm", MaxScore: 30},
		{ID: "exam-2", CourseID: "course-1", Title: "Final", MaxScore: 30},
	}}
	subs := &mockGradingSubmissions{submissions: map[string]models.Submission{
		subKey("asg-1", "stu-1"):  {AssignmentID: "asg-1", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 15},
		subKey("asg-2", "stu-1"):  {AssignmentID: "asg-2", StudentID: "stu-1", Status: gradecalc.StatusLate, Score: 12},
		subKey("asg-sp", "stu-1"): {AssignmentID: "asg-sp", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 8.5},
		subKey("asg-1", "stu-2"):  {AssignmentID: "asg-1", StudentID: "stu-2", Status: gradecalc.StatusMissing, Score: 0},
	}}
	examScores := &mockGradingExamScores{scores: map[string]models.ExamScore{
		subKey("exam-1", "stu-1"): {ExamID: "exam-1", StudentID: "stu-1", Score: 27.3},
		subKey("exam-2", "stu-1"): {ExamID: "exam-2", StudentID: "stu-1", Score: 28},
	}}

	svc := NewGradingService(subs, examScores, courses, assignments, exams, nil, 0, nil, nil, nil)
	return svc, subs, examScores
}

func TestGradebookAggregates(t *testing.T) {
	svc, _, _ := newGradingFixture()

	view, err := svc.Gradebook(context.Background(), "course-1")
	require.NoError(t, err)

	// (40 - 10) / 2 regulars.
	assert.Equal(t, 15.0, view.RegularCap)
	assert.Equal(t, 30.0, view.RemainingBudget)
	assert.Equal(t, 0.0, view.RemainingExam)
	require.Len(t, view.Rows, 2)

	first := view.Rows[0]
	assert.Equal(t, "stu-1", first.Student.ID)
	assert.Equal(t, 27.0, first.RegularTotal)
	assert.Equal(t, 8.5, first.SpecialTotal)
	assert.Equal(t, 55.3, first.ExamTotal)
	assert.Equal(t, 90.8, first.Total)
	assert.Equal(t, "A", first.Letter)
	assert.Equal(t, 4.0, first.GradePoint)

	second := view.Rows[1]
	assert.Equal(t, 0.0, second.Total)
	assert.Equal(t, "F", second.Letter)
}

func TestToggleStatusCycle(t *testing.T) {
	svc, subs, _ := newGradingFixture()
	ctx := context.Background()

	// missing -> submitted at the full cap.
	sub, err := svc.ToggleStatus(ctx, "course-1", "asg-1", "stu-2")
	require.NoError(t, err)
	assert.Equal(t, gradecalc.StatusSubmitted, sub.Status)
	assert.Equal(t, 15.0, sub.Score)

	// submitted -> late at 80%.
	sub, err = svc.ToggleStatus(ctx, "course-1", "asg-1", "stu-2")
	require.NoError(t, err)
	assert.Equal(t, gradecalc.StatusLate, sub.Status)
	assert.Equal(t, 12.0, sub.Score)

	// late -> missing back to zero.
	sub, err = svc.ToggleStatus(ctx, "course-1", "asg-1", "stu-2")
	require.NoError(t, err)
	assert.Equal(t, gradecalc.StatusMissing, sub.Status)
	assert.Equal(t, 0.0, sub.Score)

	stored := subs.submissions[subKey("asg-1", "stu-2")]
	assert.Equal(t, gradecalc.StatusMissing, stored.Status)
}

func TestToggleStatusRejectsSpecial(t *testing.T) {
	svc, _, _ := newGradingFixture()

	_, err := svc.ToggleStatus(context.Background(), "course-1", "asg-sp", "stu-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBulkSaveBoundsSpecialAndExamScores(t *testing.T) {
	svc, subs, examScores := newGradingFixture()
	ctx := context.Background()

	err := svc.BulkSave(ctx, "course-1", BulkGradeRequest{
		Entries: []GradeEntry{
			{AssignmentID: "asg-sp", StudentID: "stu-2", Score: "11"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	err = svc.BulkSave(ctx, "course-1", BulkGradeRequest{
		Entries: []GradeEntry{
			{AssignmentID: "asg-sp", StudentID: "stu-2", Score: "7.5"},
			{AssignmentID: "asg-1", StudentID: "stu-2", Status: "late"},
		},
		ExamScores: []ExamScoreEntry{
			{ExamID: "exam-1", StudentID: "stu-2", Score: "21.25"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 7.5, subs.submissions[subKey("asg-sp", "stu-2")].Score)
	assert.Equal(t, 12.0, subs.submissions[subKey("asg-1", "stu-2")].Score)
	assert.Equal(t, 21.25, examScores.scores[subKey("exam-1", "stu-2")].Score)

	err = svc.BulkSave(ctx, "course-1", BulkGradeRequest{
		ExamScores: []ExamScoreEntry{{ExamID: "exam-1", StudentID: "stu-2", Score: "31"}},
	})
	require.Error(t, err)
}

func TestBulkSaveCoercesMalformedScores(t *testing.T) {
	svc, subs, _ := newGradingFixture()

	err := svc.BulkSave(context.Background(), "course-1", BulkGradeRequest{
		Entries: []GradeEntry{
			{AssignmentID: "asg-sp", StudentID: "stu-2", Score: "not-a-number"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, subs.submissions[subKey("asg-sp", "stu-2")].Score)
}

func TestSummaryResolvesGrade(t *testing.T) {
	svc, _, _ := newGradingFixture()

	summary, err := svc.Summary(context.Background(), "course-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 90.8, summary.Total)
	assert.Equal(t, "A", summary.Letter)
	assert.Equal(t, 4.0, summary.GradePoint)

	_, err = svc.Summary(context.Background(), "course-1", "stu-unknown")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
