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

type mockAssignmentRepo struct {
	assignments map[string]models.Assignment
}

func (m *mockAssignmentRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	var result []models.Assignment
	for _, a := range m.assignments {
		if a.CourseID == courseID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if m.assignments == nil {
		m.assignments = make(map[string]models.Assignment)
	}
	if assignment.ID == "" {
		assignment.ID = "asg-" + assignment.Title
	}
	m.assignments[assignment.ID] = *assignment
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.assignments, id)
	return nil
}

type mockSubmissionStore struct {
	submissions map[string]models.Submission
	backfilled  map[string][]string
}

func subKey(assignmentID, studentID string) string {
	return assignmentID + "/" + studentID
}

func (m *mockSubmissionStore) ListByCourse(ctx context.Context, courseID string) ([]models.Submission, error) {
	var result []models.Submission
	for _, sub := range m.submissions {
		result = append(result, sub)
	}
	return result, nil
}

func (m *mockSubmissionStore) BulkUpsert(ctx context.Context, submissions []models.Submission) error {
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	for _, sub := range submissions {
		m.submissions[subKey(sub.AssignmentID, sub.StudentID)] = sub
	}
	return nil
}

func (m *mockSubmissionStore) BackfillForAssignment(ctx context.Context, assignmentID string, studentIDs []string) error {
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	if m.backfilled == nil {
		m.backfilled = make(map[string][]string)
	}
	m.backfilled[assignmentID] = studentIDs
	for _, studentID := range studentIDs {
		key := subKey(assignmentID, studentID)
		if _, ok := m.submissions[key]; !ok {
			m.submissions[key] = models.Submission{
				AssignmentID: assignmentID,
				StudentID:    studentID,
				Status:       gradecalc.StatusMissing,
			}
		}
	}
	return nil
}

type mockCourseReader struct {
	course   models.Course
	students []models.Student
}

func (m *mockCourseReader) GetOpen(ctx context.Context, id string) (*models.Course, error) {
	if m.course.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrCourseClosed, "")
	}
	course := m.course
	return &course, nil
}

func (m *mockCourseReader) Get(ctx context.Context, id string) (*models.Course, error) {
	course := m.course
	return &course, nil
}

func (m *mockCourseReader) Students(ctx context.Context, id string) ([]models.Student, error) {
	return m.students, nil
}

func ptrFloat(v float64) *float64 { return &v }

func TestAssignmentCreateRejectsBudgetViolation(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"asg-existing": {ID: "asg-existing", CourseID: "course-1", Type: models.AssignmentSpecial, MaxScore: ptrFloat(10)},
	}}
	subs := &mockSubmissionStore{}
	courses := &mockCourseReader{course: models.Course{ID: "course-1", AssignmentTotalScore: 60, ExamTotalScore: 40}}
	svc := NewAssignmentService(repo, subs, courses, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), "course-1", CreateAssignmentRequest{
		Title:    "Project",
		Type:     "special",
		MaxScore: ptrFloat(55),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBudgetExceeded.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "50.00")
	assert.Len(t, repo.assignments, 1)

	// Exactly the remaining budget is accepted.
	created, err := svc.Create(context.Background(), "course-1", CreateAssignmentRequest{
		Title:    "Project",
		Type:     "special",
		MaxScore: ptrFloat(50),
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, *created.MaxScore)
}

func TestAssignmentCreateRecomputesRegularScores(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"asg-1": {ID: "asg-1", CourseID: "course-1", Type: models.AssignmentRegular},
		"asg-2": {ID: "asg-2", CourseID: "course-1", Type: models.AssignmentRegular},
	}}
	subs := &mockSubmissionStore{submissions: map[string]models.Submission{
		subKey("asg-1", "stu-1"): {AssignmentID: "asg-1", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 20},
		subKey("asg-2", "stu-1"): {AssignmentID: "asg-2", StudentID: "stu-1", Status: gradecalc.StatusLate, Score: 16},
	}}
	courses := &mockCourseReader{
		course:   models.Course{ID: "course-1", AssignmentTotalScore: 40, ExamTotalScore: 60},
		students: []models.Student{{ID: "stu-1"}},
	}
	svc := NewAssignmentService(repo, subs, courses, nil, nil, nil, nil)

	created, err := svc.Create(context.Background(), "course-1", CreateAssignmentRequest{
		Title: "Homework 3",
		Type:  "regular",
	})
	require.NoError(t, err)

	// Cap drops from 20 to 13.33; every stored regular score is rewritten.
	assert.Equal(t, 13.33, subs.submissions[subKey("asg-1", "stu-1")].Score)
	assert.Equal(t, 10.67, subs.submissions[subKey("asg-2", "stu-1")].Score)
	assert.Equal(t, 0.0, subs.submissions[subKey(created.ID, "stu-1")].Score)
	assert.Equal(t, gradecalc.StatusMissing, subs.submissions[subKey(created.ID, "stu-1")].Status)
	assert.Equal(t, []string{"stu-1"}, subs.backfilled[created.ID])
}

func TestAssignmentDeleteRecomputes(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"asg-1": {ID: "asg-1", CourseID: "course-1", Type: models.AssignmentRegular},
		"asg-2": {ID: "asg-2", CourseID: "course-1", Type: models.AssignmentRegular},
	}}
	subs := &mockSubmissionStore{submissions: map[string]models.Submission{
		subKey("asg-1", "stu-1"): {AssignmentID: "asg-1", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 20},
		subKey("asg-2", "stu-1"): {AssignmentID: "asg-2", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 20},
	}}
	courses := &mockCourseReader{course: models.Course{ID: "course-1", AssignmentTotalScore: 40}}
	svc := NewAssignmentService(repo, subs, courses, nil, nil, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "course-1", "asg-2"))

	// The survivor now owns the whole budget.
	assert.Equal(t, 40.0, subs.submissions[subKey("asg-1", "stu-1")].Score)
}

func TestAssignmentCreateClosedCourse(t *testing.T) {
	courses := &mockCourseReader{course: models.Course{ID: "course-1", IsClosed: true, AssignmentTotalScore: 60}}
	svc := NewAssignmentService(&mockAssignmentRepo{}, &mockSubmissionStore{}, courses, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), "course-1", CreateAssignmentRequest{Title: "HW", Type: "regular"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseClosed.Code, appErrors.FromError(err).Code)
}

func TestAssignmentCreateSpecialRequiresMaxScore(t *testing.T) {
	courses := &mockCourseReader{course: models.Course{ID: "course-1", AssignmentTotalScore: 60}}
	svc := NewAssignmentService(&mockAssignmentRepo{}, &mockSubmissionStore{}, courses, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), "course-1", CreateAssignmentRequest{Title: "Bonus", Type: "special"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
