package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
)

type mockExamRepo struct {
	exams map[string]models.Exam
}

func (m *mockExamRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	var result []models.Exam
	for _, exam := range m.exams {
		if exam.CourseID == courseID {
			result = append(result, exam)
		}
	}
	return result, nil
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	exam, ok := m.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &exam, nil
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	if m.exams == nil {
		m.exams = make(map[string]models.Exam)
	}
	if exam.ID == "" {
		exam.ID = "exam-" + exam.Title
	}
	m.exams[exam.ID] = *exam
	return nil
}

func (m *mockExamRepo) Delete(ctx context.Context, id string) error {
	delete(m.exams, id)
	return nil
}

type mockExamScoreStore struct {
	backfilled map[string][]string
}

func (m *mockExamScoreStore) BackfillForExam(ctx context.Context, examID string, studentIDs []string) error {
	if m.backfilled == nil {
		m.backfilled = make(map[string][]string)
	}
	m.backfilled[examID] = studentIDs
	return nil
}

func TestExamCreateRejectsBudgetViolation(t *testing.T) {
	repo := &mockExamRepo{exams: map[string]models.Exam{
		"exam-mid": {ID: "exam-mid", CourseID: "course-1", Title: "Midterm", MaxScore: 10},
	}}
	scores := &mockExamScoreStore{}
	courses := &mockCourseReader{
		course:   models.Course{ID: "course-1", AssignmentTotalScore: 60, ExamTotalScore: 40},
		students: []models.Student{{ID: "stu-1"}},
	}
	svc := NewExamService(repo, scores, courses, nil, nil, nil)

	_, err := svc.Create(context.Background(), "course-1", CreateExamRequest{
		Title:    "Final",
		MaxScore: 35,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBudgetExceeded.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "30.00")
	assert.Len(t, repo.exams, 1)
	assert.Empty(t, scores.backfilled)

	// Exactly the remaining budget is accepted and the roster is backfilled.
	created, err := svc.Create(context.Background(), "course-1", CreateExamRequest{
		Title:    "Final",
		MaxScore: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, 30.0, created.MaxScore)
	assert.Equal(t, []string{"stu-1"}, scores.backfilled[created.ID])
}

func TestExamCreateClosedCourse(t *testing.T) {
	courses := &mockCourseReader{course: models.Course{ID: "course-1", IsClosed: true, ExamTotalScore: 40}}
	svc := NewExamService(&mockExamRepo{}, &mockExamScoreStore{}, courses, nil, nil, nil)

	_, err := svc.Create(context.Background(), "course-1", CreateExamRequest{Title: "Final", MaxScore: 20})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseClosed.Code, appErrors.FromError(err).Code)
}
