package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
)

type mockCourseStore struct {
	course  models.Course
	updated *models.Course
}

func (m *mockCourseStore) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return []models.Course{m.course}, 1, nil
}

func (m *mockCourseStore) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if id != m.course.ID {
		return nil, sql.ErrNoRows
	}
	course := m.course
	return &course, nil
}

func (m *mockCourseStore) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	return false, nil
}

func (m *mockCourseStore) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-" + course.Code
	m.course = *course
	return nil
}

func (m *mockCourseStore) Update(ctx context.Context, course *models.Course) error {
	m.course = *course
	m.updated = course
	return nil
}

func (m *mockCourseStore) SetClosed(ctx context.Context, id string, closed bool) error {
	m.course.IsClosed = closed
	return nil
}

type mockEnrollmentStore struct {
	students []models.Student
}

func (m *mockEnrollmentStore) ListStudentsByCourse(ctx context.Context, courseID string) ([]models.Student, error) {
	return m.students, nil
}

func (m *mockEnrollmentStore) Enroll(ctx context.Context, courseID, studentID string) error {
	m.students = append(m.students, models.Student{ID: studentID})
	return nil
}

func (m *mockEnrollmentStore) Unenroll(ctx context.Context, courseID, studentID string) error {
	return nil
}

type mockRewriteSubmissions struct {
	submissions []models.Submission
	rewrites    map[string]float64
}

func (m *mockRewriteSubmissions) ListByCourse(ctx context.Context, courseID string) ([]models.Submission, error) {
	return m.submissions, nil
}

func (m *mockRewriteSubmissions) UpdateScores(ctx context.Context, scores map[string]float64) error {
	m.rewrites = scores
	return nil
}

type mockCacheRecorder struct {
	deleted []string
}

func (m *mockCacheRecorder) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *mockCacheRecorder) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (m *mockCacheRecorder) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	return nil
}

func updateReq(course models.Course) UpdateCourseRequest {
	return UpdateCourseRequest{
		Code:                 course.Code,
		Title:                course.Title,
		TeacherID:            course.TeacherID,
		AssignmentTotalScore: course.AssignmentTotalScore,
		ExamTotalScore:       course.ExamTotalScore,
	}
}

func TestCourseUpdateBudgetRewritesRegularScores(t *testing.T) {
	repo := &mockCourseStore{course: models.Course{
		ID: "course-1", Code: "MATH101", Title: "Mathematics", TeacherID: "tch-1",
		AssignmentTotalScore: 50, ExamTotalScore: 50,
	}}
	assignments := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"asg-1": {ID: "asg-1", CourseID: "course-1", Type: models.AssignmentRegular},
		"asg-2": {ID: "asg-2", CourseID: "course-1", Type: models.AssignmentRegular},
		"asg-3": {ID: "asg-3", CourseID: "course-1", Type: models.AssignmentSpecial, MaxScore: ptrFloat(10)},
	}}
	subs := &mockRewriteSubmissions{submissions: []models.Submission{
		{ID: "sub-1", AssignmentID: "asg-1", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 20},
		{ID: "sub-2", AssignmentID: "asg-2", StudentID: "stu-1", Status: gradecalc.StatusLate, Score: 16},
		{ID: "sub-3", AssignmentID: "asg-3", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 5},
	}}
	cache := &mockCacheRecorder{}
	svc := NewCourseService(repo, &mockEnrollmentStore{}, assignments, subs, cache, nil, nil, nil)

	req := updateReq(repo.course)
	req.AssignmentTotalScore = 30
	updated, err := svc.Update(context.Background(), "course-1", req)
	require.NoError(t, err)
	assert.Equal(t, 30.0, updated.AssignmentTotalScore)

	// Cap drops from (50-10)/2=20 to (30-10)/2=10; both regular scores are
	// rewritten from their status, the special raw score is untouched.
	require.Len(t, subs.rewrites, 2)
	assert.Equal(t, 10.0, subs.rewrites["sub-1"])
	assert.Equal(t, 8.0, subs.rewrites["sub-2"])
	assert.NotContains(t, subs.rewrites, "sub-3")

	assert.Contains(t, cache.deleted, "summary:course-1:*")
	assert.Contains(t, cache.deleted, "analytics:course-1")
}

func TestCourseUpdateExamBudgetDropsCaches(t *testing.T) {
	repo := &mockCourseStore{course: models.Course{
		ID: "course-1", Code: "MATH101", Title: "Mathematics", TeacherID: "tch-1",
		AssignmentTotalScore: 50, ExamTotalScore: 50,
	}}
	subs := &mockRewriteSubmissions{}
	cache := &mockCacheRecorder{}
	svc := NewCourseService(repo, &mockEnrollmentStore{}, &mockAssignmentRepo{}, subs, cache, nil, nil, nil)

	req := updateReq(repo.course)
	req.ExamTotalScore = 40
	_, err := svc.Update(context.Background(), "course-1", req)
	require.NoError(t, err)

	// Stored submission scores only depend on the assignment budget.
	assert.Nil(t, subs.rewrites)
	assert.Contains(t, cache.deleted, "summary:course-1:*")
}

func TestCourseUpdateWithoutBudgetChangeSkipsRecompute(t *testing.T) {
	repo := &mockCourseStore{course: models.Course{
		ID: "course-1", Code: "MATH101", Title: "Mathematics", TeacherID: "tch-1",
		AssignmentTotalScore: 50, ExamTotalScore: 50,
	}}
	subs := &mockRewriteSubmissions{submissions: []models.Submission{
		{ID: "sub-1", AssignmentID: "asg-1", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 20},
	}}
	cache := &mockCacheRecorder{}
	svc := NewCourseService(repo, &mockEnrollmentStore{}, &mockAssignmentRepo{}, subs, cache, nil, nil, nil)

	req := updateReq(repo.course)
	req.Title = "Mathematics II"
	updated, err := svc.Update(context.Background(), "course-1", req)
	require.NoError(t, err)
	assert.Equal(t, "Mathematics II", updated.Title)
	assert.Nil(t, subs.rewrites)
	assert.Empty(t, cache.deleted)
}

func TestCourseUpdateRejectsClosedCourse(t *testing.T) {
	repo := &mockCourseStore{course: models.Course{
		ID: "course-1", Code: "MATH101", Title: "Mathematics", TeacherID: "tch-1",
		AssignmentTotalScore: 50, ExamTotalScore: 50, IsClosed: true,
	}}
	svc := NewCourseService(repo, &mockEnrollmentStore{}, &mockAssignmentRepo{}, &mockRewriteSubmissions{}, nil, nil, nil, nil)

	_, err := svc.Update(context.Background(), "course-1", updateReq(repo.course))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseClosed.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.updated)
}
