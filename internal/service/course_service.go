package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SetClosed(ctx context.Context, id string, closed bool) error
}

type courseEnrollmentRepository interface {
	ListStudentsByCourse(ctx context.Context, courseID string) ([]models.Student, error)
	Enroll(ctx context.Context, courseID, studentID string) error
	Unenroll(ctx context.Context, courseID, studentID string) error
}

type courseAssignmentReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
}

type courseSubmissionRewriter interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Submission, error)
	UpdateScores(ctx context.Context, scores map[string]float64) error
}

// CreateCourseRequest holds payload for creating a course.
type CreateCourseRequest struct {
	Code                 string  `json:"course_code" validate:"required"`
	Title                string  `json:"title" validate:"required"`
	TeacherID            string  `json:"teacher_id" validate:"required"`
	AssignmentTotalScore float64 `json:"assignment_total_score" validate:"gte=0"`
	ExamTotalScore       float64 `json:"exam_total_score" validate:"gte=0"`
}

// UpdateCourseRequest holds payload for updating a course.
type UpdateCourseRequest struct {
	Code                 string  `json:"course_code" validate:"required"`
	Title                string  `json:"title" validate:"required"`
	TeacherID            string  `json:"teacher_id" validate:"required"`
	AssignmentTotalScore float64 `json:"assignment_total_score" validate:"gte=0"`
	ExamTotalScore       float64 `json:"exam_total_score" validate:"gte=0"`
}

// CourseService handles course use-cases.
type CourseService struct {
	repo        courseRepository
	enrollments courseEnrollmentRepository
	assignments courseAssignmentReader
	submissions courseSubmissionRewriter
	cache       summaryCache
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(
	repo courseRepository,
	enrollments courseEnrollmentRepository,
	assignments courseAssignmentReader,
	submissions courseSubmissionRewriter,
	cache summaryCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:        repo,
		enrollments: enrollments,
		assignments: assignments,
		submissions: submissions,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns courses and pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// GetOpen returns a course and rejects when it has been closed for edits.
func (s *CourseService) GetOpen(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if course.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrCourseClosed, "")
	}
	return course, nil
}

// Create registers a new course with its point budget split.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already used")
	}
	course := &models.Course{
		Code:                 req.Code,
		Title:                req.Title,
		TeacherID:            req.TeacherID,
		AssignmentTotalScore: req.AssignmentTotalScore,
		ExamTotalScore:       req.ExamTotalScore,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update modifies a course. Closed courses cannot be edited. Changing the
// assignment budget shifts the regular cap, so every stored regular score is
// rewritten against the new cap before the caches are dropped.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.GetOpen(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already used")
	}

	assignmentBudgetChanged := course.AssignmentTotalScore != req.AssignmentTotalScore
	budgetChanged := assignmentBudgetChanged || course.ExamTotalScore != req.ExamTotalScore

	course.Code = req.Code
	course.Title = req.Title
	course.TeacherID = req.TeacherID
	course.AssignmentTotalScore = req.AssignmentTotalScore
	course.ExamTotalScore = req.ExamTotalScore
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	if assignmentBudgetChanged {
		budget := gradecalc.CourseBudget{
			AssignmentTotalScore: course.AssignmentTotalScore,
			ExamTotalScore:       course.ExamTotalScore,
		}
		if err := s.reapplyRegularCap(ctx, id, budget); err != nil {
			return nil, err
		}
	}
	if budgetChanged {
		invalidateCourseCache(ctx, s.cache, s.logger, id)
		s.logger.Info("course budget updated",
			zap.String("course_id", id),
			zap.Float64("assignment_total_score", course.AssignmentTotalScore),
			zap.Float64("exam_total_score", course.ExamTotalScore))
	}
	return course, nil
}

// reapplyRegularCap rewrites every regular submission score from its status
// against the cap implied by the new budget.
func (s *CourseService) reapplyRegularCap(ctx context.Context, courseID string, budget gradecalc.CourseBudget) error {
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	infos := make([]gradecalc.AssignmentInfo, 0, len(assignments))
	regular := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		infos = append(infos, a.CalcInfo())
		if a.Type == models.AssignmentRegular {
			regular[a.ID] = true
		}
	}
	cap := gradecalc.RegularCap(budget, infos)

	submissions, err := s.submissions.ListByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	ids := make([]string, 0, len(submissions))
	scores := make([]gradecalc.SubmissionScore, 0, len(submissions))
	for _, sub := range submissions {
		if !regular[sub.AssignmentID] {
			continue
		}
		ids = append(ids, sub.ID)
		scores = append(scores, gradecalc.SubmissionScore{
			AssignmentID: sub.AssignmentID,
			StudentID:    sub.StudentID,
			Status:       sub.Status,
			Score:        sub.Score,
		})
	}

	rewrites := make(map[string]float64, len(ids))
	for i, score := range gradecalc.RecomputeRegularScores(cap, scores) {
		rewrites[ids[i]] = score.Score
	}
	if err := s.submissions.UpdateScores(ctx, rewrites); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewrite regular scores")
	}
	s.metrics.ObserveRecompute()
	return nil
}

// Close marks a course read-only for grading.
func (s *CourseService) Close(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetClosed(ctx, id, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close course")
	}
	s.logger.Info("course closed", zap.String("course_id", id))
	return nil
}

// Students returns the enrolled roster of a course.
func (s *CourseService) Students(ctx context.Context, id string) ([]models.Student, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	students, err := s.enrollments.ListStudentsByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course students")
	}
	return students, nil
}

// Enroll adds one student to a course.
func (s *CourseService) Enroll(ctx context.Context, courseID, studentID string) error {
	if _, err := s.GetOpen(ctx, courseID); err != nil {
		return err
	}
	if err := s.enrollments.Enroll(ctx, courseID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	return nil
}

// Unenroll removes one student from a course.
func (s *CourseService) Unenroll(ctx context.Context, courseID, studentID string) error {
	if _, err := s.GetOpen(ctx, courseID); err != nil {
		return err
	}
	if err := s.enrollments.Unenroll(ctx, courseID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll student")
	}
	return nil
}
