package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
)

type assignmentRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

type assignmentSubmissionRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Submission, error)
	BulkUpsert(ctx context.Context, submissions []models.Submission) error
	BackfillForAssignment(ctx context.Context, assignmentID string, studentIDs []string) error
}

type assignmentCourseReader interface {
	GetOpen(ctx context.Context, id string) (*models.Course, error)
	Students(ctx context.Context, id string) ([]models.Student, error)
}

type summaryInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string)
}

// CreateAssignmentRequest holds payload for creating an assignment.
type CreateAssignmentRequest struct {
	Title    string     `json:"title" validate:"required"`
	Type     string     `json:"assignment_type" validate:"required,oneof=regular special"`
	MaxScore *float64   `json:"max_score"`
	DueDate  *time.Time `json:"due_date"`
}

// AssignmentService owns the assignment lifecycle: budget-validated creation,
// zero backfill for the roster and the recompute pass that keeps every
// regular score consistent with the shifting cap.
type AssignmentService struct {
	repo        assignmentRepository
	submissions assignmentSubmissionRepository
	courses     assignmentCourseReader
	invalidator summaryInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(repo assignmentRepository, submissions assignmentSubmissionRepository, courses assignmentCourseReader, invalidator summaryInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:        repo,
		submissions: submissions,
		courses:     courses,
		invalidator: invalidator,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns the assignments of a course.
func (s *AssignmentService) List(ctx context.Context, courseID string) ([]models.Assignment, error) {
	assignments, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Create adds an assignment to a course. Special assignments are checked
// against the remaining assignment budget before anything is written; a
// violation rejects the whole request with the exact remaining amount.
func (s *AssignmentService) Create(ctx context.Context, courseID string, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	course, err := s.courses.GetOpen(ctx, courseID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	budget := gradecalc.CourseBudget{
		AssignmentTotalScore: course.AssignmentTotalScore,
		ExamTotalScore:       course.ExamTotalScore,
	}
	infos := make([]gradecalc.AssignmentInfo, 0, len(existing))
	for _, a := range existing {
		infos = append(infos, a.CalcInfo())
	}

	assignment := &models.Assignment{
		CourseID: courseID,
		Title:    req.Title,
		Type:     models.AssignmentType(req.Type),
		DueDate:  req.DueDate,
	}

	if assignment.Type == models.AssignmentSpecial {
		if req.MaxScore == nil || *req.MaxScore <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "special assignments require a positive max score")
		}
		remaining := gradecalc.RemainingRegularBudget(budget, infos)
		if err := gradecalc.ValidateAllocation(*req.MaxScore, remaining); err != nil {
			return nil, appErrors.Clone(appErrors.ErrBudgetExceeded, err.Error())
		}
		assignment.MaxScore = req.MaxScore
	}

	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	students, err := s.courses.Students(ctx, courseID)
	if err != nil {
		return nil, err
	}
	studentIDs := make([]string, 0, len(students))
	for _, student := range students {
		studentIDs = append(studentIDs, student.ID)
	}
	if err := s.submissions.BackfillForAssignment(ctx, assignment.ID, studentIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to backfill submissions")
	}

	if err := s.recompute(ctx, courseID, budget, append(infos, assignment.CalcInfo())); err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateCourse(ctx, courseID)
	}
	s.logger.Info("assignment created",
		zap.String("course_id", courseID),
		zap.String("assignment_id", assignment.ID),
		zap.String("type", string(assignment.Type)))
	return assignment, nil
}

// Delete removes an assignment and reruns the recompute pass, since both the
// special pool and the regular denominator may have changed.
func (s *AssignmentService) Delete(ctx context.Context, courseID, assignmentID string) error {
	course, err := s.courses.GetOpen(ctx, courseID)
	if err != nil {
		return err
	}

	assignment, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.CourseID != courseID {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found in course")
	}

	if err := s.repo.Delete(ctx, assignmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}

	remaining, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	infos := make([]gradecalc.AssignmentInfo, 0, len(remaining))
	for _, a := range remaining {
		infos = append(infos, a.CalcInfo())
	}
	budget := gradecalc.CourseBudget{
		AssignmentTotalScore: course.AssignmentTotalScore,
		ExamTotalScore:       course.ExamTotalScore,
	}
	if err := s.recompute(ctx, courseID, budget, infos); err != nil {
		return err
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateCourse(ctx, courseID)
	}
	s.logger.Info("assignment deleted",
		zap.String("course_id", courseID),
		zap.String("assignment_id", assignmentID))
	return nil
}

// recompute rewrites every regular submission score against the current cap.
func (s *AssignmentService) recompute(ctx context.Context, courseID string, budget gradecalc.CourseBudget, infos []gradecalc.AssignmentInfo) error {
	cap := gradecalc.RegularCap(budget, infos)

	regular := make(map[string]bool, len(infos))
	for _, info := range infos {
		if info.Type == gradecalc.AssignmentRegular {
			regular[info.ID] = true
		}
	}

	submissions, err := s.submissions.ListByCourse(ctx, courseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	kept := make([]models.Submission, 0, len(submissions))
	scores := make([]gradecalc.SubmissionScore, 0, len(submissions))
	for _, sub := range submissions {
		if !regular[sub.AssignmentID] {
			continue
		}
		kept = append(kept, sub)
		scores = append(scores, gradecalc.SubmissionScore{
			AssignmentID: sub.AssignmentID,
			StudentID:    sub.StudentID,
			Status:       sub.Status,
			Score:        sub.Score,
		})
	}

	updated := make([]models.Submission, len(kept))
	for i, score := range gradecalc.RecomputeRegularScores(cap, scores) {
		sub := kept[i]
		sub.Score = score.Score
		updated[i] = sub
	}
	if err := s.submissions.BulkUpsert(ctx, updated); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewrite regular scores")
	}
	s.metrics.ObserveRecompute()
	return nil
}
