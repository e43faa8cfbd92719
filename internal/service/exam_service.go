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

type examRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
}

type examScoreBackfiller interface {
	BackfillForExam(ctx context.Context, examID string, studentIDs []string) error
}

// CreateExamRequest holds payload for scheduling an exam.
type CreateExamRequest struct {
	Title    string     `json:"title" validate:"required"`
	MaxScore float64    `json:"max_score" validate:"required,gt=0"`
	ExamDate *time.Time `json:"exam_date"`
}

// ExamService owns the exam lifecycle under the exam point budget.
type ExamService struct {
	repo        examRepository
	scores      examScoreBackfiller
	courses     assignmentCourseReader
	invalidator summaryInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewExamService constructs the exam service.
func NewExamService(repo examRepository, scores examScoreBackfiller, courses assignmentCourseReader, invalidator summaryInvalidator, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		repo:        repo,
		scores:      scores,
		courses:     courses,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
	}
}

// List returns the exams of a course.
func (s *ExamService) List(ctx context.Context, courseID string) ([]models.Exam, error) {
	exams, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// Create schedules an exam after checking the remaining exam budget, then
// backfills a zero score for every enrolled student.
func (s *ExamService) Create(ctx context.Context, courseID string, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}

	course, err := s.courses.GetOpen(ctx, courseID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	maxScores := make([]float64, 0, len(existing))
	for _, exam := range existing {
		maxScores = append(maxScores, exam.MaxScore)
	}

	budget := gradecalc.CourseBudget{
		AssignmentTotalScore: course.AssignmentTotalScore,
		ExamTotalScore:       course.ExamTotalScore,
	}
	remaining := gradecalc.RemainingExamBudget(budget, maxScores)
	if err := gradecalc.ValidateAllocation(req.MaxScore, remaining); err != nil {
		return nil, appErrors.Clone(appErrors.ErrBudgetExceeded, err.Error())
	}

	exam := &models.Exam{
		CourseID: courseID,
		Title:    req.Title,
		MaxScore: req.MaxScore,
		ExamDate: req.ExamDate,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}

	students, err := s.courses.Students(ctx, courseID)
	if err != nil {
		return nil, err
	}
	studentIDs := make([]string, 0, len(students))
	for _, student := range students {
		studentIDs = append(studentIDs, student.ID)
	}
	if err := s.scores.BackfillForExam(ctx, exam.ID, studentIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to backfill exam scores")
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateCourse(ctx, courseID)
	}
	s.logger.Info("exam created",
		zap.String("course_id", courseID),
		zap.String("exam_id", exam.ID),
		zap.Float64("max_score", exam.MaxScore))
	return exam, nil
}

// Delete removes an exam and its scores. Exam deletion frees budget but
// never touches assignment scores, so no recompute pass runs.
func (s *ExamService) Delete(ctx context.Context, courseID, examID string) error {
	if _, err := s.courses.GetOpen(ctx, courseID); err != nil {
		return err
	}

	exam, err := s.repo.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if exam.CourseID != courseID {
		return appErrors.Clone(appErrors.ErrNotFound, "exam not found in course")
	}

	if err := s.repo.Delete(ctx, examID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateCourse(ctx, courseID)
	}
	s.logger.Info("exam deleted", zap.String("course_id", courseID), zap.String("exam_id", examID))
	return nil
}
