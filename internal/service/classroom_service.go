package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
)

type classroomRepository interface {
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, error)
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	Create(ctx context.Context, classroom *models.Classroom) error
	Roster(ctx context.Context, classroomID string) ([]models.Student, error)
}

type classroomEnrollmentRepository interface {
	Enroll(ctx context.Context, courseID, studentID string) error
}

// CreateClassroomRequest holds payload for creating a classroom.
type CreateClassroomRequest struct {
	Name         string `json:"name" validate:"required"`
	GradeLevel   string `json:"grade_level" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
}

// ClassroomService handles classroom and roster use-cases.
type ClassroomService struct {
	repo        classroomRepository
	enrollments classroomEnrollmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassroomService constructs the classroom service.
func NewClassroomService(repo classroomRepository, enrollments classroomEnrollmentRepository, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, enrollments: enrollments, validator: validate, logger: logger}
}

// List returns classrooms matching the filter.
func (s *ClassroomService) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, error) {
	classrooms, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, nil
}

// Get returns a classroom by ID.
func (s *ClassroomService) Get(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return classroom, nil
}

// Create registers a new classroom.
func (s *ClassroomService) Create(ctx context.Context, req CreateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	classroom := &models.Classroom{
		Name:         req.Name,
		GradeLevel:   req.GradeLevel,
		AcademicYear: req.AcademicYear,
	}
	if err := s.repo.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	return classroom, nil
}

// Roster lists the active students of a classroom.
func (s *ClassroomService) Roster(ctx context.Context, id string) ([]models.Student, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	students, err := s.repo.Roster(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return students, nil
}

// EnrollIntoCourse enrolls the classroom's entire roster into a course.
func (s *ClassroomService) EnrollIntoCourse(ctx context.Context, classroomID, courseID string) (int, error) {
	students, err := s.Roster(ctx, classroomID)
	if err != nil {
		return 0, err
	}
	enrolled := 0
	for _, student := range students {
		if err := s.enrollments.Enroll(ctx, courseID, student.ID); err != nil {
			return enrolled, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll roster")
		}
		enrolled++
	}
	s.logger.Info("classroom enrolled into course",
		zap.String("classroom_id", classroomID),
		zap.String("course_id", courseID),
		zap.Int("students", enrolled))
	return enrolled, nil
}
