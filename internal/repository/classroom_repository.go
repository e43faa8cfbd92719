package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kru-apps/gradebook-api/internal/models"
)

// ClassroomRepository manages classroom records and rosters.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs a ClassroomRepository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns classrooms matching the filter.
func (r *ClassroomRepository) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, error) {
	query := "SELECT id, name, grade_level, academic_year, created_at, updated_at FROM classrooms WHERE 1=1"
	var args []interface{}
	if filter.AcademicYear != "" {
		query += fmt.Sprintf(" AND academic_year = $%d", len(args)+1)
		args = append(args, filter.AcademicYear)
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	query += " ORDER BY name ASC"

	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, args...); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classrooms, nil
}

// FindByID fetches a classroom by ID.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	const query = `SELECT id, name, grade_level, academic_year, created_at, updated_at FROM classrooms WHERE id = $1 LIMIT 1`
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// Create inserts a new classroom.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = now
	}
	classroom.UpdatedAt = now
	const query = `INSERT INTO classrooms (id, name, grade_level, academic_year, created_at, updated_at)
        VALUES (:id, :name, :grade_level, :academic_year, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Roster lists the active students assigned to a classroom.
func (r *ClassroomRepository) Roster(ctx context.Context, classroomID string) ([]models.Student, error) {
	const query = `SELECT id, student_code, first_name, last_name, classroom_id, active, created_at, updated_at
        FROM students WHERE classroom_id = $1 AND active = true ORDER BY student_code ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classroomID); err != nil {
		return nil, fmt.Errorf("classroom roster: %w", err)
	}
	return students, nil
}
