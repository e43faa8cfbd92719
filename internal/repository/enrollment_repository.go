package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kru-apps/gradebook-api/internal/models"
)

// EnrollmentRepository links students to courses.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByCourse returns enrollments for a course.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	const query = `SELECT id, course_id, student_id, created_at FROM enrollments WHERE course_id = $1`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListStudentsByCourse returns the enrolled students ordered by student code.
func (r *EnrollmentRepository) ListStudentsByCourse(ctx context.Context, courseID string) ([]models.Student, error) {
	const query = `SELECT s.id, s.student_code, s.first_name, s.last_name, s.classroom_id, s.active, s.created_at, s.updated_at
        FROM students s
        JOIN enrollments e ON e.student_id = s.id
        WHERE e.course_id = $1 AND s.active = true
        ORDER BY s.student_code ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return students, nil
}

// Enroll inserts an enrollment, ignoring duplicates.
func (r *EnrollmentRepository) Enroll(ctx context.Context, courseID, studentID string) error {
	enrollment := models.Enrollment{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		StudentID: studentID,
		CreatedAt: time.Now().UTC(),
	}
	const query = `INSERT INTO enrollments (id, course_id, student_id, created_at)
        VALUES (:id, :course_id, :student_id, :created_at)
        ON CONFLICT (course_id, student_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// Unenroll removes a student from a course.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, courseID, studentID string) error {
	const query = `DELETE FROM enrollments WHERE course_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, courseID, studentID); err != nil {
		return fmt.Errorf("unenroll student: %w", err)
	}
	return nil
}
