package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kru-apps/gradebook-api/internal/models"
)

// ExamRepository manages persistence for exams.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// ListByCourse returns the exams of a course in creation order.
func (r *ExamRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	const query = `SELECT id, course_id, title, max_score, exam_date, created_at, updated_at
        FROM exams WHERE course_id = $1 ORDER BY created_at ASC`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, courseID); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// FindByID fetches an exam by ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, course_id, title, max_score, exam_date, created_at, updated_at FROM exams WHERE id = $1 LIMIT 1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, course_id, title, max_score, exam_date, created_at, updated_at)
        VALUES (:id, :course_id, :title, :max_score, :exam_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Delete removes an exam and its scores.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exam_scores WHERE exam_id = $1`, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete exam scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete exam: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit exam delete: %w", err)
	}
	return nil
}
