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

// ExamScoreRepository manages persistence for exam scores.
type ExamScoreRepository struct {
	db *sqlx.DB
}

// NewExamScoreRepository constructs an ExamScoreRepository.
func NewExamScoreRepository(db *sqlx.DB) *ExamScoreRepository {
	return &ExamScoreRepository{db: db}
}

// ListByCourse returns every exam score for a course's exams.
func (r *ExamScoreRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ExamScore, error) {
	const query = `SELECT es.id, es.exam_id, es.student_id, es.score, es.created_at, es.updated_at
        FROM exam_scores es
        JOIN exams e ON e.id = es.exam_id
        WHERE e.course_id = $1`
	var scores []models.ExamScore
	if err := r.db.SelectContext(ctx, &scores, query, courseID); err != nil {
		return nil, fmt.Errorf("list exam scores: %w", err)
	}
	return scores, nil
}

// ListByExam returns scores for a single exam.
func (r *ExamScoreRepository) ListByExam(ctx context.Context, examID string) ([]models.ExamScore, error) {
	const query = `SELECT id, exam_id, student_id, score, created_at, updated_at FROM exam_scores WHERE exam_id = $1`
	var scores []models.ExamScore
	if err := r.db.SelectContext(ctx, &scores, query, examID); err != nil {
		return nil, fmt.Errorf("list scores for exam: %w", err)
	}
	return scores, nil
}

// Upsert inserts or updates an exam score.
func (r *ExamScoreRepository) Upsert(ctx context.Context, score *models.ExamScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now
	const query = `INSERT INTO exam_scores (id, exam_id, student_id, score, created_at, updated_at)
        VALUES (:id, :exam_id, :student_id, :score, :created_at, :updated_at)
        ON CONFLICT (exam_id, student_id)
        DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		return fmt.Errorf("upsert exam score: %w", err)
	}
	return nil
}

// BackfillForExam inserts missing zero rows for the provided students.
func (r *ExamScoreRepository) BackfillForExam(ctx context.Context, examID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	values := make([]string, 0, len(studentIDs))
	args := []interface{}{examID, now}
	for _, studentID := range studentIDs {
		args = append(args, uuid.NewString(), studentID)
		values = append(values, fmt.Sprintf("($%d, $1, $%d, 0, $2, $2)", len(args)-1, len(args)))
	}
	query := fmt.Sprintf(`INSERT INTO exam_scores (id, exam_id, student_id, score, created_at, updated_at)
        VALUES %s ON CONFLICT (exam_id, student_id) DO NOTHING`, strings.Join(values, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("backfill exam scores: %w", err)
	}
	return nil
}
