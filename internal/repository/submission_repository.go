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

// SubmissionRepository manages persistence for assignment submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// ListByCourse returns every submission for a course's assignments.
func (r *SubmissionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Submission, error) {
	const query = `SELECT sub.id, sub.assignment_id, sub.student_id, sub.submission_status, sub.score, sub.created_at, sub.updated_at
        FROM submissions sub
        JOIN assignments a ON a.id = sub.assignment_id
        WHERE a.course_id = $1`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, courseID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// Find returns the submission for one student on one assignment.
func (r *SubmissionRepository) Find(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, submission_status, score, created_at, updated_at
        FROM submissions WHERE assignment_id = $1 AND student_id = $2 LIMIT 1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// Upsert inserts or updates a single submission.
func (r *SubmissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions (id, assignment_id, student_id, submission_status, score, created_at, updated_at)
        VALUES (:id, :assignment_id, :student_id, :submission_status, :score, :created_at, :updated_at)
        ON CONFLICT (assignment_id, student_id)
        DO UPDATE SET submission_status = EXCLUDED.submission_status, score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// BulkUpsert writes multiple submissions in one transaction. Used by the
// recompute pass that rewrites every regular score after the cap changes.
func (r *SubmissionRepository) BulkUpsert(ctx context.Context, submissions []models.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range submissions {
		if submissions[i].ID == "" {
			submissions[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if submissions[i].CreatedAt.IsZero() {
			submissions[i].CreatedAt = now
		}
		submissions[i].UpdatedAt = now
		const query = `INSERT INTO submissions (id, assignment_id, student_id, submission_status, score, created_at, updated_at)
                VALUES (:id, :assignment_id, :student_id, :submission_status, :score, :created_at, :updated_at)
                ON CONFLICT (assignment_id, student_id)
                DO UPDATE SET submission_status = EXCLUDED.submission_status, score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, query, submissions[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert submission: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submissions: %w", err)
	}
	return nil
}

// UpdateScores rewrites scores for a set of submissions by ID. Used by the
// budget-edit recompute, which changes scores but never statuses.
func (r *SubmissionRepository) UpdateScores(ctx context.Context, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for id, score := range scores {
		if _, err := tx.ExecContext(ctx, `UPDATE submissions SET score = $2, updated_at = $3 WHERE id = $1`, id, score, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("update submission score: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submission scores: %w", err)
	}
	return nil
}

// BackfillForAssignment inserts missing zero-score rows for the provided
// students, leaving existing submissions untouched.
func (r *SubmissionRepository) BackfillForAssignment(ctx context.Context, assignmentID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	values := make([]string, 0, len(studentIDs))
	args := []interface{}{assignmentID, now}
	for _, studentID := range studentIDs {
		args = append(args, uuid.NewString(), studentID)
		values = append(values, fmt.Sprintf("($%d, $1, $%d, 'missing', 0, $2, $2)", len(args)-1, len(args)))
	}
	query := fmt.Sprintf(`INSERT INTO submissions (id, assignment_id, student_id, submission_status, score, created_at, updated_at)
        VALUES %s ON CONFLICT (assignment_id, student_id) DO NOTHING`, strings.Join(values, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("backfill submissions: %w", err)
	}
	return nil
}
