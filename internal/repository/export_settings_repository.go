package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kru-apps/gradebook-api/internal/models"
)

// ExportSettingsRepository stores per-course export configuration.
type ExportSettingsRepository struct {
	db *sqlx.DB
}

// NewExportSettingsRepository constructs an ExportSettingsRepository.
func NewExportSettingsRepository(db *sqlx.DB) *ExportSettingsRepository {
	return &ExportSettingsRepository{db: db}
}

// FindByCourse returns the export settings for a course.
func (r *ExportSettingsRepository) FindByCourse(ctx context.Context, courseID string) (*models.ExportSettings, error) {
	const query = `SELECT id, course_id, before_midterm_weight, after_midterm_weight, midterm_exam_id, final_exam_id, created_at, updated_at
        FROM export_settings WHERE course_id = $1 LIMIT 1`
	var settings models.ExportSettings
	if err := r.db.GetContext(ctx, &settings, query, courseID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert writes the export settings for a course.
func (r *ExportSettingsRepository) Upsert(ctx context.Context, settings *models.ExportSettings) error {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	const query = `INSERT INTO export_settings (id, course_id, before_midterm_weight, after_midterm_weight, midterm_exam_id, final_exam_id, created_at, updated_at)
        VALUES (:id, :course_id, :before_midterm_weight, :after_midterm_weight, :midterm_exam_id, :final_exam_id, :created_at, :updated_at)
        ON CONFLICT (course_id)
        DO UPDATE SET before_midterm_weight = EXCLUDED.before_midterm_weight, after_midterm_weight = EXCLUDED.after_midterm_weight,
            midterm_exam_id = EXCLUDED.midterm_exam_id, final_exam_id = EXCLUDED.final_exam_id, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert export settings: %w", err)
	}
	return nil
}
