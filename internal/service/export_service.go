package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
	"github.com/kru-apps/gradebook-api/pkg/export"
	"github.com/kru-apps/gradebook-api/pkg/jobs"
)

var exportHeaders = []string{
	"student_id", "first_name", "last_name",
	"before_midterm", "midterm_exam", "after_midterm", "final_exam", "total_score",
}

type exportSettingsRepository interface {
	FindByCourse(ctx context.Context, courseID string) (*models.ExportSettings, error)
	Upsert(ctx context.Context, settings *models.ExportSettings) error
}

type exportFileStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type downloadSigner interface {
	Generate(exportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (exportID, relPath string, expiresAt time.Time, err error)
}

// SaveExportSettingsRequest carries the SGS split configuration.
type SaveExportSettingsRequest struct {
	BeforeMidtermWeight float64 `json:"before_midterm_weight" validate:"gte=0"`
	AfterMidtermWeight  float64 `json:"after_midterm_weight" validate:"gte=0"`
	MidtermExamID       *string `json:"midterm_exam_id"`
	FinalExamID         *string `json:"final_exam_id"`
}

// ExportRequest asks for a course export in one format. Confirm acknowledges
// outstanding configuration warnings.
type ExportRequest struct {
	Format  models.ReportFormat `json:"format" validate:"required,oneof=csv xlsx pdf"`
	Confirm bool                `json:"confirm"`
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File     *os.File
	Filename string
	Format   models.ReportFormat
}

// ExportService renders SGS grade files in the background: it validates the
// export configuration, recombines totals through the weighting engine and
// serves results through signed download URLs.
type ExportService struct {
	settings  exportSettingsRepository
	grading   gradebookReader
	exams     gradingExamReader
	store     exportFileStore
	signer    downloadSigner
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	queue *jobs.Queue

	mu      sync.RWMutex
	records map[string]*models.ExportJob
}

// NewExportService constructs the export service and its worker queue.
func NewExportService(
	settings exportSettingsRepository,
	grading gradebookReader,
	exams gradingExamReader,
	store exportFileStore,
	signer downloadSigner,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	queueOpts jobs.Options,
) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		settings:  settings,
		grading:   grading,
		exams:     exams,
		store:     store,
		signer:    signer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		records:   map[string]*models.ExportJob{},
	}
	queueOpts.Logger = logger
	queueOpts.OnDrop = s.markDropped
	s.queue = jobs.NewQueue("exports", s.handleTask, queueOpts)
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// GetSettings returns the export configuration of a course, defaulting to an
// even 50/50 split when none has been saved.
func (s *ExportService) GetSettings(ctx context.Context, courseID string) (*models.ExportSettings, error) {
	settings, err := s.settings.FindByCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.ExportSettings{
				CourseID:            courseID,
				BeforeMidtermWeight: 50,
				AfterMidtermWeight:  50,
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export settings")
	}
	return settings, nil
}

// SaveSettings stores the export configuration for a course.
func (s *ExportService) SaveSettings(ctx context.Context, courseID string, req SaveExportSettingsRequest) (*models.ExportSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export settings payload")
	}
	settings := &models.ExportSettings{
		CourseID:            courseID,
		BeforeMidtermWeight: req.BeforeMidtermWeight,
		AfterMidtermWeight:  req.AfterMidtermWeight,
		MidtermExamID:       req.MidtermExamID,
		FinalExamID:         req.FinalExamID,
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save export settings")
	}
	return settings, nil
}

// Warnings reports non-blocking configuration mismatches for a course: a
// weight split that disagrees with the assignment budget and exam budget
// left unconsumed by scheduled exams.
func (s *ExportService) Warnings(ctx context.Context, course *models.Course, settings *models.ExportSettings) ([]string, error) {
	exams, err := s.exams.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	examMax := make([]float64, 0, len(exams))
	for _, exam := range exams {
		examMax = append(examMax, exam.MaxScore)
	}

	budget := gradecalc.CourseBudget{
		AssignmentTotalScore: course.AssignmentTotalScore,
		ExamTotalScore:       course.ExamTotalScore,
	}
	warnings := make([]string, 0, 2)
	if warning, ok := gradecalc.CheckExportWeights(budget, settings.BeforeMidtermWeight, settings.AfterMidtermWeight); !ok {
		warnings = append(warnings, warning)
	}
	if warning, ok := gradecalc.CheckExamBudgetConsumed(budget, examMax); !ok {
		warnings = append(warnings, warning)
	}
	return warnings, nil
}

// Request validates and enqueues an export. Outstanding warnings block the
// request until the caller confirms; a zero assignment budget blocks it
// outright because the recombination ratio would be undefined.
func (s *ExportService) Request(ctx context.Context, course *models.Course, req ExportRequest, actorID string) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if course.AssignmentTotalScore == 0 {
		return nil, appErrors.Clone(appErrors.ErrExportDivision, "")
	}

	settings, err := s.GetSettings(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	warnings, err := s.Warnings(ctx, course, settings)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 && !req.Confirm {
		unconfirmed := appErrors.Clone(appErrors.ErrExportUnconfirmed, "")
		return &models.ExportJob{Warnings: warnings}, unconfirmed
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		CourseID:    course.ID,
		Format:      req.Format,
		Status:      models.ExportJobPending,
		Warnings:    warnings,
		RequestedBy: actorID,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.records[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Task{ID: job.ID, Kind: "export", Payload: course.ID}); err != nil {
		s.setFailed(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	s.logger.Info("export queued",
		zap.String("job_id", job.ID),
		zap.String("course_id", course.ID),
		zap.String("format", string(req.Format)))
	return s.snapshot(job.ID), nil
}

// Status returns the current state of an export job.
func (s *ExportService) Status(jobID string) (*models.ExportJob, error) {
	job := s.snapshot(jobID)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the export file.
func (s *ExportService) ResolveDownload(token string) (*ExportDownload, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	job := s.snapshot(jobID)
	if job == nil || job.Status != models.ExportJobCompleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file missing")
	}
	return &ExportDownload{File: file, Filename: job.FileName, Format: job.Format}, nil
}

func (s *ExportService) handleTask(ctx context.Context, task jobs.Task) (err error) {
	s.setStatus(task.ID, models.ExportJobProcessing)

	job := s.snapshot(task.ID)
	if job == nil {
		return fmt.Errorf("export job %s missing", task.ID)
	}

	started := time.Now()
	defer func() {
		s.metrics.ObserveExport(string(job.Format), err == nil, time.Since(started))
	}()

	view, err := s.grading.Gradebook(ctx, job.CourseID)
	if err != nil {
		return fmt.Errorf("load gradebook: %w", err)
	}
	settings, err := s.GetSettings(ctx, job.CourseID)
	if err != nil {
		return fmt.Errorf("load export settings: %w", err)
	}

	dataset, err := s.buildDataset(view, settings)
	if err != nil {
		return err
	}

	payload, filename, err := s.render(view, dataset, job.Format)
	if err != nil {
		return err
	}

	relPath := fmt.Sprintf("%s/%s", job.CourseID, filename)
	if _, err := s.store.Save(relPath, payload); err != nil {
		return fmt.Errorf("store export: %w", err)
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign download: %w", err)
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if record, ok := s.records[job.ID]; ok {
		record.Status = models.ExportJobCompleted
		record.FileName = filename
		record.DownloadToken = token
		record.ExpiresAt = &expiresAt
		record.CompletedAt = &now
	}
	s.mu.Unlock()

	s.logger.Info("export completed",
		zap.String("job_id", job.ID),
		zap.String("course_id", job.CourseID),
		zap.String("file", filename))
	return nil
}

// buildDataset recombines each student's totals into the SGS column layout.
func (s *ExportService) buildDataset(view *models.GradebookView, settings *models.ExportSettings) (export.Dataset, error) {
	midtermID := ""
	if settings.MidtermExamID != nil {
		midtermID = *settings.MidtermExamID
	}
	finalID := ""
	if settings.FinalExamID != nil {
		finalID = *settings.FinalExamID
	}

	dataset := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(view.Rows))}
	for _, row := range view.Rows {
		midtermRaw := 0.0
		finalRaw := 0.0
		for _, cell := range row.ExamCells {
			switch cell.ExamID {
			case midtermID:
				midtermRaw = cell.Score
			case finalID:
				finalRaw = cell.Score
			}
		}

		totalAssignment := row.RegularTotal + row.SpecialTotal
		scores, err := gradecalc.BuildExportScores(
			totalAssignment,
			view.Course.AssignmentTotalScore,
			settings.BeforeMidtermWeight,
			midtermRaw,
			finalRaw,
		)
		if err != nil {
			if errors.Is(err, gradecalc.ErrZeroAssignmentMax) {
				return export.Dataset{}, appErrors.Clone(appErrors.ErrExportDivision, "")
			}
			return export.Dataset{}, err
		}

		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_id":     row.Student.StudentCode,
			"first_name":     row.Student.FirstName,
			"last_name":      row.Student.LastName,
			"before_midterm": strconv.FormatFloat(scores.BeforeMidterm, 'f', -1, 64),
			"midterm_exam":   strconv.FormatFloat(scores.MidtermExam, 'f', -1, 64),
			"after_midterm":  strconv.FormatFloat(scores.AfterMidterm, 'f', -1, 64),
			"final_exam":     strconv.FormatFloat(scores.FinalExam, 'f', -1, 64),
			"total_score":    strconv.FormatFloat(scores.Total, 'f', -1, 64),
		})
	}
	return dataset, nil
}

func (s *ExportService) render(view *models.GradebookView, dataset export.Dataset, format models.ReportFormat) ([]byte, string, error) {
	stamp := time.Now().UTC().Format("20060102-150405")
	base := fmt.Sprintf("%s-grades-%s", view.Course.Code, stamp)

	switch format {
	case models.ReportFormatCSV:
		payload, err := export.NewCSVExporter().Render(dataset)
		return payload, base + ".csv", err
	case models.ReportFormatXLSX:
		payload, err := export.NewXLSXExporter().Render(dataset, "Grades")
		return payload, base + ".xlsx", err
	case models.ReportFormatPDF:
		payload, err := export.NewPDFExporter().Render(dataset, view.Course.Title)
		return payload, base + ".pdf", err
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

func (s *ExportService) snapshot(jobID string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[jobID]
	if !ok {
		return nil
	}
	copied := *record
	return &copied
}

func (s *ExportService) setStatus(jobID string, status models.ExportJobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[jobID]; ok {
		record.Status = status
	}
}

func (s *ExportService) setFailed(jobID string, err error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[jobID]; ok {
		record.Status = models.ExportJobFailed
		record.Error = err.Error()
		record.CompletedAt = &now
	}
}

func (s *ExportService) markDropped(task jobs.Task, err error) {
	s.setFailed(task.ID, err)
}
