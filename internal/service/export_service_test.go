package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
	"github.com/kru-apps/gradebook-api/pkg/jobs"
	"github.com/kru-apps/gradebook-api/pkg/storage"
)

type mockExportSettingsRepo struct {
	settings map[string]models.ExportSettings
}

func (m *mockExportSettingsRepo) FindByCourse(ctx context.Context, courseID string) (*models.ExportSettings, error) {
	settings, ok := m.settings[courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &settings, nil
}

func (m *mockExportSettingsRepo) Upsert(ctx context.Context, settings *models.ExportSettings) error {
	if m.settings == nil {
		m.settings = make(map[string]models.ExportSettings)
	}
	m.settings[settings.CourseID] = *settings
	return nil
}

type staticGradebook struct {
	view models.GradebookView
}

func (m *staticGradebook) Gradebook(ctx context.Context, courseID string) (*models.GradebookView, error) {
	view := m.view
	return &view, nil
}

func exportFixtureView() models.GradebookView {
	return models.GradebookView{
		Course: models.Course{ID: "course-1", Code: "MATH101", Title: "Mathematics", AssignmentTotalScore: 50, ExamTotalScore: 50},
		Rows: []models.GradebookRow{
			{
				Student:      models.Student{ID: "stu-1", StudentCode: "10001", FirstName: "Somchai", LastName: "Jaidee"},
				RegularTotal: 31.5,
				SpecialTotal: 8.5,
				ExamCells: []models.GradebookExamCell{
					{ExamID: "exam-mid", Score: 27.3},
					{ExamID: "exam-final", Score: 33.6},
				},
			},
		},
	}
}

func midFinal() (*string, *string) {
	mid := "exam-mid"
	fin := "exam-final"
	return &mid, &fin
}

func newExportService(t *testing.T, view models.GradebookView, exams []models.Exam, settingsRepo *mockExportSettingsRepo) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(
		settingsRepo,
		&staticGradebook{view: view},
		&mockExamLister{exams: exams},
		store,
		signer,
		nil,
		nil,
		nil,
		jobs.Options{Workers: 1, RetryDelay: 10 * time.Millisecond},
	)
	return svc
}

func TestExportBuildDatasetCeilingRecombination(t *testing.T) {
	mid, fin := midFinal()
	svc := newExportService(t, exportFixtureView(), nil, &mockExportSettingsRepo{})

	dataset, err := svc.buildDataset(&models.GradebookView{
		Course: models.Course{AssignmentTotalScore: 50},
		Rows:   exportFixtureView().Rows,
	}, &models.ExportSettings{
		BeforeMidtermWeight: 20,
		AfterMidtermWeight:  30,
		MidtermExamID:       mid,
		FinalExamID:         fin,
	})
	require.NoError(t, err)
	require.Len(t, dataset.Rows, 1)

	row := dataset.Rows[0]
	assert.Equal(t, "10001", row["student_id"])
	assert.Equal(t, "16", row["before_midterm"])
	assert.Equal(t, "28", row["midterm_exam"])
	assert.Equal(t, "24", row["after_midterm"])
	assert.Equal(t, "34", row["final_exam"])
	assert.Equal(t, "102", row["total_score"])
}

func TestExportRequestRejectsZeroAssignmentBudget(t *testing.T) {
	view := exportFixtureView()
	svc := newExportService(t, view, nil, &mockExportSettingsRepo{})

	course := models.Course{ID: "course-1", AssignmentTotalScore: 0}
	_, err := svc.Request(context.Background(), &course, ExportRequest{Format: models.ReportFormatCSV}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExportDivision.Code, appErrors.FromError(err).Code)
}

func TestExportRequestRequiresConfirmationForWarnings(t *testing.T) {
	view := exportFixtureView()
	// Weights sum to 60 against an assignment budget of 50, and no exams
	// consume the exam budget.
	settingsRepo := &mockExportSettingsRepo{settings: map[string]models.ExportSettings{
		"course-1": {CourseID: "course-1", BeforeMidtermWeight: 30, AfterMidtermWeight: 30},
	}}
	svc := newExportService(t, view, nil, settingsRepo)
	svc.Start(context.Background())
	defer svc.Stop()

	course := view.Course
	job, err := svc.Request(context.Background(), &course, ExportRequest{Format: models.ReportFormatCSV}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExportUnconfirmed.Code, appErrors.FromError(err).Code)
	require.NotNil(t, job)
	assert.Len(t, job.Warnings, 2)

	// confirm=true proceeds and carries the warnings on the job record.
	job, err = svc.Request(context.Background(), &course, ExportRequest{Format: models.ReportFormatCSV, Confirm: true}, "user-1")
	require.NoError(t, err)
	assert.Len(t, job.Warnings, 2)
}

func TestExportPipelineProducesSignedCSV(t *testing.T) {
	view := exportFixtureView()
	mid, fin := midFinal()
	settingsRepo := &mockExportSettingsRepo{settings: map[string]models.ExportSettings{
		"course-1": {CourseID: "course-1", BeforeMidtermWeight: 20, AfterMidtermWeight: 30, MidtermExamID: mid, FinalExamID: fin},
	}}
	exams := []models.Exam{
		{ID: "exam-mid", MaxScore: 30},
		{ID: "exam-final", MaxScore: 20},
	}
	svc := newExportService(t, view, exams, settingsRepo)
	svc.Start(context.Background())
	defer svc.Stop()

	course := view.Course
	job, err := svc.Request(context.Background(), &course, ExportRequest{Format: models.ReportFormatCSV}, "user-1")
	require.NoError(t, err)
	assert.Empty(t, job.Warnings)

	var status *models.ExportJob
	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err = svc.Status(job.ID)
		require.NoError(t, err)
		if status.Status == models.ExportJobCompleted || status.Status == models.ExportJobFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("export did not finish, status %s", status.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, models.ExportJobCompleted, status.Status)
	require.NotEmpty(t, status.DownloadToken)
	assert.True(t, strings.HasSuffix(status.FileName, ".csv"))

	download, err := svc.ResolveDownload(status.DownloadToken)
	require.NoError(t, err)
	defer download.File.Close()

	payload, err := io.ReadAll(download.File)
	require.NoError(t, err)
	require.True(t, len(payload) > 3)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, payload[:3])

	lines := strings.Split(strings.TrimSpace(string(payload[3:])), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "student_id,first_name,last_name,before_midterm,midterm_exam,after_midterm,final_exam,total_score", lines[0])
	assert.Equal(t, "10001,Somchai,Jaidee,16,28,24,34,102", lines[1])
}

func TestExportGetSettingsDefaults(t *testing.T) {
	svc := newExportService(t, exportFixtureView(), nil, &mockExportSettingsRepo{})

	settings, err := svc.GetSettings(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, settings.BeforeMidtermWeight)
	assert.Equal(t, 50.0, settings.AfterMidtermWeight)
}

func TestExportWarningsDetectMismatches(t *testing.T) {
	view := exportFixtureView()
	svc := newExportService(t, view, []models.Exam{{ID: "exam-mid", MaxScore: 30}}, &mockExportSettingsRepo{})

	course := view.Course
	warnings, err := svc.Warnings(context.Background(), &course, &models.ExportSettings{
		BeforeMidtermWeight: 20,
		AfterMidtermWeight:  30,
	})
	require.NoError(t, err)
	// Weights match the budget exactly; only the unconsumed exam budget warns.
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "exam")
}
