package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
	"github.com/kru-apps/gradebook-api/internal/models"
)

func newSubmissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSubmissionRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "assignment_id", "student_id", "submission_status", "score", "created_at", "updated_at"}).
		AddRow("sub-1", "asg-1", "stu-1", "submitted", 13.33, time.Now(), time.Now()).
		AddRow("sub-2", "asg-1", "stu-2", "late", 10.67, time.Now(), time.Now())
	mock.ExpectQuery(`(?s)SELECT sub\.id, sub\.assignment_id, sub\.student_id, sub\.submission_status, sub\.score.*JOIN assignments a ON a\.id = sub\.assignment_id.*WHERE a\.course_id = \$1`).
		WithArgs("course-1").
		WillReturnRows(rows)

	submissions, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, submissions, 2)
	require.Equal(t, gradecalc.StatusLate, submissions[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO submissions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO submissions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	submissions := []models.Submission{
		{AssignmentID: "asg-1", StudentID: "stu-1", Status: gradecalc.StatusSubmitted, Score: 13.33},
		{AssignmentID: "asg-1", StudentID: "stu-2", Status: gradecalc.StatusLate, Score: 10.67},
	}
	err := repo.BulkUpsert(context.Background(), submissions)
	require.NoError(t, err)
	require.NotEmpty(t, submissions[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateScores(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE submissions SET score = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs("sub-1", 10.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateScores(context.Background(), map[string]float64{"sub-1": 10})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateScoresEmpty(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	require.NoError(t, repo.UpdateScores(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryBackfillForAssignment(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO submissions.*ON CONFLICT \(assignment_id, student_id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.BackfillForAssignment(context.Background(), "asg-1", []string{"stu-1", "stu-2"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryBackfillNoStudents(t *testing.T) {
	db, mock, cleanup := newSubmissionRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	require.NoError(t, repo.BackfillForAssignment(context.Background(), "asg-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
