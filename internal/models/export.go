package models

import "time"

// ReportFormat enumerates supported export renderings.
type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatPDF  ReportFormat = "pdf"
)

// ExportSettings stores a course's SGS export configuration: how the
// aggregate assignment score splits across the midterm boundary and which
// exams feed the two exam columns.
type ExportSettings struct {
	ID                  string    `db:"id" json:"id"`
	CourseID            string    `db:"course_id" json:"course_id"`
	BeforeMidtermWeight float64   `db:"before_midterm_weight" json:"before_midterm_weight"`
	AfterMidtermWeight  float64   `db:"after_midterm_weight" json:"after_midterm_weight"`
	MidtermExamID       *string   `db:"midterm_exam_id" json:"midterm_exam_id,omitempty"`
	FinalExamID         *string   `db:"final_exam_id" json:"final_exam_id,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// ExportRow is one student's line in the SGS file. Column order matters to
// the consuming school information system.
type ExportRow struct {
	StudentCode   string  `json:"student_id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	BeforeMidterm float64 `json:"before_midterm"`
	MidtermExam   float64 `json:"midterm_exam"`
	AfterMidterm  float64 `json:"after_midterm"`
	FinalExam     float64 `json:"final_exam"`
	TotalScore    float64 `json:"total_score"`
}

// ExportJobStatus tracks a background export through its lifecycle.
type ExportJobStatus string

const (
	ExportJobPending    ExportJobStatus = "pending"
	ExportJobProcessing ExportJobStatus = "processing"
	ExportJobCompleted  ExportJobStatus = "completed"
	ExportJobFailed     ExportJobStatus = "failed"
)

// ExportJob is one requested export file generation.
type ExportJob struct {
	ID            string          `json:"id"`
	CourseID      string          `json:"course_id"`
	Format        ReportFormat    `json:"format"`
	Status        ExportJobStatus `json:"status"`
	FileName      string          `json:"file_name,omitempty"`
	DownloadToken string          `json:"download_token,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	Error         string          `json:"error,omitempty"`
	RequestedBy   string          `json:"requested_by"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}
