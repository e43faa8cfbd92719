package models

import (
	"time"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
)

// AssignmentType distinguishes evenly-split regular work from fixed-weight
// special work.
type AssignmentType string

const (
	AssignmentRegular AssignmentType = "regular"
	AssignmentSpecial AssignmentType = "special"
)

// Assignment is a piece of course work. Regular assignments have no max
// score of their own; their per-item cap is derived from the course budget.
// Special assignments carry a fixed MaxScore carved out of that budget.
type Assignment struct {
	ID        string         `db:"id" json:"id"`
	CourseID  string         `db:"course_id" json:"course_id"`
	Title     string         `db:"title" json:"title"`
	Type      AssignmentType `db:"assignment_type" json:"assignment_type"`
	MaxScore  *float64       `db:"max_score" json:"max_score,omitempty"`
	DueDate   *time.Time     `db:"due_date" json:"due_date,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// CalcInfo projects the assignment into the scoring engine's shape.
func (a Assignment) CalcInfo() gradecalc.AssignmentInfo {
	info := gradecalc.AssignmentInfo{ID: a.ID, Type: string(a.Type)}
	if a.MaxScore != nil {
		info.MaxScore = *a.MaxScore
	}
	return info
}

// Submission records a student's state on one assignment. For regular
// assignments Score is derived from Status against the current cap; for
// special assignments Score is the directly entered raw value.
type Submission struct {
	ID           string                     `db:"id" json:"id"`
	AssignmentID string                     `db:"assignment_id" json:"assignment_id"`
	StudentID    string                     `db:"student_id" json:"student_id"`
	Status       gradecalc.SubmissionStatus `db:"submission_status" json:"submission_status"`
	Score        float64                    `db:"score" json:"score"`
	CreatedAt    time.Time                  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time                  `db:"updated_at" json:"updated_at"`
}
