package models

import "time"

// Student represents a learner registered in the school.
type Student struct {
	ID          string    `db:"id" json:"id"`
	StudentCode string    `db:"student_code" json:"student_id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	ClassroomID *string   `db:"classroom_id" json:"classroom_id,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search      string
	ClassroomID string
	Active      *bool
	Page        int
	PageSize    int
}

// StudentImportRow is one parsed line of a roster CSV upload.
type StudentImportRow struct {
	StudentCode string `json:"student_id" validate:"required"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
}

// StudentImportResult summarises a roster import.
type StudentImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}
