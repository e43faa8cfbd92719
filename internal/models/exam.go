package models

import "time"

// Exam is a scheduled examination with a fixed share of the exam budget.
type Exam struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Title     string     `db:"title" json:"title"`
	MaxScore  float64    `db:"max_score" json:"max_score"`
	ExamDate  *time.Time `db:"exam_date" json:"exam_date,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ExamScore records a student's raw score on one exam, bounded at entry by
// the exam's max score.
type ExamScore struct {
	ID        string    `db:"id" json:"id"`
	ExamID    string    `db:"exam_id" json:"exam_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Score     float64   `db:"score" json:"score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
