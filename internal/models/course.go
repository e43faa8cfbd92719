package models

import "time"

// Course is a taught subject with a declared split of its point budget
// between assignments and exams. The two conventionally sum to 100 but the
// schema does not enforce it.
type Course struct {
	ID                   string    `db:"id" json:"id"`
	Code                 string    `db:"code" json:"course_code"`
	Title                string    `db:"title" json:"title"`
	TeacherID            string    `db:"teacher_id" json:"teacher_id"`
	AssignmentTotalScore float64   `db:"assignment_total_score" json:"assignment_total_score"`
	ExamTotalScore       float64   `db:"exam_total_score" json:"exam_total_score"`
	IsClosed             bool      `db:"is_closed" json:"is_closed"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter restricts course listings.
type CourseFilter struct {
	TeacherID string
	Closed    *bool
	Search    string
	Page      int
	PageSize  int
}

// Enrollment links a student to a course.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
