package models

import "time"

// Classroom groups students into a homeroom roster, e.g. "M.4/2".
type Classroom struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	GradeLevel   string    `db:"grade_level" json:"grade_level"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ClassroomFilter restricts classroom listings.
type ClassroomFilter struct {
	AcademicYear string
	Search       string
}
