package models

import "github.com/kru-apps/gradebook-api/internal/gradecalc"

// GradebookCell is one student's state on one assignment.
type GradebookCell struct {
	AssignmentID string                     `json:"assignment_id"`
	Status       gradecalc.SubmissionStatus `json:"submission_status"`
	Score        float64                    `json:"score"`
}

// GradebookExamCell is one student's raw score on one exam.
type GradebookExamCell struct {
	ExamID string  `json:"exam_id"`
	Score  float64 `json:"score"`
}

// GradebookRow is one student's full line in the grading grid.
type GradebookRow struct {
	Student      Student             `json:"student"`
	Cells        []GradebookCell     `json:"cells"`
	ExamCells    []GradebookExamCell `json:"exam_cells"`
	RegularTotal float64             `json:"regular_total"`
	SpecialTotal float64             `json:"special_total"`
	ExamTotal    float64             `json:"exam_total"`
	Total        float64             `json:"total"`
	Letter       string              `json:"letter"`
	GradePoint   float64             `json:"grade_point"`
}

// GradebookView is the full grading grid for a course.
type GradebookView struct {
	Course          Course       `json:"course"`
	Assignments     []Assignment `json:"assignments"`
	Exams           []Exam       `json:"exams"`
	RegularCap      float64      `json:"regular_cap"`
	RemainingBudget float64      `json:"remaining_assignment_budget"`
	RemainingExam   float64      `json:"remaining_exam_budget"`
	Rows            []GradebookRow `json:"rows"`
}

// StudentSummary is the per-student aggregate with the resolved letter grade.
type StudentSummary struct {
	StudentID    string  `json:"student_id"`
	CourseID     string  `json:"course_id"`
	RegularTotal float64 `json:"regular_total"`
	SpecialTotal float64 `json:"special_total"`
	ExamTotal    float64 `json:"exam_total"`
	Total        float64 `json:"total"`
	Letter       string  `json:"letter"`
	GradePoint   float64 `json:"grade_point"`
}
