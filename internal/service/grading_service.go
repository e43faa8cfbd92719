package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
)

type gradingSubmissionRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Submission, error)
	Find(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	Upsert(ctx context.Context, submission *models.Submission) error
	BulkUpsert(ctx context.Context, submissions []models.Submission) error
}

type gradingExamScoreRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ExamScore, error)
	Upsert(ctx context.Context, score *models.ExamScore) error
}

type gradingCourseReader interface {
	Get(ctx context.Context, id string) (*models.Course, error)
	GetOpen(ctx context.Context, id string) (*models.Course, error)
	Students(ctx context.Context, id string) ([]models.Student, error)
}

type gradingAssignmentReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
}

type gradingExamReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GradeEntry is one cell change in a bulk save: a status for regular
// assignments, a raw score for special assignments.
type GradeEntry struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
	Status       string `json:"submission_status"`
	Score        string `json:"score"`
}

// ExamScoreEntry is one exam score change in a bulk save.
type ExamScoreEntry struct {
	ExamID    string `json:"exam_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Score     string `json:"score"`
}

// BulkGradeRequest carries a grading grid save.
type BulkGradeRequest struct {
	Entries    []GradeEntry     `json:"entries" validate:"dive"`
	ExamScores []ExamScoreEntry `json:"exam_scores" validate:"dive"`
}

// GradingService builds the grading grid and applies score changes through
// the scoring engine.
type GradingService struct {
	submissions gradingSubmissionRepository
	examScores  gradingExamScoreRepository
	courses     gradingCourseReader
	assignments gradingAssignmentReader
	exams       gradingExamReader
	cache       summaryCache
	cacheTTL    time.Duration
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradingService constructs the grading service.
func NewGradingService(
	submissions gradingSubmissionRepository,
	examScores gradingExamScoreRepository,
	courses gradingCourseReader,
	assignments gradingAssignmentReader,
	exams gradingExamReader,
	cache summaryCache,
	cacheTTL time.Duration,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *GradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &GradingService{
		submissions: submissions,
		examScores:  examScores,
		courses:     courses,
		assignments: assignments,
		exams:       exams,
		cache:       cache,
		cacheTTL:    cacheTTL,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Gradebook assembles the full grading grid with per-student aggregates.
func (s *GradingService) Gradebook(ctx context.Context, courseID string) (*models.GradebookView, error) {
	course, err := s.courses.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	students, err := s.courses.Students(ctx, courseID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	exams, err := s.exams.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissions.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	examScores, err := s.examScores.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam scores")
	}

	budget := gradecalc.CourseBudget{
		AssignmentTotalScore: course.AssignmentTotalScore,
		ExamTotalScore:       course.ExamTotalScore,
	}
	infos := make([]gradecalc.AssignmentInfo, 0, len(assignments))
	for _, a := range assignments {
		infos = append(infos, a.CalcInfo())
	}
	examMax := make([]float64, 0, len(exams))
	for _, exam := range exams {
		examMax = append(examMax, exam.MaxScore)
	}

	subByStudent := make(map[string]map[string]models.Submission)
	for _, sub := range submissions {
		if subByStudent[sub.StudentID] == nil {
			subByStudent[sub.StudentID] = map[string]models.Submission{}
		}
		subByStudent[sub.StudentID][sub.AssignmentID] = sub
	}
	examByStudent := make(map[string]map[string]float64)
	for _, score := range examScores {
		if examByStudent[score.StudentID] == nil {
			examByStudent[score.StudentID] = map[string]float64{}
		}
		examByStudent[score.StudentID][score.ExamID] = score.Score
	}

	view := &models.GradebookView{
		Course:          *course,
		Assignments:     assignments,
		Exams:           exams,
		RegularCap:      gradecalc.RegularCap(budget, infos),
		RemainingBudget: gradecalc.RemainingRegularBudget(budget, infos),
		RemainingExam:   gradecalc.RemainingExamBudget(budget, examMax),
		Rows:            make([]models.GradebookRow, 0, len(students)),
	}

	for _, student := range students {
		row := s.buildRow(student, assignments, exams, subByStudent[student.ID], examByStudent[student.ID])
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

func (s *GradingService) buildRow(
	student models.Student,
	assignments []models.Assignment,
	exams []models.Exam,
	subs map[string]models.Submission,
	examScores map[string]float64,
) models.GradebookRow {
	row := models.GradebookRow{
		Student:   student,
		Cells:     make([]models.GradebookCell, 0, len(assignments)),
		ExamCells: make([]models.GradebookExamCell, 0, len(exams)),
	}

	specials := make([]gradecalc.AssignmentInfo, 0)
	specialScores := make(map[string]float64)
	regularTotal := 0.0
	for _, a := range assignments {
		sub, ok := subs[a.ID]
		cell := models.GradebookCell{AssignmentID: a.ID, Status: gradecalc.StatusMissing}
		if ok {
			cell.Status = sub.Status
			cell.Score = sub.Score
		}
		row.Cells = append(row.Cells, cell)

		if a.Type == models.AssignmentSpecial {
			specials = append(specials, a.CalcInfo())
			specialScores[a.ID] = cell.Score
			continue
		}
		regularTotal += cell.Score
	}

	rawExam := make([]float64, 0, len(exams))
	for _, exam := range exams {
		score := examScores[exam.ID]
		row.ExamCells = append(row.ExamCells, models.GradebookExamCell{ExamID: exam.ID, Score: score})
		rawExam = append(rawExam, score)
	}

	row.RegularTotal = gradecalc.Round2(regularTotal)
	row.SpecialTotal = gradecalc.SpecialTotal(specials, specialScores)
	row.ExamTotal = gradecalc.ExamTotal(rawExam)
	row.Total = gradecalc.Round2(row.RegularTotal + row.SpecialTotal + row.ExamTotal)
	grade := gradecalc.ResolveGrade(row.Total)
	row.Letter = grade.Letter
	row.GradePoint = grade.Point
	return row
}

// ToggleStatus advances a regular submission through the status cycle and
// stores the derived score.
func (s *GradingService) ToggleStatus(ctx context.Context, courseID, assignmentID, studentID string) (*models.Submission, error) {
	course, err := s.courses.GetOpen(ctx, courseID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var target *models.Assignment
	infos := make([]gradecalc.AssignmentInfo, 0, len(assignments))
	for i, a := range assignments {
		infos = append(infos, a.CalcInfo())
		if a.ID == assignmentID {
			target = &assignments[i]
		}
	}
	if target == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found in course")
	}
	if target.Type != models.AssignmentRegular {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only regular assignments use the status cycle")
	}

	budget := gradecalc.CourseBudget{
		AssignmentTotalScore: course.AssignmentTotalScore,
		ExamTotalScore:       course.ExamTotalScore,
	}
	cap := gradecalc.RegularCap(budget, infos)

	submission, err := s.submissions.Find(ctx, assignmentID, studentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
		}
		submission = &models.Submission{
			AssignmentID: assignmentID,
			StudentID:    studentID,
			Status:       gradecalc.StatusMissing,
		}
	}

	submission.Status = gradecalc.NextStatus(submission.Status)
	submission.Score = gradecalc.Round2(gradecalc.ScoreForStatus(cap, submission.Status))
	if err := s.submissions.Upsert(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}

	s.InvalidateCourse(ctx, courseID)
	return submission, nil
}

// BulkSave applies a batch of grid edits: status changes for regular
// assignments, bounded raw scores for special assignments and exams.
func (s *GradingService) BulkSave(ctx context.Context, courseID string, req BulkGradeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	course, err := s.courses.GetOpen(ctx, courseID)
	if err != nil {
		return err
	}
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	exams, err := s.exams.ListByCourse(ctx, courseID)
	if err != nil {
		return err
	}

	assignmentByID := make(map[string]models.Assignment, len(assignments))
	infos := make([]gradecalc.AssignmentInfo, 0, len(assignments))
	for _, a := range assignments {
		assignmentByID[a.ID] = a
		infos = append(infos, a.CalcInfo())
	}
	examByID := make(map[string]models.Exam, len(exams))
	for _, exam := range exams {
		examByID[exam.ID] = exam
	}

	budget := gradecalc.CourseBudget{
		AssignmentTotalScore: course.AssignmentTotalScore,
		ExamTotalScore:       course.ExamTotalScore,
	}
	cap := gradecalc.RegularCap(budget, infos)

	updates := make([]models.Submission, 0, len(req.Entries))
	for _, entry := range req.Entries {
		assignment, ok := assignmentByID[entry.AssignmentID]
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("assignment %s not in course", entry.AssignmentID))
		}

		submission := models.Submission{
			AssignmentID: entry.AssignmentID,
			StudentID:    entry.StudentID,
		}
		if assignment.Type == models.AssignmentRegular {
			submission.Status = gradecalc.NormalizeStatus(entry.Status)
			submission.Score = gradecalc.Round2(gradecalc.ScoreForStatus(cap, submission.Status))
		} else {
			raw := gradecalc.ParseScore(entry.Score)
			max := 0.0
			if assignment.MaxScore != nil {
				max = *assignment.MaxScore
			}
			if raw < 0 || raw > max {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score for %s must be between 0 and %.2f", assignment.Title, max))
			}
			submission.Status = gradecalc.StatusSubmitted
			submission.Score = gradecalc.Round2(raw)
		}
		updates = append(updates, submission)
	}
	if err := s.submissions.BulkUpsert(ctx, updates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grades")
	}

	for _, entry := range req.ExamScores {
		exam, ok := examByID[entry.ExamID]
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("exam %s not in course", entry.ExamID))
		}
		raw := gradecalc.ParseScore(entry.Score)
		if raw < 0 || raw > exam.MaxScore {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score for %s must be between 0 and %.2f", exam.Title, exam.MaxScore))
		}
		score := &models.ExamScore{
			ExamID:    entry.ExamID,
			StudentID: entry.StudentID,
			Score:     gradecalc.Round2(raw),
		}
		if err := s.examScores.Upsert(ctx, score); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save exam score")
		}
	}

	s.InvalidateCourse(ctx, courseID)
	s.logger.Info("grades saved",
		zap.String("course_id", courseID),
		zap.Int("entries", len(req.Entries)),
		zap.Int("exam_scores", len(req.ExamScores)))
	return nil
}

// Summary returns one student's aggregate, served from cache when warm.
func (s *GradingService) Summary(ctx context.Context, courseID, studentID string) (*models.StudentSummary, error) {
	key := summaryCacheKey(courseID, studentID)
	if s.cache != nil {
		var cached models.StudentSummary
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.ObserveCacheHit(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("summary cache read failed", zap.Error(err))
		}
		s.metrics.ObserveCacheHit(false)
	}

	view, err := s.Gradebook(ctx, courseID)
	if err != nil {
		return nil, err
	}
	for _, row := range view.Rows {
		if row.Student.ID != studentID {
			continue
		}
		summary := &models.StudentSummary{
			StudentID:    studentID,
			CourseID:     courseID,
			RegularTotal: row.RegularTotal,
			SpecialTotal: row.SpecialTotal,
			ExamTotal:    row.ExamTotal,
			Total:        row.Total,
			Letter:       row.Letter,
			GradePoint:   row.GradePoint,
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
				s.logger.Warn("summary cache write failed", zap.Error(err))
			}
		}
		return summary, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in course")
}

// InvalidateCourse drops every cached summary and analytics payload for a
// course. Runs after any grading, assignment, exam or budget mutation.
func (s *GradingService) InvalidateCourse(ctx context.Context, courseID string) {
	invalidateCourseCache(ctx, s.cache, s.logger, courseID)
}

func invalidateCourseCache(ctx context.Context, cache summaryCache, logger *zap.Logger, courseID string) {
	if cache == nil {
		return
	}
	if err := cache.DeleteByPattern(ctx, summaryCachePattern(courseID)); err != nil {
		logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
	if err := cache.DeleteByPattern(ctx, analyticsCacheKey(courseID)); err != nil {
		logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
}

func summaryCacheKey(courseID, studentID string) string {
	return fmt.Sprintf("summary:%s:%s", courseID, studentID)
}

func summaryCachePattern(courseID string) string {
	return fmt.Sprintf("summary:%s:*", courseID)
}
