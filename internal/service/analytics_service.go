package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kru-apps/gradebook-api/internal/gradecalc"
	"github.com/kru-apps/gradebook-api/internal/models"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
)

// CourseAnalytics aggregates a course's grade distribution and statistics.
type CourseAnalytics struct {
	CourseID     string                         `json:"course_id"`
	Distribution []gradecalc.DistributionBucket `json:"distribution"`
	Statistics   gradecalc.Statistics           `json:"statistics"`
	GeneratedAt  time.Time                      `json:"generated_at"`
}

type gradebookReader interface {
	Gradebook(ctx context.Context, courseID string) (*models.GradebookView, error)
}

// AnalyticsService derives course-level grade analytics from the grid.
type AnalyticsService struct {
	grading  gradebookReader
	cache    summaryCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAnalyticsService constructs the analytics service.
func NewAnalyticsService(grading gradebookReader, cache summaryCache, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AnalyticsService{grading: grading, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Course returns the grade distribution and score statistics for a course.
// The boolean indicates whether the payload came from cache.
func (s *AnalyticsService) Course(ctx context.Context, courseID string) (*CourseAnalytics, bool, error) {
	key := analyticsCacheKey(courseID)
	if s.cache != nil {
		var cached CourseAnalytics
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("analytics cache read failed", zap.Error(err))
		}
	}

	view, err := s.grading.Gradebook(ctx, courseID)
	if err != nil {
		return nil, false, err
	}

	totals := make([]float64, 0, len(view.Rows))
	for _, row := range view.Rows {
		totals = append(totals, row.Total)
	}

	analytics := &CourseAnalytics{
		CourseID:     courseID,
		Distribution: gradecalc.Distribution(totals),
		Statistics:   gradecalc.ComputeStatistics(totals),
		GeneratedAt:  time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, analytics, s.cacheTTL); err != nil {
			s.logger.Warn("analytics cache write failed", zap.Error(err))
		}
	}
	return analytics, false, nil
}

func analyticsCacheKey(courseID string) string {
	return fmt.Sprintf("analytics:%s", courseID)
}
