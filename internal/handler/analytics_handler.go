package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kru-apps/gradebook-api/internal/service"
	"github.com/kru-apps/gradebook-api/pkg/response"
)

// AnalyticsHandler exposes course analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Course godoc
// @Summary Grade distribution and statistics for a course
// @Tags Analytics
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/analytics [get]
func (h *AnalyticsHandler) Course(c *gin.Context) {
	analytics, fromCache, err := h.analytics.Course(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if fromCache {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}
