package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kru-apps/gradebook-api/internal/service"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
	"github.com/kru-apps/gradebook-api/pkg/response"
)

// GradingHandler exposes the gradebook endpoints.
type GradingHandler struct {
	grading *service.GradingService
}

// NewGradingHandler constructs GradingHandler.
func NewGradingHandler(grading *service.GradingService) *GradingHandler {
	return &GradingHandler{grading: grading}
}

// Gradebook godoc
// @Summary Full gradebook of a course
// @Description Returns every student row with per-assignment cells, exam cells, totals and resolved letter grades.
// @Tags Grading
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/gradebook [get]
func (h *GradingHandler) Gradebook(c *gin.Context) {
	view, err := h.grading.Gradebook(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ToggleStatus godoc
// @Summary Cycle a submission status
// @Description Advances the submission through missing, submitted and late. The stored score follows the current regular cap.
// @Tags Grading
// @Produce json
// @Param id path string true "Course ID"
// @Param assignmentId path string true "Assignment ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/assignments/{assignmentId}/submissions/{studentId}/toggle [post]
func (h *GradingHandler) ToggleStatus(c *gin.Context) {
	submission, err := h.grading.ToggleStatus(c.Request.Context(), c.Param("id"), c.Param("assignmentId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// BulkSave godoc
// @Summary Save a batch of grade entries
// @Description Accepts mixed regular statuses, special scores and exam scores in one request.
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.BulkGradeRequest true "Grade entries"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/grades [put]
func (h *GradingHandler) BulkSave(c *gin.Context) {
	var req service.BulkGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.grading.BulkSave(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Grade summary for one student
// @Tags Grading
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students/{studentId}/summary [get]
func (h *GradingHandler) Summary(c *gin.Context) {
	summary, err := h.grading.Summary(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
