package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kru-apps/gradebook-api/internal/service"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
	"github.com/kru-apps/gradebook-api/pkg/response"
)

// ExamHandler exposes exam endpoints.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// List godoc
// @Summary List exams of a course
// @Tags Exams
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	exams, err := h.exams.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, nil)
}

// Create godoc
// @Summary Create exam
// @Description Exam max scores are validated against the remaining exam budget.
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req service.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exam, err := h.exams.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Delete godoc
// @Summary Delete exam
// @Tags Exams
// @Produce json
// @Param id path string true "Course ID"
// @Param examId path string true "Exam ID"
// @Success 204
// @Router /courses/{id}/exams/{examId} [delete]
func (h *ExamHandler) Delete(c *gin.Context) {
	if err := h.exams.Delete(c.Request.Context(), c.Param("id"), c.Param("examId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
