package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kru-apps/gradebook-api/internal/models"
	"github.com/kru-apps/gradebook-api/internal/service"
	appErrors "github.com/kru-apps/gradebook-api/pkg/errors"
	"github.com/kru-apps/gradebook-api/pkg/response"
)

// ExportHandler exposes the SGS export endpoints.
type ExportHandler struct {
	exports *service.ExportService
	courses *service.CourseService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService, courses *service.CourseService) *ExportHandler {
	return &ExportHandler{exports: exports, courses: courses}
}

// GetSettings godoc
// @Summary Get export settings of a course
// @Tags Exports
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/export-settings [get]
func (h *ExportHandler) GetSettings(c *gin.Context) {
	settings, err := h.exports.GetSettings(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// SaveSettings godoc
// @Summary Save export settings of a course
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.SaveExportSettingsRequest true "Export settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/export-settings [put]
func (h *ExportHandler) SaveSettings(c *gin.Context) {
	var req service.SaveExportSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	settings, err := h.exports.SaveSettings(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Request godoc
// @Summary Request a course export
// @Description Queues background generation of an SGS grade file. Configuration warnings must be confirmed before the export runs.
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.ExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}

	job, err := h.exports.Request(c.Request.Context(), course, req, actorID)
	if err != nil {
		if job != nil && appErrors.FromError(err).Code == appErrors.ErrExportUnconfirmed.Code {
			response.ErrorWithWarnings(c, err, job.Warnings)
			return
		}
		response.Error(c, err)
		return
	}

	response.JSONWithWarnings(c, http.StatusAccepted, job, job.Warnings)
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{jobId} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.exports.Status(c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a generated export
// @Description Streams the export file referenced by a signed token. No session is required, the token itself authorises the download.
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	download, err := h.exports.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeForFormat(download.Format), download.File, nil)
}

func contentTypeForFormat(format models.ReportFormat) string {
	switch format {
	case models.ReportFormatCSV:
		return "text/csv; charset=utf-8"
	case models.ReportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case models.ReportFormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
