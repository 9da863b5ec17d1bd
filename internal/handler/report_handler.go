package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/service"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

type reportService interface {
	Create(ctx context.Context, req models.CreateReportRequest) (*models.ReportDetail, error)
	Generate(ctx context.Context, req models.GenerateReportRequest) (*models.ReportDetail, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.ReportDetail, int, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ReportDetail, error)
	Get(ctx context.Context, id string) (*models.ReportDetail, error)
	Update(ctx context.Context, id string, req models.UpdateReportRequest) (*models.ReportDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus) (*models.ReportDetail, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, supervisorID string) (*models.ReportStats, error)
}

type reportExportService interface {
	Request(ctx context.Context, principal models.Principal, reportID string, req models.CreateReportExportRequest) (*models.ReportExportStatus, error)
	Status(ctx context.Context, principal models.Principal, exportID string) (*models.ReportExportStatus, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

var exportContentTypes = map[models.ExportFormat]string{
	models.ExportFormatPDF:  "application/pdf",
	models.ExportFormatCSV:  "text/csv; charset=utf-8",
	models.ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ReportHandler exposes report and export endpoints.
type ReportHandler struct {
	reports reportService
	exports reportExportService
	logger  *zap.Logger
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportService, exports reportExportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, exports: exports, logger: logger}
}

// List godoc
// @Summary List reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param supervisorId query string false "Supervisor ID"
// @Param teacherId query string false "Teacher ID"
// @Param period query string false "YYYY-MM"
// @Param status query string false "DRAFT, PUBLISHED or ARCHIVED"
// @Param skip query int false "Offset"
// @Param take query int false "Page size (max 100)"
// @Success 200 {object} response.ListEnvelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	filter := models.ReportFilter{
		SupervisorID: c.Query("supervisorId"),
		TeacherID:    c.Query("teacherId"),
		Period:       strings.TrimSpace(c.Query("period")),
	}
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.ReportStatus(raw)
		filter.Status = &status
	}
	filter.Skip, filter.Take = page(c)

	items, total, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, total, filter.Skip, filter.Take)
}

// Stats godoc
// @Summary Report statistics
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param supervisorId query string false "Supervisor ID"
// @Success 200 {object} response.Envelope
// @Router /reports/stats [get]
func (h *ReportHandler) Stats(c *gin.Context) {
	stats, err := h.reports.Stats(c.Request.Context(), c.Query("supervisorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// ByTeacher godoc
// @Summary Reports of one teacher
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /reports/teacher/{teacherId} [get]
func (h *ReportHandler) ByTeacher(c *gin.Context) {
	items, err := h.reports.ListByTeacher(c.Request.Context(), c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Create godoc
// @Summary Create a manual report
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req models.CreateReportRequest
	if !bindJSON(c, &req, "invalid report payload") {
		return
	}
	report, err := h.reports.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// Generate godoc
// @Summary Generate a monthly report from assessments
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.GenerateReportRequest true "Teacher, supervisor and period"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /reports/generate [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	var req models.GenerateReportRequest
	if !bindJSON(c, &req, "invalid generate payload") {
		return
	}
	report, err := h.reports.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "Report generated successfully", report)
}

// Update godoc
// @Summary Update report
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body models.UpdateReportRequest true "Report payload"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [patch]
func (h *ReportHandler) Update(c *gin.Context) {
	var req models.UpdateReportRequest
	if !bindJSON(c, &req, "invalid report payload") {
		return
	}
	report, err := h.reports.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// UpdateStatus godoc
// @Summary Change report status
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param status path string true "DRAFT, PUBLISHED or ARCHIVED"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Router /reports/{id}/status/{status} [put]
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	status := models.ReportStatus(strings.ToUpper(c.Param("status")))
	report, err := h.reports.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Delete godoc
// @Summary Delete report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.reports.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Report deleted successfully", nil)
}

// RequestExport godoc
// @Summary Queue a report export
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param payload body models.CreateReportExportRequest true "pdf, csv or xlsx"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /reports/{id}/exports [post]
func (h *ReportHandler) RequestExport(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.CreateReportExportRequest
	if !bindJSON(c, &req, "invalid export payload") {
		return
	}
	status, err := h.exports.Request(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, status, nil)
}

// ExportStatus godoc
// @Summary Poll a report export
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param exportId path string true "Export ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.ErrorBody
// @Router /reports/exports/{exportId} [get]
func (h *ReportHandler) ExportStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	status, err := h.exports.Status(c.Request.Context(), p, c.Param("exportId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// DownloadExport godoc
// @Summary Download a finished export
// @Description The token in the path is the signed URL issued when the export finished
// @Tags Reports
// @Produce application/octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.ErrorBody
// @Router /reports/exports/download/{token} [get]
func (h *ReportHandler) DownloadExport(c *gin.Context) {
	download, err := h.exports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		h.logger.Error("failed to stat export file", zap.String("file", download.Filename), zap.Error(err))
		response.Error(c, err)
		return
	}
	contentType, ok := exportContentTypes[download.Format]
	if !ok {
		contentType = "application/octet-stream"
	}

	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, download.Filename),
	})
}
