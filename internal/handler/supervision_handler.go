package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/service"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

// SupervisionHandler exposes supervision session endpoints.
type SupervisionHandler struct {
	supervisions *service.SupervisionService
}

// NewSupervisionHandler constructs SupervisionHandler.
func NewSupervisionHandler(supervisions *service.SupervisionService) *SupervisionHandler {
	return &SupervisionHandler{supervisions: supervisions}
}

// List godoc
// @Summary List supervisions
// @Tags Supervisions
// @Produce json
// @Security BearerAuth
// @Param supervisorId query string false "Supervisor ID"
// @Param teacherId query string false "Teacher ID"
// @Param status query string false "PENDING, COMPLETED, RESCHEDULED or CANCELLED"
// @Param type query string false "OFFLINE, ONLINE or HYBRID"
// @Param startDate query string false "Inclusive lower bound"
// @Param endDate query string false "Inclusive upper bound"
// @Param skip query int false "Offset"
// @Param take query int false "Page size (max 100)"
// @Success 200 {object} response.ListEnvelope
// @Router /supervisions [get]
func (h *SupervisionHandler) List(c *gin.Context) {
	start, end, ok := queryRange(c)
	if !ok {
		return
	}
	filter := models.SupervisionFilter{
		SupervisorID: c.Query("supervisorId"),
		TeacherID:    c.Query("teacherId"),
		StartDate:    start,
		EndDate:      end,
	}
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.SupervisionStatus(raw)
		filter.Status = &status
	}
	if raw := strings.ToUpper(c.Query("type")); raw != "" {
		kind := models.SupervisionType(raw)
		filter.Type = &kind
	}
	filter.Skip, filter.Take = page(c)

	items, total, err := h.supervisions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, total, filter.Skip, filter.Take)
}

// Stats godoc
// @Summary Supervision statistics
// @Tags Supervisions
// @Produce json
// @Security BearerAuth
// @Param supervisorId query string false "Supervisor ID"
// @Param teacherId query string false "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /supervisions/stats [get]
func (h *SupervisionHandler) Stats(c *gin.Context) {
	stats, err := h.supervisions.Stats(c.Request.Context(), c.Query("supervisorId"), c.Query("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Get supervision with assessments
// @Tags Supervisions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervision ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /supervisions/{id} [get]
func (h *SupervisionHandler) Get(c *gin.Context) {
	item, err := h.supervisions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create supervision
// @Tags Supervisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateSupervisionRequest true "Supervision payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Router /supervisions [post]
func (h *SupervisionHandler) Create(c *gin.Context) {
	var req models.CreateSupervisionRequest
	if !bindJSON(c, &req, "invalid supervision payload") {
		return
	}
	item, err := h.supervisions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update supervision
// @Tags Supervisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervision ID"
// @Param payload body models.UpdateSupervisionRequest true "Supervision payload"
// @Success 200 {object} response.Envelope
// @Router /supervisions/{id} [patch]
func (h *SupervisionHandler) Update(c *gin.Context) {
	var req models.UpdateSupervisionRequest
	if !bindJSON(c, &req, "invalid supervision payload") {
		return
	}
	item, err := h.supervisions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// UpdateStatus godoc
// @Summary Change supervision status
// @Tags Supervisions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervision ID"
// @Param status path string true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Router /supervisions/{id}/status/{status} [put]
func (h *SupervisionHandler) UpdateStatus(c *gin.Context) {
	status := models.SupervisionStatus(strings.ToUpper(c.Param("status")))
	item, err := h.supervisions.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete supervision
// @Tags Supervisions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervision ID"
// @Success 200 {object} response.Envelope
// @Router /supervisions/{id} [delete]
func (h *SupervisionHandler) Delete(c *gin.Context) {
	if err := h.supervisions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Supervision deleted successfully", nil)
}
