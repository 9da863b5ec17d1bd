package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/service"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

// SupervisorHandler exposes supervisor profile endpoints.
type SupervisorHandler struct {
	supervisors *service.SupervisorService
}

// NewSupervisorHandler constructs SupervisorHandler.
func NewSupervisorHandler(supervisors *service.SupervisorService) *SupervisorHandler {
	return &SupervisorHandler{supervisors: supervisors}
}

// List godoc
// @Summary List supervisors
// @Tags Supervisors
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name, email or NIP"
// @Param skip query int false "Offset"
// @Param take query int false "Page size (max 100)"
// @Success 200 {object} response.ListEnvelope
// @Router /supervisors [get]
func (h *SupervisorHandler) List(c *gin.Context) {
	filter := models.SupervisorFilter{Search: strings.TrimSpace(c.Query("search"))}
	filter.Skip, filter.Take = page(c)

	items, total, err := h.supervisors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, total, filter.Skip, filter.Take)
}

// Get godoc
// @Summary Get supervisor with assigned teachers
// @Tags Supervisors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervisor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /supervisors/{id} [get]
func (h *SupervisorHandler) Get(c *gin.Context) {
	supervisor, err := h.supervisors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, supervisor, nil)
}

// Create godoc
// @Summary Create supervisor profile
// @Tags Supervisors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateSupervisorRequest true "Supervisor payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Router /supervisors [post]
func (h *SupervisorHandler) Create(c *gin.Context) {
	var req models.CreateSupervisorRequest
	if !bindJSON(c, &req, "invalid supervisor payload") {
		return
	}
	supervisor, err := h.supervisors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, supervisor)
}

// Update godoc
// @Summary Update supervisor profile
// @Tags Supervisors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervisor ID"
// @Param payload body models.UpdateSupervisorRequest true "Supervisor payload"
// @Success 200 {object} response.Envelope
// @Router /supervisors/{id} [patch]
func (h *SupervisorHandler) Update(c *gin.Context) {
	var req models.UpdateSupervisorRequest
	if !bindJSON(c, &req, "invalid supervisor payload") {
		return
	}
	supervisor, err := h.supervisors.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, supervisor, nil)
}

// Delete godoc
// @Summary Delete supervisor profile
// @Tags Supervisors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervisor ID"
// @Success 200 {object} response.Envelope
// @Router /supervisors/{id} [delete]
func (h *SupervisorHandler) Delete(c *gin.Context) {
	if err := h.supervisors.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Supervisor deleted successfully", nil)
}

// Teachers godoc
// @Summary Teachers assigned to a supervisor
// @Tags Supervisors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervisor ID"
// @Success 200 {object} response.Envelope
// @Router /supervisors/{id}/teachers [get]
func (h *SupervisorHandler) Teachers(c *gin.Context) {
	teachers, err := h.supervisors.AssignedTeachers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// AssignTeachers godoc
// @Summary Replace the supervisor's teacher set
// @Tags Supervisors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Supervisor ID"
// @Param payload body models.AssignTeachersRequest true "Teacher IDs"
// @Success 200 {object} response.Envelope
// @Router /supervisors/{id}/assign-teachers [put]
func (h *SupervisorHandler) AssignTeachers(c *gin.Context) {
	var req models.AssignTeachersRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	supervisor, err := h.supervisors.AssignTeachers(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Teachers assigned successfully", supervisor)
}
