package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/service"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

// AssessmentHandler exposes per-aspect scoring endpoints.
type AssessmentHandler struct {
	assessments *service.AssessmentService
}

// NewAssessmentHandler constructs AssessmentHandler.
func NewAssessmentHandler(assessments *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// List godoc
// @Summary List assessments
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param teacherId query string false "Teacher ID"
// @Param supervisorId query string false "Supervisor ID"
// @Param supervisionId query string false "Supervision ID"
// @Param startDate query string false "Supervision date lower bound"
// @Param endDate query string false "Supervision date upper bound"
// @Param skip query int false "Offset"
// @Param take query int false "Page size (max 100)"
// @Success 200 {object} response.ListEnvelope
// @Router /assessments [get]
func (h *AssessmentHandler) List(c *gin.Context) {
	start, end, ok := queryRange(c)
	if !ok {
		return
	}
	filter := models.AssessmentFilter{
		TeacherID:     c.Query("teacherId"),
		SupervisorID:  c.Query("supervisorId"),
		SupervisionID: c.Query("supervisionId"),
		StartDate:     start,
		EndDate:       end,
	}
	filter.Skip, filter.Take = page(c)

	items, total, err := h.assessments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, total, filter.Skip, filter.Take)
}

// BySupervision godoc
// @Summary Assessments of one supervision
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param supervisionId path string true "Supervision ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/supervision/{supervisionId} [get]
func (h *AssessmentHandler) BySupervision(c *gin.Context) {
	items, err := h.assessments.ListBySupervision(c.Request.Context(), c.Param("supervisionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// TeacherSummary godoc
// @Summary Assessment summary for a teacher
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/teacher/{teacherId}/summary [get]
func (h *AssessmentHandler) TeacherSummary(c *gin.Context) {
	summary, err := h.assessments.TeacherSummary(c.Request.Context(), c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Get assessment
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) Get(c *gin.Context) {
	item, err := h.assessments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Score one aspect
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Router /assessments [post]
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req models.CreateAssessmentRequest
	if !bindJSON(c, &req, "invalid assessment payload") {
		return
	}
	item, err := h.assessments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// CreateMultiple godoc
// @Summary Score several aspects
// @Description Items are created one by one; failures do not stop the batch
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateMultipleAssessmentsRequest true "Assessments"
// @Success 201 {object} response.Envelope
// @Router /assessments/multiple [post]
func (h *AssessmentHandler) CreateMultiple(c *gin.Context) {
	var req models.CreateMultipleAssessmentsRequest
	if !bindJSON(c, &req, "invalid assessments payload") {
		return
	}
	result, err := h.assessments.CreateMultiple(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Update godoc
// @Summary Update assessment
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param payload body models.UpdateAssessmentRequest true "Assessment payload"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id} [patch]
func (h *AssessmentHandler) Update(c *gin.Context) {
	var req models.UpdateAssessmentRequest
	if !bindJSON(c, &req, "invalid assessment payload") {
		return
	}
	item, err := h.assessments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete assessment
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/{id} [delete]
func (h *AssessmentHandler) Delete(c *gin.Context) {
	if err := h.assessments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Assessment deleted successfully", nil)
}

// DeleteBySupervision godoc
// @Summary Delete every assessment of a supervision
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param supervisionId path string true "Supervision ID"
// @Success 200 {object} response.Envelope
// @Router /assessments/supervision/{supervisionId} [delete]
func (h *AssessmentHandler) DeleteBySupervision(c *gin.Context) {
	deleted, err := h.assessments.DeleteBySupervision(c.Request.Context(), c.Param("supervisionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Assessments deleted successfully", gin.H{"deleted": deleted})
}
