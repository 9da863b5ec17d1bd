package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error)
	Get(ctx context.Context, id string) (*models.ScheduleDetail, error)
	Upcoming(ctx context.Context, principal models.Principal, days int) ([]models.ScheduleDetail, error)
	Calendar(ctx context.Context, principal models.Principal, start, end time.Time) ([]models.CalendarEvent, error)
	CalendarICS(ctx context.Context, principal models.Principal, start, end time.Time) ([]byte, error)
	Create(ctx context.Context, req models.CreateScheduleRequest) (*models.ScheduleDetail, error)
	Update(ctx context.Context, id string, req models.UpdateScheduleRequest) (*models.ScheduleDetail, error)
	UpdateStatus(ctx context.Context, id string, req models.UpdateScheduleStatusRequest) (*models.ScheduleDetail, error)
	Delete(ctx context.Context, id string) error
}

// ScheduleHandler exposes supervision planning endpoints.
type ScheduleHandler struct {
	schedules scheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules scheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param supervisorId query string false "Supervisor ID"
// @Param teacherId query string false "Teacher ID"
// @Param type query string false "OBSERVATION, MEETING, EVALUATION or FOLLOW_UP"
// @Param status query string false "SCHEDULED, COMPLETED, CANCELLED or RESCHEDULED"
// @Param startDate query string false "Inclusive lower bound"
// @Param endDate query string false "Inclusive upper bound"
// @Param skip query int false "Offset"
// @Param take query int false "Page size (max 100)"
// @Success 200 {object} response.ListEnvelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	start, end, ok := queryRange(c)
	if !ok {
		return
	}
	filter := models.ScheduleFilter{
		SupervisorID: c.Query("supervisorId"),
		TeacherID:    c.Query("teacherId"),
		StartDate:    start,
		EndDate:      end,
	}
	if raw := strings.ToUpper(c.Query("type")); raw != "" {
		kind := models.ScheduleType(raw)
		filter.Type = &kind
	}
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		status := models.ScheduleStatus(raw)
		filter.Status = &status
	}
	filter.Skip, filter.Take = page(c)

	items, total, err := h.schedules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, total, filter.Skip, filter.Take)
}

// Upcoming godoc
// @Summary Upcoming visits for the caller
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param days query int false "Look-ahead window in days (default 7)"
// @Success 200 {object} response.Envelope
// @Router /schedules/upcoming [get]
func (h *ScheduleHandler) Upcoming(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	days, _ := strconv.Atoi(c.Query("days"))

	items, err := h.schedules.Upcoming(c.Request.Context(), p, days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

func calendarBounds(c *gin.Context) (time.Time, time.Time, bool) {
	start, end, ok := queryRange(c)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	var from, to time.Time
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}
	return from, to, true
}

// Calendar godoc
// @Summary Calendar events for the caller
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "Defaults to now"
// @Param endDate query string false "Defaults to 30 days after start"
// @Success 200 {object} response.Envelope
// @Router /schedules/calendar [get]
func (h *ScheduleHandler) Calendar(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	start, end, ok := calendarBounds(c)
	if !ok {
		return
	}

	events, err := h.schedules.Calendar(c.Request.Context(), p, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// CalendarICS godoc
// @Summary iCalendar feed for the caller
// @Tags Schedules
// @Produce text/calendar
// @Security BearerAuth
// @Param startDate query string false "Defaults to now"
// @Param endDate query string false "Defaults to 30 days after start"
// @Success 200 {string} string "VCALENDAR"
// @Router /schedules/calendar.ics [get]
func (h *ScheduleHandler) CalendarICS(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	start, end, ok := calendarBounds(c)
	if !ok {
		return
	}

	body, err := h.schedules.CalendarICS(c.Request.Context(), p, start, end)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", `attachment; filename="jadwal-supervisi.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

// Get godoc
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	item, err := h.schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Plan a visit
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req models.CreateScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	item, err := h.schedules.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Param payload body models.UpdateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [patch]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req models.UpdateScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	item, err := h.schedules.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// UpdateStatus godoc
// @Summary Change schedule status
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Param payload body models.UpdateScheduleStatusRequest true "Status and notes"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/status [put]
func (h *ScheduleHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateScheduleStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	item, err := h.schedules.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete schedule
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.schedules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Schedule deleted successfully", nil)
}
