package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervisi-api/internal/middleware"
	"github.com/noah-isme/supervisi-api/internal/models"
)

type fakeScheduleSrv struct {
	scheduleService
	lastFilter    models.ScheduleFilter
	lastPrincipal models.Principal
	lastDays      int
	lastStart     time.Time
	lastEnd       time.Time
}

func (f *fakeScheduleSrv) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	f.lastFilter = filter
	return nil, 0, nil
}

func (f *fakeScheduleSrv) Upcoming(ctx context.Context, principal models.Principal, days int) ([]models.ScheduleDetail, error) {
	f.lastPrincipal = principal
	f.lastDays = days
	return []models.ScheduleDetail{}, nil
}

func (f *fakeScheduleSrv) CalendarICS(ctx context.Context, principal models.Principal, start, end time.Time) ([]byte, error) {
	f.lastPrincipal = principal
	f.lastStart, f.lastEnd = start, end
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), nil
}

func TestScheduleHandlerListFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeScheduleSrv{}
	handler := NewScheduleHandler(srv)

	c, w := newGinContext(http.MethodGet, "/schedules?teacherId=t-1&type=meeting&startDate=2024-03-01&endDate=2024-03-31T23:59:59Z", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t-1", srv.lastFilter.TeacherID)
	require.NotNil(t, srv.lastFilter.Type)
	assert.Equal(t, models.ScheduleMeeting, *srv.lastFilter.Type)
	require.NotNil(t, srv.lastFilter.StartDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *srv.lastFilter.StartDate)
	require.NotNil(t, srv.lastFilter.EndDate)
	assert.Equal(t, 31, srv.lastFilter.EndDate.Day())
	assert.Equal(t, models.DefaultTake, srv.lastFilter.Take)
}

func TestScheduleHandlerListRejectsBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewScheduleHandler(&fakeScheduleSrv{})

	c, w := newGinContext(http.MethodGet, "/schedules?startDate=yesterday", nil)

	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerUpcomingUsesPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeScheduleSrv{}
	handler := NewScheduleHandler(srv)

	c, w := newGinContext(http.MethodGet, "/schedules/upcoming?days=14", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-t", Role: models.RoleTeacher})

	handler.Upcoming(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Principal{UserID: "u-t", Role: models.RoleTeacher}, srv.lastPrincipal)
	assert.Equal(t, 14, srv.lastDays)
}

func TestScheduleHandlerCalendarICS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeScheduleSrv{}
	handler := NewScheduleHandler(srv)

	c, w := newGinContext(http.MethodGet, "/schedules/calendar.ics", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-s", Role: models.RoleSupervisor})

	handler.CalendarICS(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.True(t, srv.lastStart.IsZero())
	assert.True(t, srv.lastEnd.IsZero())
}
