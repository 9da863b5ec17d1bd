package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
	"github.com/noah-isme/supervisi-api/pkg/export"
)

const (
	defaultUpcomingDays = 7
	upcomingLimit       = 20
	calendarEventLength = time.Hour
	defaultCalendarSpan = 30 * 24 * time.Hour
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error)
	ListRange(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error)
	ExistsAt(ctx context.Context, supervisorID, teacherID string, date time.Time, excludeID *string) (bool, error)
	Create(ctx context.Context, s *models.Schedule) error
	Update(ctx context.Context, s *models.Schedule) error
	UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus, notes *string) error
	Delete(ctx context.Context, id string) error
}

type supervisorProfiles interface {
	supervisorLookup
	FindByUserID(ctx context.Context, userID string) (*models.SupervisorDetail, error)
}

type teacherProfiles interface {
	teacherLookup
	FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error)
}

// ScheduleService manages planned supervision visits and their calendar views.
type ScheduleService struct {
	repo        scheduleRepository
	supervisors supervisorProfiles
	teachers    teacherProfiles
	ics         *export.ICSExporter
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(repo scheduleRepository, supervisors supervisorProfiles, teachers teacherProfiles, ics *export.ICSExporter, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ics == nil {
		ics = export.NewICSExporter("")
	}
	return &ScheduleService{
		repo:        repo,
		supervisors: supervisors,
		teachers:    teachers,
		ics:         ics,
		validator:   ensureValidator(validate),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns schedules ordered by date, earliest first.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	filter.Skip, filter.Take = models.NormalizePage(filter.Skip, filter.Take)
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, 0, badRequest(fmt.Sprintf("Invalid type: %s", *filter.Type))
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, badRequest(fmt.Sprintf("Invalid status: %s", *filter.Status))
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list schedules")
	}
	return items, total, nil
}

// Get returns one schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Schedule with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load schedule")
	}
	return item, nil
}

// scope restricts a filter to the principal's own profile. It returns false when a
// supervisor or teacher has no profile yet, in which case nothing is visible.
func (s *ScheduleService) scope(ctx context.Context, principal models.Principal, filter *models.ScheduleFilter) (bool, error) {
	switch principal.Role {
	case models.RoleSupervisor:
		profile, err := s.supervisors.FindByUserID(ctx, principal.UserID)
		if repository.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, appErrors.Internal(err, "failed to resolve supervisor profile")
		}
		filter.SupervisorID = profile.ID
	case models.RoleTeacher:
		profile, err := s.teachers.FindByUserID(ctx, principal.UserID)
		if repository.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, appErrors.Internal(err, "failed to resolve teacher profile")
		}
		filter.TeacherID = profile.ID
	}
	return true, nil
}

// Upcoming returns the caller's SCHEDULED visits within the next days.
func (s *ScheduleService) Upcoming(ctx context.Context, principal models.Principal, days int) ([]models.ScheduleDetail, error) {
	if days <= 0 {
		days = defaultUpcomingDays
	}
	now := s.now()
	end := now.AddDate(0, 0, days)
	status := models.ScheduleScheduled
	filter := models.ScheduleFilter{Status: &status, StartDate: &now, EndDate: &end, Take: upcomingLimit}
	visible, err := s.scope(ctx, principal, &filter)
	if err != nil {
		return nil, err
	}
	if !visible {
		return []models.ScheduleDetail{}, nil
	}
	items, err := s.repo.ListRange(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list upcoming schedules")
	}
	if items == nil {
		items = []models.ScheduleDetail{}
	}
	return items, nil
}

// Calendar projects the caller's schedules in [start, end] as one-hour events.
// Zero bounds default to the next thirty days.
func (s *ScheduleService) Calendar(ctx context.Context, principal models.Principal, start, end time.Time) ([]models.CalendarEvent, error) {
	if start.IsZero() {
		start = s.now()
	}
	if end.IsZero() {
		end = start.Add(defaultCalendarSpan)
	}
	if end.Before(start) {
		return nil, badRequest("end must not be before start")
	}
	filter := models.ScheduleFilter{StartDate: &start, EndDate: &end}
	visible, err := s.scope(ctx, principal, &filter)
	if err != nil {
		return nil, err
	}
	events := []models.CalendarEvent{}
	if !visible {
		return events, nil
	}
	items, err := s.repo.ListRange(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list calendar schedules")
	}
	for _, item := range items {
		events = append(events, models.CalendarEvent{
			ID:          item.ID,
			Title:       fmt.Sprintf("%s - %s", item.Type, item.TeacherName),
			Start:       item.ScheduledDate,
			End:         item.ScheduledDate.Add(calendarEventLength),
			Type:        item.Type,
			Status:      item.Status,
			Location:    item.Location,
			Description: item.Description,
			Supervisor:  item.SupervisorName,
			Teacher:     item.TeacherName,
		})
	}
	return events, nil
}

// CalendarICS renders the same events as Calendar as an iCalendar feed.
func (s *ScheduleService) CalendarICS(ctx context.Context, principal models.Principal, start, end time.Time) ([]byte, error) {
	events, err := s.Calendar(ctx, principal, start, end)
	if err != nil {
		return nil, err
	}
	entries := make([]export.CalendarEvent, 0, len(events))
	for _, ev := range events {
		entry := export.CalendarEvent{
			UID:       ev.ID + "@supervisi",
			Summary:   ev.Title,
			Start:     ev.Start,
			End:       ev.End,
			Cancelled: ev.Status == models.ScheduleCancelled,
		}
		if ev.Location != nil {
			entry.Location = *ev.Location
		}
		if ev.Description != nil {
			entry.Description = *ev.Description
		}
		entries = append(entries, entry)
	}
	data, err := s.ics.Render("Jadwal Supervisi", entries)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render calendar")
	}
	return data, nil
}

func (s *ScheduleService) ensureFreeSlot(ctx context.Context, supervisorID, teacherID string, date time.Time, excludeID *string) error {
	exists, err := s.repo.ExistsAt(ctx, supervisorID, teacherID, date, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check schedule date")
	}
	if exists {
		return conflict("Schedule already exists for this teacher at this time")
	}
	return nil
}

// Create plans a new visit.
func (s *ScheduleService) Create(ctx context.Context, req models.CreateScheduleRequest) (*models.ScheduleDetail, error) {
	if err := validatePayload(s.validator, req, "invalid schedule payload"); err != nil {
		return nil, err
	}
	if req.ScheduledDate.IsZero() {
		return nil, appErrors.Validation(nil, "invalid schedule payload", "scheduledDate is required")
	}
	supervisor, err := requireSupervisor(ctx, s.supervisors, req.SupervisorID)
	if err != nil {
		return nil, err
	}
	teacher, err := requireTeacher(ctx, s.teachers, req.TeacherID)
	if err != nil {
		return nil, err
	}
	date := req.ScheduledDate.UTC()
	if err := s.ensureFreeSlot(ctx, req.SupervisorID, req.TeacherID, date, nil); err != nil {
		return nil, err
	}

	item := &models.Schedule{
		SupervisorID:  req.SupervisorID,
		TeacherID:     req.TeacherID,
		ScheduledDate: date,
		Type:          req.Type,
		Location:      req.Location,
		Description:   req.Description,
		Status:        req.Status,
		Notes:         req.Notes,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("Schedule already exists for this teacher at this time")
		}
		return nil, appErrors.Internal(err, "failed to create schedule")
	}
	return &models.ScheduleDetail{Schedule: *item, SupervisorName: supervisor.Name, TeacherName: teacher.Name}, nil
}

// Update applies a partial update. A changed date is re-checked for collisions.
func (s *ScheduleService) Update(ctx context.Context, id string, req models.UpdateScheduleRequest) (*models.ScheduleDetail, error) {
	if err := validatePayload(s.validator, req, "invalid schedule payload"); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	item := existing.Schedule
	if req.ScheduledDate != nil {
		date := req.ScheduledDate.UTC()
		if !date.Equal(item.ScheduledDate) {
			if err := s.ensureFreeSlot(ctx, item.SupervisorID, item.TeacherID, date, &id); err != nil {
				return nil, err
			}
		}
		item.ScheduledDate = date
	}
	if req.Type != nil {
		item.Type = *req.Type
	}
	if req.Location != nil {
		item.Location = req.Location
	}
	if req.Description != nil {
		item.Description = req.Description
	}
	if req.Status != nil {
		item.Status = *req.Status
	}
	if req.Notes != nil {
		item.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, &item); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("Schedule already exists for this teacher at this time")
		}
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Schedule with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update schedule")
	}
	existing.Schedule = item
	return existing, nil
}

// UpdateStatus changes the status and, when given, the notes.
func (s *ScheduleService) UpdateStatus(ctx context.Context, id string, req models.UpdateScheduleStatusRequest) (*models.ScheduleDetail, error) {
	if err := validatePayload(s.validator, req, "invalid schedule status"); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status, req.Notes); err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Schedule with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update schedule status")
	}
	existing.Status = req.Status
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	return existing, nil
}

// Delete removes a schedule.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound(fmt.Sprintf("Schedule with ID %s not found", id))
		}
		return appErrors.Internal(err, "failed to delete schedule")
	}
	return nil
}
