package models

import "time"

// ScheduleType classifies a planned visit.
type ScheduleType string

const (
	ScheduleObservation ScheduleType = "OBSERVATION"
	ScheduleMeeting     ScheduleType = "MEETING"
	ScheduleEvaluation  ScheduleType = "EVALUATION"
	ScheduleFollowUp    ScheduleType = "FOLLOW_UP"
)

// ScheduleTypes lists every schedule type.
var ScheduleTypes = []ScheduleType{ScheduleObservation, ScheduleMeeting, ScheduleEvaluation, ScheduleFollowUp}

func (t ScheduleType) Valid() bool {
	for _, v := range ScheduleTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ScheduleStatus tracks a planned visit.
type ScheduleStatus string

const (
	ScheduleScheduled   ScheduleStatus = "SCHEDULED"
	ScheduleCompleted   ScheduleStatus = "COMPLETED"
	ScheduleCancelled   ScheduleStatus = "CANCELLED"
	ScheduleRescheduled ScheduleStatus = "RESCHEDULED"
)

// ScheduleStatuses lists every schedule status.
var ScheduleStatuses = []ScheduleStatus{ScheduleScheduled, ScheduleCompleted, ScheduleCancelled, ScheduleRescheduled}

func (s ScheduleStatus) Valid() bool {
	for _, v := range ScheduleStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Schedule is a planned supervision appointment.
type Schedule struct {
	ID            string         `db:"id" json:"id"`
	SupervisorID  string         `db:"supervisor_id" json:"supervisorId"`
	TeacherID     string         `db:"teacher_id" json:"teacherId"`
	ScheduledDate time.Time      `db:"scheduled_date" json:"scheduledDate"`
	Type          ScheduleType   `db:"type" json:"type"`
	Location      *string        `db:"location" json:"location,omitempty"`
	Description   *string        `db:"description" json:"description,omitempty"`
	Status        ScheduleStatus `db:"status" json:"status"`
	Notes         *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// ScheduleDetail adds participant names.
type ScheduleDetail struct {
	Schedule
	SupervisorName string `db:"supervisor_name" json:"supervisorName"`
	TeacherName    string `db:"teacher_name" json:"teacherName"`
}

// ScheduleFilter captures list options.
type ScheduleFilter struct {
	SupervisorID string
	TeacherID    string
	Type         *ScheduleType
	Status       *ScheduleStatus
	StartDate    *time.Time
	EndDate      *time.Time
	Skip         int
	Take         int
	SortAsc      bool
}

// CreateScheduleRequest plans a visit.
type CreateScheduleRequest struct {
	SupervisorID  string         `json:"supervisorId" validate:"required"`
	TeacherID     string         `json:"teacherId" validate:"required"`
	ScheduledDate time.Time      `json:"scheduledDate" validate:"required"`
	Type          ScheduleType   `json:"type" validate:"required,oneof=OBSERVATION MEETING EVALUATION FOLLOW_UP"`
	Location      *string        `json:"location"`
	Description   *string        `json:"description"`
	Status        ScheduleStatus `json:"status" validate:"omitempty,oneof=SCHEDULED COMPLETED CANCELLED RESCHEDULED"`
	Notes         *string        `json:"notes"`
}

// UpdateScheduleRequest is a partial update.
type UpdateScheduleRequest struct {
	ScheduledDate *time.Time      `json:"scheduledDate"`
	Type          *ScheduleType   `json:"type" validate:"omitempty,oneof=OBSERVATION MEETING EVALUATION FOLLOW_UP"`
	Location      *string         `json:"location"`
	Description   *string         `json:"description"`
	Status        *ScheduleStatus `json:"status" validate:"omitempty,oneof=SCHEDULED COMPLETED CANCELLED RESCHEDULED"`
	Notes         *string         `json:"notes"`
}

// UpdateScheduleStatusRequest changes status and optionally records notes.
type UpdateScheduleStatusRequest struct {
	Status ScheduleStatus `json:"status" validate:"required,oneof=SCHEDULED COMPLETED CANCELLED RESCHEDULED"`
	Notes  *string        `json:"notes"`
}

// CalendarEvent is a schedule projected for calendar views.
type CalendarEvent struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Type        ScheduleType   `json:"type"`
	Status      ScheduleStatus `json:"status"`
	Location    *string        `json:"location,omitempty"`
	Description *string        `json:"description,omitempty"`
	Supervisor  string         `json:"supervisor"`
	Teacher     string         `json:"teacher"`
}
