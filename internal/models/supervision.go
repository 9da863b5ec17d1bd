package models

import "time"

// SupervisionType is the delivery mode of a supervision session.
type SupervisionType string

const (
	SupervisionOffline SupervisionType = "OFFLINE"
	SupervisionOnline  SupervisionType = "ONLINE"
	SupervisionHybrid  SupervisionType = "HYBRID"
)

// SupervisionTypes lists every supervision type.
var SupervisionTypes = []SupervisionType{SupervisionOffline, SupervisionOnline, SupervisionHybrid}

// SupervisionStatus tracks the lifecycle of a session.
type SupervisionStatus string

const (
	SupervisionPending     SupervisionStatus = "PENDING"
	SupervisionCompleted   SupervisionStatus = "COMPLETED"
	SupervisionRescheduled SupervisionStatus = "RESCHEDULED"
	SupervisionCancelled   SupervisionStatus = "CANCELLED"
)

// SupervisionStatuses lists every supervision status.
var SupervisionStatuses = []SupervisionStatus{SupervisionPending, SupervisionCompleted, SupervisionRescheduled, SupervisionCancelled}

// Valid reports whether s is a known status.
func (s SupervisionStatus) Valid() bool {
	for _, v := range SupervisionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Supervision is a single observation session of a teacher by a supervisor.
type Supervision struct {
	ID           string            `db:"id" json:"id"`
	SupervisorID string            `db:"supervisor_id" json:"supervisorId"`
	TeacherID    string            `db:"teacher_id" json:"teacherId"`
	Type         SupervisionType   `db:"type" json:"type"`
	Date         time.Time         `db:"date" json:"date"`
	Notes        *string           `db:"notes" json:"notes,omitempty"`
	Status       SupervisionStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updatedAt"`
}

// SupervisionDetail adds participant names and, for single reads, the assessments.
type SupervisionDetail struct {
	Supervision
	SupervisorName string       `db:"supervisor_name" json:"supervisorName"`
	TeacherName    string       `db:"teacher_name" json:"teacherName"`
	Assessments    []Assessment `db:"-" json:"assessments,omitempty"`
}

// SupervisionFilter captures list options.
type SupervisionFilter struct {
	SupervisorID string
	TeacherID    string
	Status       *SupervisionStatus
	Type         *SupervisionType
	StartDate    *time.Time
	EndDate      *time.Time
	Skip         int
	Take         int
}

// CreateSupervisionRequest schedules a new session.
type CreateSupervisionRequest struct {
	SupervisorID string            `json:"supervisorId" validate:"required"`
	TeacherID    string            `json:"teacherId" validate:"required"`
	Type         SupervisionType   `json:"type" validate:"required,oneof=OFFLINE ONLINE HYBRID"`
	Date         time.Time         `json:"date" validate:"required"`
	Notes        *string           `json:"notes"`
	Status       SupervisionStatus `json:"status" validate:"omitempty,oneof=PENDING COMPLETED RESCHEDULED CANCELLED"`
}

// UpdateSupervisionRequest is a partial update.
type UpdateSupervisionRequest struct {
	Type   *SupervisionType   `json:"type" validate:"omitempty,oneof=OFFLINE ONLINE HYBRID"`
	Date   *time.Time         `json:"date"`
	Notes  *string            `json:"notes"`
	Status *SupervisionStatus `json:"status" validate:"omitempty,oneof=PENDING COMPLETED RESCHEDULED CANCELLED"`
}

// SupervisionStats aggregates sessions by status, type and month (YYYY-MM).
type SupervisionStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	ByType   map[string]int `json:"byType"`
	ByMonth  map[string]int `json:"byMonth"`
}

// Valid reports whether t is a known type.
func (t SupervisionType) Valid() bool {
	for _, v := range SupervisionTypes {
		if t == v {
			return true
		}
	}
	return false
}
