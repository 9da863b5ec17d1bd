package models

import "time"

// ReportStatus tracks the publication state of a report.
type ReportStatus string

const (
	ReportDraft     ReportStatus = "DRAFT"
	ReportPublished ReportStatus = "PUBLISHED"
	ReportArchived  ReportStatus = "ARCHIVED"
)

// ReportStatuses lists every report status.
var ReportStatuses = []ReportStatus{ReportDraft, ReportPublished, ReportArchived}

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	for _, v := range ReportStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Report is a monthly supervision report for a teacher.
type Report struct {
	ID              string       `db:"id" json:"id"`
	SupervisorID    string       `db:"supervisor_id" json:"supervisorId"`
	TeacherID       string       `db:"teacher_id" json:"teacherId"`
	Title           string       `db:"title" json:"title"`
	Content         string       `db:"content" json:"content"`
	Period          string       `db:"period" json:"period"`
	AverageScore    float64      `db:"average_score" json:"averageScore"`
	Recommendations *string      `db:"recommendations" json:"recommendations,omitempty"`
	Status          ReportStatus `db:"status" json:"status"`
	GeneratedAt     time.Time    `db:"generated_at" json:"generatedAt"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updatedAt"`
}

// ReportDetail adds participant names.
type ReportDetail struct {
	Report
	SupervisorName string `db:"supervisor_name" json:"supervisorName"`
	TeacherName    string `db:"teacher_name" json:"teacherName"`
}

// ReportFilter captures list options.
type ReportFilter struct {
	SupervisorID string
	TeacherID    string
	Period       string
	Status       *ReportStatus
	Skip         int
	Take         int
}

// CreateReportRequest stores a manually written report. AverageScore is on a 0-100 scale.
type CreateReportRequest struct {
	SupervisorID    string       `json:"supervisorId" validate:"required"`
	TeacherID       string       `json:"teacherId" validate:"required"`
	Title           string       `json:"title" validate:"required"`
	Content         string       `json:"content" validate:"required"`
	Period          string       `json:"period" validate:"required,period"`
	AverageScore    *float64     `json:"averageScore" validate:"omitempty,min=0,max=100"`
	Recommendations *string      `json:"recommendations"`
	Status          ReportStatus `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
}

// GenerateReportRequest asks the aggregator to build a report from assessments.
type GenerateReportRequest struct {
	SupervisorID string `json:"supervisorId" validate:"required"`
	TeacherID    string `json:"teacherId" validate:"required"`
	Period       string `json:"period" validate:"required,period"`
	Title        string `json:"title" validate:"required"`
}

// UpdateReportRequest is a partial update.
type UpdateReportRequest struct {
	Title           *string       `json:"title" validate:"omitempty,min=1"`
	Content         *string       `json:"content" validate:"omitempty,min=1"`
	Period          *string       `json:"period" validate:"omitempty,period"`
	AverageScore    *float64      `json:"averageScore" validate:"omitempty,min=0,max=100"`
	Recommendations *string       `json:"recommendations"`
	Status          *ReportStatus `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
}

// ReportStats aggregates reports by status and period.
type ReportStats struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
	ByPeriod     map[string]int `json:"byPeriod"`
	AverageScore float64        `json:"averageScore"`
}

// AspectSummary is the per-aspect average in first-seen order.
type AspectSummary struct {
	Aspect  string  `json:"aspect"`
	Scores  []int   `json:"scores"`
	Average float64 `json:"average"`
}
