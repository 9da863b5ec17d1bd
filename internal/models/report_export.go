package models

import "time"

// ExportFormat enumerates supported report export formats.
type ExportFormat string

const (
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportStatus captures background export lifecycle states.
type ExportStatus string

const (
	ExportQueued     ExportStatus = "QUEUED"
	ExportProcessing ExportStatus = "PROCESSING"
	ExportFinished   ExportStatus = "FINISHED"
	ExportFailed     ExportStatus = "FAILED"
)

// ReportExport is a persisted export job for one report.
type ReportExport struct {
	ID           string       `db:"id" json:"id"`
	ReportID     string       `db:"report_id" json:"reportId"`
	Format       ExportFormat `db:"format" json:"format"`
	Status       ExportStatus `db:"status" json:"status"`
	ResultURL    *string      `db:"result_url" json:"resultUrl,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"errorMessage,omitempty"`
	CreatedBy    string       `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finishedAt,omitempty"`
}

// CreateReportExportRequest queues an export.
type CreateReportExportRequest struct {
	Format ExportFormat `json:"format" validate:"required,oneof=pdf csv xlsx"`
}

// ReportExportStatus is the polling view of an export.
type ReportExportStatus struct {
	ID          string       `json:"id"`
	ReportID    string       `json:"reportId"`
	Format      ExportFormat `json:"format"`
	Status      ExportStatus `json:"status"`
	DownloadURL *string      `json:"downloadUrl,omitempty"`
	Error       *string      `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	FinishedAt  *time.Time   `json:"finishedAt,omitempty"`
}

// ExportPayload is handed to the export worker.
type ExportPayload struct {
	ExportID string
	ReportID string
	Format   ExportFormat
}
