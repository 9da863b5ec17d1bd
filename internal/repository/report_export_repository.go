package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/supervisi-api/internal/models"
)

const exportColumns = `id, report_id, format, status, result_url, error_message, created_by, created_at, finished_at`

// ReportExportRepository persists export job metadata.
type ReportExportRepository struct {
	db *sqlx.DB
}

// NewReportExportRepository constructs the repository.
func NewReportExportRepository(db *sqlx.DB) *ReportExportRepository {
	return &ReportExportRepository{db: db}
}

// Create inserts a new export row in QUEUED state.
func (r *ReportExportRepository) Create(ctx context.Context, job *models.ReportExport) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_exports (` + exportColumns + `)
VALUES (:id, :report_id, :format, :status, :result_url, :error_message, :created_by, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report export: %w", err)
	}
	return nil
}

// GetByID returns an export row.
func (r *ReportExportRepository) GetByID(ctx context.Context, id string) (*models.ReportExport, error) {
	var job models.ReportExport
	if err := r.db.GetContext(ctx, &job, `SELECT `+exportColumns+` FROM report_exports WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report export: %w", err)
	}
	return &job, nil
}

// ExportUpdate lists the mutable fields; nil fields are left untouched.
type ExportUpdate struct {
	Status       *models.ExportStatus
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for an export row.
func (r *ReportExportRepository) Update(ctx context.Context, id string, params ExportUpdate) error {
	var set []string
	var args []interface{}
	assign := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.Status != nil {
		assign("status", *params.Status)
	}
	if params.ResultURL != nil {
		assign("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		assign("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		assign("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE report_exports SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report export: %w", err)
	}
	return nil
}

// ListUnfinished returns QUEUED or PROCESSING exports, oldest first, for restart recovery.
func (r *ReportExportRepository) ListUnfinished(ctx context.Context, limit int) ([]models.ReportExport, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + exportColumns + ` FROM report_exports WHERE status IN ('QUEUED', 'PROCESSING') ORDER BY created_at ASC LIMIT $1`
	var jobs []models.ReportExport
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list unfinished exports: %w", err)
	}
	return jobs, nil
}
