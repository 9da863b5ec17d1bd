package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/supervisi-api/internal/models"
)

const reportDetailSelect = `SELECT r.id, r.supervisor_id, r.teacher_id, r.title, r.content, r.period, r.average_score, r.recommendations, r.status,
r.generated_at, r.created_at, r.updated_at,
su.name AS supervisor_name, tu.name AS teacher_name
FROM reports r
JOIN supervisors s ON s.id = r.supervisor_id
JOIN users su ON su.id = s.user_id
JOIN teachers t ON t.id = r.teacher_id
JOIN users tu ON tu.id = t.user_id`

// ReportRepository persists supervision reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// List returns reports ordered by generation time, newest first.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.ReportDetail, int, error) {
	w := &where{}
	if filter.SupervisorID != "" {
		w.add("r.supervisor_id = $%d", filter.SupervisorID)
	}
	if filter.TeacherID != "" {
		w.add("r.teacher_id = $%d", filter.TeacherID)
	}
	if filter.Period != "" {
		w.add("r.period = $%d", filter.Period)
	}
	if filter.Status != nil {
		w.add("r.status = $%d", *filter.Status)
	}

	query := reportDetailSelect + w.sql() + " ORDER BY r.generated_at DESC" + page(filter.Skip, filter.Take)
	var items []models.ReportDetail
	if err := r.db.SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reports r"+w.sql(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return items, total, nil
}

// ListByTeacher returns a teacher's reports ordered by period, newest first.
func (r *ReportRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.ReportDetail, error) {
	var items []models.ReportDetail
	if err := r.db.SelectContext(ctx, &items, reportDetailSelect+" WHERE r.teacher_id = $1 ORDER BY r.period DESC", teacherID); err != nil {
		return nil, fmt.Errorf("list teacher reports: %w", err)
	}
	return items, nil
}

// FindByID returns one report with participant names.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.ReportDetail, error) {
	var item models.ReportDetail
	if err := r.db.GetContext(ctx, &item, reportDetailSelect+" WHERE r.id = $1 LIMIT 1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &item, nil
}

// ExistsForPeriod reports whether the (supervisor, teacher, period) triple is taken.
func (r *ReportRepository) ExistsForPeriod(ctx context.Context, supervisorID, teacherID, period string, excludeID *string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM reports WHERE supervisor_id = $1 AND teacher_id = $2 AND period = $3`
	args := []interface{}{supervisorID, teacherID, period}
	if excludeID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check report period: %w", err)
	}
	return exists, nil
}

// Create inserts a report.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = models.ReportDraft
	}
	now := time.Now().UTC()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	report.CreatedAt = now
	report.UpdatedAt = now
	const query = `INSERT INTO reports (id, supervisor_id, teacher_id, title, content, period, average_score, recommendations, status, generated_at, created_at, updated_at)
VALUES (:id, :supervisor_id, :teacher_id, :title, :content, :period, :average_score, :recommendations, :status, :generated_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// Update writes the mutable columns.
func (r *ReportRepository) Update(ctx context.Context, report *models.Report) error {
	report.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reports SET title = :title, content = :content, period = :period, average_score = :average_score,
recommendations = :recommendations, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, report)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return expectRow(res)
}

// UpdateStatus sets only the status column.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reports SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return expectRow(res)
}

// Delete removes a report.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return expectRow(res)
}

// ReportStatRow is the per-report projection used for stats.
type ReportStatRow struct {
	Status       models.ReportStatus `db:"status"`
	Period       string              `db:"period"`
	AverageScore float64             `db:"average_score"`
}

// StatRows returns status, period and score for every report, optionally for one supervisor.
func (r *ReportRepository) StatRows(ctx context.Context, supervisorID string) ([]ReportStatRow, error) {
	w := &where{}
	if supervisorID != "" {
		w.add("supervisor_id = $%d", supervisorID)
	}
	var rows []ReportStatRow
	if err := r.db.SelectContext(ctx, &rows, "SELECT status, period, average_score FROM reports"+w.sql(), w.args...); err != nil {
		return nil, fmt.Errorf("report stats: %w", err)
	}
	return rows, nil
}
