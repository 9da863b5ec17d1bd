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

const scheduleDetailSelect = `SELECT sc.id, sc.supervisor_id, sc.teacher_id, sc.scheduled_date, sc.type, sc.location, sc.description, sc.status, sc.notes, sc.created_at, sc.updated_at,
su.name AS supervisor_name, tu.name AS teacher_name
FROM schedules sc
JOIN supervisors s ON s.id = sc.supervisor_id
JOIN users su ON su.id = s.user_id
JOIN teachers t ON t.id = sc.teacher_id
JOIN users tu ON tu.id = t.user_id`

// ScheduleRepository persists planned supervision visits.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func scheduleWhere(filter models.ScheduleFilter) *where {
	w := &where{}
	if filter.SupervisorID != "" {
		w.add("sc.supervisor_id = $%d", filter.SupervisorID)
	}
	if filter.TeacherID != "" {
		w.add("sc.teacher_id = $%d", filter.TeacherID)
	}
	if filter.Type != nil {
		w.add("sc.type = $%d", *filter.Type)
	}
	if filter.Status != nil {
		w.add("sc.status = $%d", *filter.Status)
	}
	if filter.StartDate != nil {
		w.add("sc.scheduled_date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		w.add("sc.scheduled_date <= $%d", *filter.EndDate)
	}
	return w
}

// List returns schedules ordered by date ascending, paginated.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	w := scheduleWhere(filter)
	query := scheduleDetailSelect + w.sql() + " ORDER BY sc.scheduled_date ASC" + page(filter.Skip, filter.Take)
	var items []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schedules sc"+w.sql(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return items, total, nil
}

// ListRange returns every matching schedule ordered by date without pagination.
func (r *ScheduleRepository) ListRange(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, error) {
	w := scheduleWhere(filter)
	query := scheduleDetailSelect + w.sql() + " ORDER BY sc.scheduled_date ASC"
	if filter.Take > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Take)
	}
	var items []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, fmt.Errorf("list schedule range: %w", err)
	}
	return items, nil
}

// FindByID returns one schedule with participant names.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleDetail, error) {
	var item models.ScheduleDetail
	if err := r.db.GetContext(ctx, &item, scheduleDetailSelect+" WHERE sc.id = $1 LIMIT 1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &item, nil
}

// ExistsAt reports whether the pair already has a schedule at exactly date.
func (r *ScheduleRepository) ExistsAt(ctx context.Context, supervisorID, teacherID string, date time.Time, excludeID *string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM schedules WHERE supervisor_id = $1 AND teacher_id = $2 AND scheduled_date = $3`
	args := []interface{}{supervisorID, teacherID, date}
	if excludeID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check schedule date: %w", err)
	}
	return exists, nil
}

// Create inserts a schedule.
func (r *ScheduleRepository) Create(ctx context.Context, s *models.Schedule) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = models.ScheduleScheduled
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	const query = `INSERT INTO schedules (id, supervisor_id, teacher_id, scheduled_date, type, location, description, status, notes, created_at, updated_at)
VALUES (:id, :supervisor_id, :teacher_id, :scheduled_date, :type, :location, :description, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update writes the mutable columns.
func (r *ScheduleRepository) Update(ctx context.Context, s *models.Schedule) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET scheduled_date = :scheduled_date, type = :type, location = :location, description = :description,
status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return expectRow(res)
}

// UpdateStatus sets the status and, when notes is non-nil, the notes.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus, notes *string) error {
	const query = `UPDATE schedules SET status = $2, notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	return expectRow(res)
}

// Delete removes a schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return expectRow(res)
}
