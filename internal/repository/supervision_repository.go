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

const supervisionDetailSelect = `SELECT sv.id, sv.supervisor_id, sv.teacher_id, sv.type, sv.date, sv.notes, sv.status, sv.created_at, sv.updated_at,
su.name AS supervisor_name, tu.name AS teacher_name
FROM supervisions sv
JOIN supervisors s ON s.id = sv.supervisor_id
JOIN users su ON su.id = s.user_id
JOIN teachers t ON t.id = sv.teacher_id
JOIN users tu ON tu.id = t.user_id`

// SupervisionRepository persists supervision sessions.
type SupervisionRepository struct {
	db *sqlx.DB
}

// NewSupervisionRepository constructs a SupervisionRepository.
func NewSupervisionRepository(db *sqlx.DB) *SupervisionRepository {
	return &SupervisionRepository{db: db}
}

func supervisionWhere(filter models.SupervisionFilter) *where {
	w := &where{}
	if filter.SupervisorID != "" {
		w.add("sv.supervisor_id = $%d", filter.SupervisorID)
	}
	if filter.TeacherID != "" {
		w.add("sv.teacher_id = $%d", filter.TeacherID)
	}
	if filter.Status != nil {
		w.add("sv.status = $%d", *filter.Status)
	}
	if filter.Type != nil {
		w.add("sv.type = $%d", *filter.Type)
	}
	if filter.StartDate != nil {
		w.add("sv.date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		w.add("sv.date <= $%d", *filter.EndDate)
	}
	return w
}

// List returns sessions ordered by date, newest first.
func (r *SupervisionRepository) List(ctx context.Context, filter models.SupervisionFilter) ([]models.SupervisionDetail, int, error) {
	w := supervisionWhere(filter)
	query := supervisionDetailSelect + w.sql() + " ORDER BY sv.date DESC" + page(filter.Skip, filter.Take)
	var items []models.SupervisionDetail
	if err := r.db.SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list supervisions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM supervisions sv"+w.sql(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count supervisions: %w", err)
	}
	return items, total, nil
}

// FindByID returns a session with participant names.
func (r *SupervisionRepository) FindByID(ctx context.Context, id string) (*models.SupervisionDetail, error) {
	query := supervisionDetailSelect + " WHERE sv.id = $1 LIMIT 1"
	var item models.SupervisionDetail
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get supervision: %w", err)
	}
	return &item, nil
}

// ExistsAt reports whether the pair already has a session at exactly date.
func (r *SupervisionRepository) ExistsAt(ctx context.Context, supervisorID, teacherID string, date time.Time, excludeID *string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM supervisions WHERE supervisor_id = $1 AND teacher_id = $2 AND date = $3`
	args := []interface{}{supervisorID, teacherID, date}
	if excludeID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check supervision date: %w", err)
	}
	return exists, nil
}

// Create inserts a session.
func (r *SupervisionRepository) Create(ctx context.Context, s *models.Supervision) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = models.SupervisionPending
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	const query = `INSERT INTO supervisions (id, supervisor_id, teacher_id, type, date, notes, status, created_at, updated_at)
VALUES (:id, :supervisor_id, :teacher_id, :type, :date, :notes, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create supervision: %w", err)
	}
	return nil
}

// Update writes the mutable columns.
func (r *SupervisionRepository) Update(ctx context.Context, s *models.Supervision) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `UPDATE supervisions SET type = :type, date = :date, notes = :notes, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("update supervision: %w", err)
	}
	return expectRow(res)
}

// UpdateStatus sets only the status column.
func (r *SupervisionRepository) UpdateStatus(ctx context.Context, id string, status models.SupervisionStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE supervisions SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update supervision status: %w", err)
	}
	return expectRow(res)
}

// Delete removes the session and its assessments in one transaction.
func (r *SupervisionRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM assessments WHERE supervision_id = $1`, id); err != nil {
			return fmt.Errorf("delete supervision assessments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM supervisions WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete supervision: %w", err)
		}
		return expectRow(res)
	})
}

// SupervisionStatRow is one group of the stats query.
type SupervisionStatRow struct {
	Status models.SupervisionStatus `db:"status"`
	Type   models.SupervisionType   `db:"type"`
	Month  string                   `db:"month"`
	Count  int                      `db:"count"`
}

// StatRows groups sessions by status, type and local calendar month.
func (r *SupervisionRepository) StatRows(ctx context.Context, supervisorID, teacherID, timezone string) ([]SupervisionStatRow, error) {
	w := &where{}
	w.args = append(w.args, timezone)
	if supervisorID != "" {
		w.add("sv.supervisor_id = $%d", supervisorID)
	}
	if teacherID != "" {
		w.add("sv.teacher_id = $%d", teacherID)
	}
	query := `SELECT sv.status, sv.type, to_char(sv.date AT TIME ZONE $1, 'YYYY-MM') AS month, COUNT(*) AS count
FROM supervisions sv` + w.sql() + ` GROUP BY sv.status, sv.type, month`
	var rows []SupervisionStatRow
	if err := r.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("supervision stats: %w", err)
	}
	return rows, nil
}
