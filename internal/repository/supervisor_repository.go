package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/supervisi-api/internal/models"
)

const supervisorDetailSelect = `SELECT s.id, s.user_id, s.nip, s.specialization, s.created_at, s.updated_at,
u.name AS user_name, u.email AS user_email, u.phone AS user_phone
FROM supervisors s
JOIN users u ON u.id = s.user_id`

// SupervisorRepository handles persistence for supervisor profiles and their teacher assignments.
type SupervisorRepository struct {
	db *sqlx.DB
}

// NewSupervisorRepository constructs a SupervisorRepository.
func NewSupervisorRepository(db *sqlx.DB) *SupervisorRepository {
	return &SupervisorRepository{db: db}
}

// List returns supervisors ordered by creation time, newest first.
func (r *SupervisorRepository) List(ctx context.Context, filter models.SupervisorFilter) ([]models.SupervisorDetail, int, error) {
	w := &where{}
	if filter.Search != "" {
		w.add("(u.name ILIKE $%[1]d OR s.nip ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	query := supervisorDetailSelect + w.sql() + " ORDER BY s.created_at DESC" + page(filter.Skip, filter.Take)
	var supervisors []models.SupervisorDetail
	if err := r.db.SelectContext(ctx, &supervisors, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list supervisors: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM supervisors s JOIN users u ON u.id = s.user_id" + w.sql()
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count supervisors: %w", err)
	}
	return supervisors, total, nil
}

// FindByID returns a supervisor with account fields.
func (r *SupervisorRepository) FindByID(ctx context.Context, id string) (*models.SupervisorDetail, error) {
	return r.findOne(ctx, "s.id", id)
}

// FindByUserID returns the supervisor profile owned by userID.
func (r *SupervisorRepository) FindByUserID(ctx context.Context, userID string) (*models.SupervisorDetail, error) {
	return r.findOne(ctx, "s.user_id", userID)
}

func (r *SupervisorRepository) findOne(ctx context.Context, column, value string) (*models.SupervisorDetail, error) {
	query := supervisorDetailSelect + " WHERE " + column + " = $1 LIMIT 1"
	var supervisor models.SupervisorDetail
	if err := r.db.GetContext(ctx, &supervisor, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get supervisor: %w", err)
	}
	return &supervisor, nil
}

// ExistsByNIP checks whether another supervisor already uses the NIP.
func (r *SupervisorRepository) ExistsByNIP(ctx context.Context, nip string, excludeID *string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM supervisors WHERE nip = $1`
	args := []interface{}{nip}
	if excludeID != nil {
		query += ` AND id <> $2`
		args = append(args, *excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check supervisor nip: %w", err)
	}
	return exists, nil
}

// Create inserts a supervisor profile.
func (r *SupervisorRepository) Create(ctx context.Context, supervisor *models.Supervisor) error {
	if supervisor.ID == "" {
		supervisor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	supervisor.CreatedAt = now
	supervisor.UpdatedAt = now

	const query = `INSERT INTO supervisors (id, user_id, nip, specialization, created_at, updated_at)
VALUES (:id, :user_id, :nip, :specialization, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, supervisor); err != nil {
		return fmt.Errorf("create supervisor: %w", err)
	}
	return nil
}

// Update writes the mutable profile columns.
func (r *SupervisorRepository) Update(ctx context.Context, supervisor *models.Supervisor) error {
	supervisor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE supervisors SET nip = :nip, specialization = :specialization, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, supervisor)
	if err != nil {
		return fmt.Errorf("update supervisor: %w", err)
	}
	return expectRow(res)
}

// Delete removes a supervisor profile. Assignments cascade.
func (r *SupervisorRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM supervisors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete supervisor: %w", err)
	}
	return expectRow(res)
}

type assignedTeacherRow struct {
	SupervisorID string `db:"supervisor_id"`
	models.TeacherDetail
}

// ListTeachers returns the teachers assigned to each of the given supervisors.
func (r *SupervisorRepository) ListTeachers(ctx context.Context, supervisorIDs []string) (map[string][]models.TeacherDetail, error) {
	result := make(map[string][]models.TeacherDetail, len(supervisorIDs))
	if len(supervisorIDs) == 0 {
		return result, nil
	}
	const query = `SELECT st.supervisor_id, t.id, t.user_id, t.nip, t.subject, t.classroom, t.created_at, t.updated_at,
u.name AS user_name, u.email AS user_email, u.phone AS user_phone
FROM supervisor_teachers st
JOIN teachers t ON t.id = st.teacher_id
JOIN users u ON u.id = t.user_id
WHERE st.supervisor_id = ANY($1)
ORDER BY u.name ASC`
	var rows []assignedTeacherRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(supervisorIDs)); err != nil {
		return nil, fmt.Errorf("list assigned teachers: %w", err)
	}
	for _, row := range rows {
		result[row.SupervisorID] = append(result[row.SupervisorID], row.TeacherDetail)
	}
	return result, nil
}

// ReplaceTeachers swaps the supervisor's assignment set in one transaction.
func (r *SupervisorRepository) ReplaceTeachers(ctx context.Context, supervisorID string, teacherIDs []string) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM supervisor_teachers WHERE supervisor_id = $1`, supervisorID); err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
		if len(teacherIDs) == 0 {
			return nil
		}
		const insert = `INSERT INTO supervisor_teachers (supervisor_id, teacher_id, assigned_at)
SELECT $1, unnest($2::uuid[]), $3
ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, insert, supervisorID, pq.Array(teacherIDs), time.Now().UTC()); err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
		return nil
	})
}
