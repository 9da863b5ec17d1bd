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

const teacherDetailSelect = `SELECT t.id, t.user_id, t.nip, t.subject, t.classroom, t.created_at, t.updated_at,
u.name AS user_name, u.email AS user_email, u.phone AS user_phone
FROM teachers t
JOIN users u ON u.id = t.user_id`

// TeacherRepository handles persistence for teacher profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers filtered by name/nip/subject search and exact subject.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	w := &where{}
	if filter.Search != "" {
		w.add("(u.name ILIKE $%[1]d OR t.nip ILIKE $%[1]d OR t.subject ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	if filter.Subject != "" {
		w.add("t.subject = $%d", filter.Subject)
	}

	query := teacherDetailSelect + w.sql() + " ORDER BY t.created_at DESC" + page(filter.Skip, filter.Take)
	var teachers []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM teachers t JOIN users u ON u.id = t.user_id" + w.sql()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// FindByID returns a teacher with account fields.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	return r.findOne(ctx, "t.id", id)
}

// FindByUserID returns the teacher profile owned by userID.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error) {
	return r.findOne(ctx, "t.user_id", userID)
}

func (r *TeacherRepository) findOne(ctx context.Context, column, value string) (*models.TeacherDetail, error) {
	query := teacherDetailSelect + " WHERE " + column + " = $1 LIMIT 1"
	var teacher models.TeacherDetail
	if err := r.db.GetContext(ctx, &teacher, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	return &teacher, nil
}

// ExistsByNIP checks whether another teacher already uses the NIP.
func (r *TeacherRepository) ExistsByNIP(ctx context.Context, nip string, excludeID *string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM teachers WHERE nip = $1`
	args := []interface{}{nip}
	if excludeID != nil {
		query += ` AND id <> $2`
		args = append(args, *excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check teacher nip: %w", err)
	}
	return exists, nil
}

// CountExisting returns how many of ids refer to existing teachers.
func (r *TeacherRepository) CountExisting(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `SELECT COUNT(*) FROM teachers WHERE id = ANY($1)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("count teachers: %w", err)
	}
	return count, nil
}

// Create inserts a teacher profile.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, user_id, nip, subject, classroom, created_at, updated_at)
VALUES (:id, :user_id, :nip, :subject, :classroom, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update writes the mutable profile columns.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET nip = :nip, subject = :subject, classroom = :classroom, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return expectRow(res)
}

// Delete removes a teacher profile.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	return expectRow(res)
}

// expectRow converts a zero-row write into sql.ErrNoRows.
func expectRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
