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

const assessmentColumns = `a.id, a.supervision_id, a.teacher_id, a.aspect_name, a.score, a.feedback, a.created_at, a.updated_at`

const assessmentDetailSelect = `SELECT ` + assessmentColumns + `,
sv.supervisor_id, su.name AS supervisor_name, tu.name AS teacher_name, sv.date AS supervision_date
FROM assessments a
JOIN supervisions sv ON sv.id = a.supervision_id
JOIN supervisors s ON s.id = sv.supervisor_id
JOIN users su ON su.id = s.user_id
JOIN teachers t ON t.id = a.teacher_id
JOIN users tu ON tu.id = t.user_id`

// AssessmentRepository persists aspect scores.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs an AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// List returns assessments newest first. Date bounds apply to the supervision date.
func (r *AssessmentRepository) List(ctx context.Context, filter models.AssessmentFilter) ([]models.AssessmentDetail, int, error) {
	w := &where{}
	if filter.TeacherID != "" {
		w.add("a.teacher_id = $%d", filter.TeacherID)
	}
	if filter.SupervisorID != "" {
		w.add("sv.supervisor_id = $%d", filter.SupervisorID)
	}
	if filter.SupervisionID != "" {
		w.add("a.supervision_id = $%d", filter.SupervisionID)
	}
	if filter.StartDate != nil {
		w.add("sv.date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		w.add("sv.date <= $%d", *filter.EndDate)
	}

	query := assessmentDetailSelect + w.sql() + " ORDER BY a.created_at DESC" + page(filter.Skip, filter.Take)
	var items []models.AssessmentDetail
	if err := r.db.SelectContext(ctx, &items, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list assessments: %w", err)
	}
	countQuery := "SELECT COUNT(*) FROM assessments a JOIN supervisions sv ON sv.id = a.supervision_id" + w.sql()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count assessments: %w", err)
	}
	return items, total, nil
}

// FindByID returns one assessment with joined names.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.AssessmentDetail, error) {
	var item models.AssessmentDetail
	if err := r.db.GetContext(ctx, &item, assessmentDetailSelect+" WHERE a.id = $1 LIMIT 1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return &item, nil
}

// ListBySupervision returns the assessments of one session ordered by aspect name.
func (r *AssessmentRepository) ListBySupervision(ctx context.Context, supervisionID string) ([]models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments a WHERE a.supervision_id = $1 ORDER BY a.aspect_name ASC`
	var items []models.Assessment
	if err := r.db.SelectContext(ctx, &items, query, supervisionID); err != nil {
		return nil, fmt.Errorf("list supervision assessments: %w", err)
	}
	return items, nil
}

// ListByTeacher returns every assessment of a teacher, newest first.
func (r *AssessmentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.AssessmentDetail, error) {
	query := assessmentDetailSelect + " WHERE a.teacher_id = $1 ORDER BY a.created_at DESC, a.id DESC"
	var items []models.AssessmentDetail
	if err := r.db.SelectContext(ctx, &items, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher assessments: %w", err)
	}
	return items, nil
}

// ListInPeriod returns a teacher's assessments created in [start, end] inclusive, oldest first.
func (r *AssessmentRepository) ListInPeriod(ctx context.Context, teacherID string, start, end time.Time) ([]models.AssessmentDetail, error) {
	query := assessmentDetailSelect + " WHERE a.teacher_id = $1 AND a.created_at >= $2 AND a.created_at <= $3 ORDER BY a.created_at ASC, a.id ASC"
	var items []models.AssessmentDetail
	if err := r.db.SelectContext(ctx, &items, query, teacherID, start, end); err != nil {
		return nil, fmt.Errorf("list assessments in period: %w", err)
	}
	return items, nil
}

// AspectExists reports whether the session already scored aspect.
func (r *AssessmentRepository) AspectExists(ctx context.Context, supervisionID, aspect string, excludeID *string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM assessments WHERE supervision_id = $1 AND aspect_name = $2`
	args := []interface{}{supervisionID, aspect}
	if excludeID != nil {
		query += ` AND id <> $3`
		args = append(args, *excludeID)
	}
	query += `)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check assessment aspect: %w", err)
	}
	return exists, nil
}

// Create inserts an assessment.
func (r *AssessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	const query = `INSERT INTO assessments (id, supervision_id, teacher_id, aspect_name, score, feedback, created_at, updated_at)
VALUES (:id, :supervision_id, :teacher_id, :aspect_name, :score, :feedback, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// Update writes the mutable columns.
func (r *AssessmentRepository) Update(ctx context.Context, a *models.Assessment) error {
	a.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessments SET aspect_name = :aspect_name, score = :score, feedback = :feedback, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	return expectRow(res)
}

// Delete removes one assessment.
func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	return expectRow(res)
}

// DeleteBySupervision removes every assessment of a session and returns the count.
func (r *AssessmentRepository) DeleteBySupervision(ctx context.Context, supervisionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE supervision_id = $1`, supervisionID)
	if err != nil {
		return 0, fmt.Errorf("delete supervision assessments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
