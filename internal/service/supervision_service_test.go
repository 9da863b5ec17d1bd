package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

type mockSupervisionRepo struct {
	items       map[string]*models.SupervisionDetail
	assessments *mockAssessmentRepo
	statTZ      string
	seq         int
}

func newMockSupervisionRepo(items ...*models.SupervisionDetail) *mockSupervisionRepo {
	repo := &mockSupervisionRepo{items: make(map[string]*models.SupervisionDetail)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (m *mockSupervisionRepo) List(ctx context.Context, filter models.SupervisionFilter) ([]models.SupervisionDetail, int, error) {
	var out []models.SupervisionDetail
	for _, item := range m.items {
		if filter.TeacherID != "" && item.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (m *mockSupervisionRepo) FindByID(ctx context.Context, id string) (*models.SupervisionDetail, error) {
	if item, ok := m.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSupervisionRepo) ExistsAt(ctx context.Context, supervisorID, teacherID string, date time.Time, excludeID *string) (bool, error) {
	for id, item := range m.items {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if item.SupervisorID == supervisorID && item.TeacherID == teacherID && item.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSupervisionRepo) Create(ctx context.Context, s *models.Supervision) error {
	m.seq++
	if s.ID == "" {
		s.ID = fmt.Sprintf("sv-%d", m.seq)
	}
	if s.Status == "" {
		s.Status = models.SupervisionPending
	}
	m.items[s.ID] = &models.SupervisionDetail{Supervision: *s}
	return nil
}

func (m *mockSupervisionRepo) Update(ctx context.Context, s *models.Supervision) error {
	item, ok := m.items[s.ID]
	if !ok {
		return sql.ErrNoRows
	}
	item.Supervision = *s
	return nil
}

func (m *mockSupervisionRepo) UpdateStatus(ctx context.Context, id string, status models.SupervisionStatus) error {
	item, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	return nil
}

func (m *mockSupervisionRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	if m.assessments != nil {
		_, _ = m.assessments.DeleteBySupervision(ctx, id)
	}
	return nil
}

func (m *mockSupervisionRepo) StatRows(ctx context.Context, supervisorID, teacherID, timezone string) ([]repository.SupervisionStatRow, error) {
	m.statTZ = timezone
	var rows []repository.SupervisionStatRow
	for _, item := range m.items {
		if supervisorID != "" && item.SupervisorID != supervisorID {
			continue
		}
		rows = append(rows, repository.SupervisionStatRow{Status: item.Status, Type: item.Type, Month: item.Date.Format("2006-01"), Count: 1})
	}
	return rows, nil
}

type supervisionFixture struct {
	supervisors *mockSupervisorRepo
	teachers    *mockTeacherRepo
	repo        *mockSupervisionRepo
	assessments *mockAssessmentRepo
	svc         *SupervisionService
}

func newSupervisionFixture() *supervisionFixture {
	teachers := newMockTeacherRepo(teacherFixture("t-1", "1"))
	supervisors := newMockSupervisorRepo(teachers, supervisorFixture("s-1", "111"))
	assessments := newMockAssessmentRepo()
	repo := newMockSupervisionRepo()
	repo.assessments = assessments
	svc := NewSupervisionService(repo, supervisors, teachers, assessments, nil, nil, "Asia/Jakarta", zap.NewNop())
	return &supervisionFixture{supervisors: supervisors, teachers: teachers, repo: repo, assessments: assessments, svc: svc}
}

func TestSupervisionServiceCreate(t *testing.T) {
	f := newSupervisionFixture()
	date := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	created, err := f.svc.Create(context.Background(), models.CreateSupervisionRequest{SupervisorID: "s-1", TeacherID: "t-1", Type: models.SupervisionOffline, Date: date})
	require.NoError(t, err)
	assert.Equal(t, models.SupervisionPending, created.Status)
	assert.Equal(t, "Guru t-1", created.TeacherName)

	_, err = f.svc.Create(context.Background(), models.CreateSupervisionRequest{SupervisorID: "s-1", TeacherID: "t-1", Type: models.SupervisionOnline, Date: date})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = f.svc.Create(context.Background(), models.CreateSupervisionRequest{SupervisorID: "missing", TeacherID: "t-1", Type: models.SupervisionOnline, Date: date.Add(time.Hour)})
	require.Error(t, err)
	assert.Equal(t, "Supervisor not found", appErrors.FromError(err).Message)

	_, err = f.svc.Create(context.Background(), models.CreateSupervisionRequest{SupervisorID: "s-1", TeacherID: "missing", Type: models.SupervisionOnline, Date: date.Add(time.Hour)})
	assert.Equal(t, "Teacher not found", appErrors.FromError(err).Message)

	_, err = f.svc.Create(context.Background(), models.CreateSupervisionRequest{SupervisorID: "s-1", TeacherID: "t-1", Type: "PHONE", Date: date})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSupervisionServiceUpdateRechecksDate(t *testing.T) {
	f := newSupervisionFixture()
	first := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	f.repo.items["a"] = &models.SupervisionDetail{Supervision: models.Supervision{ID: "a", SupervisorID: "s-1", TeacherID: "t-1", Date: first}}
	f.repo.items["b"] = &models.SupervisionDetail{Supervision: models.Supervision{ID: "b", SupervisorID: "s-1", TeacherID: "t-1", Date: second}}

	_, err := f.svc.Update(context.Background(), "a", models.UpdateSupervisionRequest{Date: &second})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	notes := "moved"
	updated, err := f.svc.Update(context.Background(), "a", models.UpdateSupervisionRequest{Date: &first, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "moved", *updated.Notes)
}

func TestSupervisionServiceUpdateStatus(t *testing.T) {
	f := newSupervisionFixture()
	f.repo.items["a"] = &models.SupervisionDetail{Supervision: models.Supervision{ID: "a", Status: models.SupervisionPending}}

	_, err := f.svc.UpdateStatus(context.Background(), "a", "DONE")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	updated, err := f.svc.UpdateStatus(context.Background(), "a", models.SupervisionCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.SupervisionCompleted, updated.Status)

	_, err = f.svc.UpdateStatus(context.Background(), "missing", models.SupervisionCompleted)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSupervisionServiceDeleteCascades(t *testing.T) {
	f := newSupervisionFixture()
	f.repo.items["a"] = &models.SupervisionDetail{Supervision: models.Supervision{ID: "a", SupervisorID: "s-1", TeacherID: "t-1"}}
	f.assessments.add(models.AssessmentDetail{Assessment: models.Assessment{ID: "as-1", SupervisionID: "a", AspectName: "A", Score: 3}})

	detail, err := f.svc.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, detail.Assessments, 1)

	require.NoError(t, f.svc.Delete(context.Background(), "a"))
	assert.Empty(t, f.assessments.items)
	assert.True(t, errors.Is(f.svc.Delete(context.Background(), "a"), appErrors.ErrNotFound))
}

func TestSupervisionServiceStatsZeroFilled(t *testing.T) {
	f := newSupervisionFixture()
	f.repo.items["a"] = &models.SupervisionDetail{Supervision: models.Supervision{ID: "a", SupervisorID: "s-1", Status: models.SupervisionCompleted, Type: models.SupervisionOnline, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}}
	f.repo.items["b"] = &models.SupervisionDetail{Supervision: models.Supervision{ID: "b", SupervisorID: "s-1", Status: models.SupervisionCompleted, Type: models.SupervisionOffline, Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}}

	stats, err := f.svc.Stats(context.Background(), "s-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Len(t, stats.ByStatus, 4)
	assert.Len(t, stats.ByType, 3)
	assert.Equal(t, 0, stats.ByStatus["PENDING"])
	assert.Equal(t, 2, stats.ByStatus["COMPLETED"])
	assert.Equal(t, 0, stats.ByType["HYBRID"])
	assert.Equal(t, map[string]int{"2024-03": 1, "2024-04": 1}, stats.ByMonth)
	assert.Equal(t, "Asia/Jakarta", f.repo.statTZ)
}

// malformedUUID mimics postgres rejecting a non-UUID literal for a uuid column.
func malformedUUID(op string) error {
	return fmt.Errorf("%s: %w", op, &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`})
}

type malformedTeacherRepo struct{ *mockTeacherRepo }

func (m *malformedTeacherRepo) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	return nil, malformedUUID("find teacher")
}

func (m *malformedTeacherRepo) CountExisting(ctx context.Context, ids []string) (int, error) {
	return 0, malformedUUID("count teachers")
}

type malformedSupervisorRepo struct{ *mockSupervisorRepo }

func (m *malformedSupervisorRepo) FindByID(ctx context.Context, id string) (*models.SupervisorDetail, error) {
	return nil, malformedUUID("find supervisor")
}

type malformedSupervisionRepo struct{ *mockSupervisionRepo }

func (m *malformedSupervisionRepo) FindByID(ctx context.Context, id string) (*models.SupervisionDetail, error) {
	return nil, malformedUUID("find supervision")
}

func TestLookupsTreatMalformedIDAsMissing(t *testing.T) {
	_, err := requireTeacher(context.Background(), &malformedTeacherRepo{newMockTeacherRepo()}, "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, "Teacher not found", appErrors.FromError(err).Message)

	_, err = requireSupervisor(context.Background(), &malformedSupervisorRepo{newMockSupervisorRepo(nil)}, "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, "Supervisor not found", appErrors.FromError(err).Message)
}

func TestSupervisionServiceMalformedIDNotFound(t *testing.T) {
	f := newSupervisionFixture()
	svc := NewSupervisionService(&malformedSupervisionRepo{f.repo}, f.supervisors, f.teachers, f.assessments, nil, nil, "Asia/Jakarta", zap.NewNop())

	_, err := svc.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 404, appErrors.FromError(err).Status)

	svc = NewSupervisionService(f.repo, f.supervisors, &malformedTeacherRepo{f.teachers}, f.assessments, nil, nil, "Asia/Jakarta", zap.NewNop())
	_, err = svc.Create(context.Background(), models.CreateSupervisionRequest{SupervisorID: "s-1", TeacherID: "abc", Type: models.SupervisionOffline, Date: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)})
	require.Error(t, err)
	assert.Equal(t, "Teacher not found", appErrors.FromError(err).Message)
}
