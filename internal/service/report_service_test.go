package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
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

type mockReportRepo struct {
	items       map[string]*models.ReportDetail
	createCalls int
	createErr   error
	seq         int
}

func newMockReportRepo(items ...*models.ReportDetail) *mockReportRepo {
	repo := &mockReportRepo{items: make(map[string]*models.ReportDetail)}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (m *mockReportRepo) List(ctx context.Context, filter models.ReportFilter) ([]models.ReportDetail, int, error) {
	var out []models.ReportDetail
	for _, item := range m.items {
		if filter.TeacherID != "" && item.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (m *mockReportRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.ReportDetail, error) {
	var out []models.ReportDetail
	for _, item := range m.items {
		if item.TeacherID == teacherID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period > out[j].Period })
	return out, nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.ReportDetail, error) {
	if item, ok := m.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportRepo) ExistsForPeriod(ctx context.Context, supervisorID, teacherID, period string, excludeID *string) (bool, error) {
	for id, item := range m.items {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if item.SupervisorID == supervisorID && item.TeacherID == teacherID && item.Period == period {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockReportRepo) Create(ctx context.Context, report *models.Report) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	report.ID = fmt.Sprintf("r-%d", m.seq)
	m.items[report.ID] = &models.ReportDetail{Report: *report}
	return nil
}

func (m *mockReportRepo) Update(ctx context.Context, report *models.Report) error {
	item, ok := m.items[report.ID]
	if !ok {
		return sql.ErrNoRows
	}
	item.Report = *report
	return nil
}

func (m *mockReportRepo) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error {
	item, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	return nil
}

func (m *mockReportRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockReportRepo) StatRows(ctx context.Context, supervisorID string) ([]repository.ReportStatRow, error) {
	var rows []repository.ReportStatRow
	for _, item := range m.items {
		if supervisorID != "" && item.SupervisorID != supervisorID {
			continue
		}
		rows = append(rows, repository.ReportStatRow{Status: item.Status, Period: item.Period, AverageScore: item.AverageScore})
	}
	return rows, nil
}

type reportFixture struct {
	repo        *mockReportRepo
	assessments *mockAssessmentRepo
	svc         *ReportService
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	teachers := newMockTeacherRepo(teacherFixture("t-1", "1"))
	supervisors := newMockSupervisorRepo(teachers, supervisorFixture("s-1", "111"))
	assessments := newMockAssessmentRepo()
	repo := newMockReportRepo()
	svc := NewReportService(repo, supervisors, teachers, assessments, nil, NewMetricsService(), nil, loc, zap.NewNop())
	return &reportFixture{repo: repo, assessments: assessments, svc: svc}
}

func (f *reportFixture) addAssessment(id, aspect string, score int, at time.Time) {
	f.assessments.add(models.AssessmentDetail{
		Assessment:     models.Assessment{ID: id, SupervisionID: "sv-1", TeacherID: "t-1", AspectName: aspect, Score: score, CreatedAt: at},
		SupervisorName: "Pengawas s-1",
	})
}

func TestReportServiceGenerateScenario(t *testing.T) {
	f := newReportFixture(t)
	jakarta := time.FixedZone("WIB", 7*3600)
	f.addAssessment("a", "Perencanaan", 5, time.Date(2024, 3, 1, 0, 30, 0, 0, jakarta))
	f.addAssessment("b", "Pelaksanaan", 4, time.Date(2024, 3, 15, 9, 0, 0, 0, jakarta))
	f.addAssessment("c", "Perencanaan", 5, time.Date(2024, 3, 31, 0, 0, 0, 0, jakarta))
	f.addAssessment("last-day-noon", "Refleksi", 1, time.Date(2024, 3, 31, 12, 0, 0, 0, jakarta))
	f.addAssessment("outside", "Evaluasi", 1, time.Date(2024, 4, 1, 0, 0, 0, 0, jakarta))

	report, err := f.svc.Generate(context.Background(), models.GenerateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-03", Title: "Laporan Maret"})
	require.NoError(t, err)
	assert.Equal(t, 4.67, report.AverageScore)
	assert.Equal(t, models.ReportDraft, report.Status)
	assert.Equal(t, "Guru t-1", report.TeacherName)
	assert.Equal(t, "Pengawas s-1", report.SupervisorName)
	require.NotNil(t, report.Recommendations)
	assert.True(t, strings.Contains(*report.Recommendations, "sangat baik"))
	assert.Contains(t, report.Content, "Jumlah penilaian: **3**")
	assert.Contains(t, report.Content, "- Tanggal: 1/3/2024")
	assert.NotContains(t, report.Content, "Evaluasi")
	assert.NotContains(t, report.Content, "Refleksi")
}

func TestReportServiceGenerateDuplicate(t *testing.T) {
	f := newReportFixture(t)
	req := models.GenerateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-03", Title: "Laporan"}

	_, err := f.svc.Generate(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, "Report already exists for this teacher in period 2024-03", appErrors.FromError(err).Message)
	assert.Equal(t, 1, f.repo.createCalls)
}

func TestReportServiceGenerateEmptyPeriod(t *testing.T) {
	f := newReportFixture(t)

	report, err := f.svc.Generate(context.Background(), models.GenerateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-02", Title: "Laporan"})
	require.NoError(t, err)
	assert.Zero(t, report.AverageScore)
	assert.True(t, strings.HasSuffix(report.Content, "## Tidak ada data penilaian untuk periode ini.\n"))
	assert.Contains(t, *report.Recommendations, "bimbingan intensif")
}

func TestReportServiceGenerateValidation(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.Generate(context.Background(), models.GenerateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-13", Title: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Generate(context.Background(), models.GenerateReportRequest{SupervisorID: "nope", TeacherID: "t-1", Period: "2024-03", Title: "x"})
	assert.Equal(t, "Supervisor not found", appErrors.FromError(err).Message)

	_, err = f.svc.Generate(context.Background(), models.GenerateReportRequest{SupervisorID: "s-1", TeacherID: "nope", Period: "2024-03", Title: "x"})
	assert.Equal(t, "Teacher not found", appErrors.FromError(err).Message)
	assert.Zero(t, f.repo.createCalls)
}

func TestReportServiceGenerateUniqueViolation(t *testing.T) {
	f := newReportFixture(t)
	f.repo.createErr = &pq.Error{Code: "23505"}

	_, err := f.svc.Generate(context.Background(), models.GenerateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-03", Title: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestReportServiceCreateManualBounds(t *testing.T) {
	f := newReportFixture(t)
	score := 101.0
	_, err := f.svc.Create(context.Background(), models.CreateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Title: "x", Content: "y", Period: "2024-03", AverageScore: &score})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	score = 87.5
	report, err := f.svc.Create(context.Background(), models.CreateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Title: "x", Content: "y", Period: "2024-03", AverageScore: &score})
	require.NoError(t, err)
	assert.Equal(t, 87.5, report.AverageScore)
	assert.Equal(t, models.ReportDraft, report.Status)
}

func TestReportServiceUpdatePeriodRecheck(t *testing.T) {
	f := newReportFixture(t)
	f.repo.items["a"] = &models.ReportDetail{Report: models.Report{ID: "a", SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-03"}}
	f.repo.items["b"] = &models.ReportDetail{Report: models.Report{ID: "b", SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-04"}}

	taken := "2024-04"
	_, err := f.svc.Update(context.Background(), "a", models.UpdateReportRequest{Period: &taken})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	same := "2024-03"
	title := "Baru"
	updated, err := f.svc.Update(context.Background(), "a", models.UpdateReportRequest{Period: &same, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Baru", updated.Title)
}

func TestReportServiceUpdateStatus(t *testing.T) {
	f := newReportFixture(t)
	f.repo.items["a"] = &models.ReportDetail{Report: models.Report{ID: "a", Status: models.ReportDraft}}

	_, err := f.svc.UpdateStatus(context.Background(), "a", "FINAL")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	updated, err := f.svc.UpdateStatus(context.Background(), "a", models.ReportPublished)
	require.NoError(t, err)
	assert.Equal(t, models.ReportPublished, updated.Status)

	assert.True(t, errors.Is(f.svc.Delete(context.Background(), "missing"), appErrors.ErrNotFound))
}

func TestReportServiceStats(t *testing.T) {
	f := newReportFixture(t)
	f.repo.items["a"] = &models.ReportDetail{Report: models.Report{ID: "a", SupervisorID: "s-1", Period: "2024-03", Status: models.ReportDraft, AverageScore: 4.5}}
	f.repo.items["b"] = &models.ReportDetail{Report: models.Report{ID: "b", SupervisorID: "s-1", Period: "2024-03", Status: models.ReportPublished, AverageScore: 4}}
	f.repo.items["c"] = &models.ReportDetail{Report: models.Report{ID: "c", SupervisorID: "s-1", Period: "2024-04", Status: models.ReportDraft}}

	stats, err := f.svc.Stats(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{"DRAFT": 2, "PUBLISHED": 1, "ARCHIVED": 0}, stats.ByStatus)
	assert.Equal(t, map[string]int{"2024-03": 2, "2024-04": 1}, stats.ByPeriod)
	assert.Equal(t, 4.25, stats.AverageScore)
}

func TestReportServiceDelete(t *testing.T) {
	f := newReportFixture(t)
	f.repo.items["r-1"] = &models.ReportDetail{Report: models.Report{ID: "r-1", Status: models.ReportPublished}}

	require.NoError(t, f.svc.Delete(context.Background(), "r-1"))
	assert.Empty(t, f.repo.items)

	err := f.svc.Delete(context.Background(), "r-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, "Report with ID r-1 not found", appErrors.FromError(err).Message)
}
