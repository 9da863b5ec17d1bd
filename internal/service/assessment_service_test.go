package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

type mockAssessmentRepo struct {
	items       map[string]*models.AssessmentDetail
	order       []string
	createCalls int
	seq         int
}

func newMockAssessmentRepo() *mockAssessmentRepo {
	return &mockAssessmentRepo{items: make(map[string]*models.AssessmentDetail)}
}

func (m *mockAssessmentRepo) add(item models.AssessmentDetail) {
	cp := item
	m.items[item.ID] = &cp
	m.order = append(m.order, item.ID)
}

func (m *mockAssessmentRepo) ordered() []models.AssessmentDetail {
	var out []models.AssessmentDetail
	for _, id := range m.order {
		if item, ok := m.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out
}

func (m *mockAssessmentRepo) List(ctx context.Context, filter models.AssessmentFilter) ([]models.AssessmentDetail, int, error) {
	out := m.ordered()
	return out, len(out), nil
}

func (m *mockAssessmentRepo) FindByID(ctx context.Context, id string) (*models.AssessmentDetail, error) {
	if item, ok := m.items[id]; ok {
		cp := *item
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssessmentRepo) ListBySupervision(ctx context.Context, supervisionID string) ([]models.Assessment, error) {
	var out []models.Assessment
	for _, item := range m.ordered() {
		if item.SupervisionID == supervisionID {
			out = append(out, item.Assessment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AspectName < out[j].AspectName })
	return out, nil
}

func (m *mockAssessmentRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.AssessmentDetail, error) {
	var out []models.AssessmentDetail
	items := m.ordered()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].TeacherID == teacherID {
			out = append(out, items[i])
		}
	}
	return out, nil
}

func (m *mockAssessmentRepo) ListInPeriod(ctx context.Context, teacherID string, start, end time.Time) ([]models.AssessmentDetail, error) {
	var out []models.AssessmentDetail
	for _, item := range m.ordered() {
		if item.TeacherID == teacherID && !item.CreatedAt.Before(start) && !item.CreatedAt.After(end) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockAssessmentRepo) AspectExists(ctx context.Context, supervisionID, aspect string, excludeID *string) (bool, error) {
	for id, item := range m.items {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if item.SupervisionID == supervisionID && item.AspectName == aspect {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAssessmentRepo) Create(ctx context.Context, a *models.Assessment) error {
	m.createCalls++
	m.seq++
	if a.ID == "" {
		a.ID = fmt.Sprintf("as-%d", m.seq)
	}
	a.CreatedAt = time.Now().UTC()
	m.add(models.AssessmentDetail{Assessment: *a})
	return nil
}

func (m *mockAssessmentRepo) Update(ctx context.Context, a *models.Assessment) error {
	item, ok := m.items[a.ID]
	if !ok {
		return sql.ErrNoRows
	}
	item.Assessment = *a
	return nil
}

func (m *mockAssessmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockAssessmentRepo) DeleteBySupervision(ctx context.Context, supervisionID string) (int64, error) {
	var n int64
	for id, item := range m.items {
		if item.SupervisionID == supervisionID {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func newAssessmentFixture() (*AssessmentService, *mockAssessmentRepo) {
	teachers := newMockTeacherRepo(teacherFixture("t-1", "1"))
	supervisions := newMockSupervisionRepo(&models.SupervisionDetail{Supervision: models.Supervision{ID: "sv-1", SupervisorID: "s-1", TeacherID: "t-1"}})
	repo := newMockAssessmentRepo()
	return NewAssessmentService(repo, supervisions, teachers, nil, zap.NewNop()), repo
}

func TestAssessmentServiceCreateDuplicateAspect(t *testing.T) {
	svc, repo := newAssessmentFixture()
	req := models.CreateAssessmentRequest{SupervisionID: "sv-1", TeacherID: "t-1", AspectName: "Perencanaan", Score: 4}

	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, "Assessment for aspect 'Perencanaan' already exists in this supervision", appErrors.FromError(err).Message)
	assert.Equal(t, 1, repo.createCalls)
}

func TestAssessmentServiceCreateMissingSupervision(t *testing.T) {
	svc, repo := newAssessmentFixture()

	_, err := svc.Create(context.Background(), models.CreateAssessmentRequest{SupervisionID: "missing", TeacherID: "t-1", AspectName: "A", Score: 3})
	require.Error(t, err)
	assert.Equal(t, "Supervision not found", appErrors.FromError(err).Message)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Create(context.Background(), models.CreateAssessmentRequest{SupervisionID: "sv-1", TeacherID: "missing", AspectName: "A", Score: 3})
	assert.Equal(t, "Teacher not found", appErrors.FromError(err).Message)
	assert.Zero(t, repo.createCalls)
}

func TestAssessmentServiceScoreBounds(t *testing.T) {
	svc, _ := newAssessmentFixture()
	for _, score := range []int{0, 6} {
		_, err := svc.Create(context.Background(), models.CreateAssessmentRequest{SupervisionID: "sv-1", TeacherID: "t-1", AspectName: "A", Score: score})
		assert.True(t, errors.Is(err, appErrors.ErrValidation), "score %d", score)
	}
}

func TestAssessmentServiceCreateMultipleIsNotTransactional(t *testing.T) {
	svc, repo := newAssessmentFixture()
	result, err := svc.CreateMultiple(context.Background(), models.CreateMultipleAssessmentsRequest{Assessments: []models.CreateAssessmentRequest{
		{SupervisionID: "sv-1", TeacherID: "t-1", AspectName: "A", Score: 3},
		{SupervisionID: "sv-1", TeacherID: "t-1", AspectName: "A", Score: 4},
		{SupervisionID: "missing", TeacherID: "t-1", AspectName: "B", Score: 4},
		{SupervisionID: "sv-1", TeacherID: "t-1", AspectName: "B", Score: 5},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Results, 4)
	assert.True(t, result.Results[0].Success)
	assert.False(t, result.Results[1].Success)
	assert.Contains(t, result.Results[1].Error, "already exists")
	assert.Equal(t, "Supervision not found", result.Results[2].Error)
	assert.Len(t, repo.items, 2)

	raw, err := json.Marshal(result.Results[2])
	require.NoError(t, err)
	var failed map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &failed))
	assert.ElementsMatch(t, []string{"success", "data", "error"}, keysOf(failed))
	assert.Contains(t, string(failed["data"]), `"supervisionId":"missing"`)
}

func keysOf(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestAssessmentServiceTeacherSummary(t *testing.T) {
	svc, repo := newAssessmentFixture()

	empty, err := svc.TeacherSummary(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Zero(t, empty.AverageScore)
	assert.Zero(t, empty.TotalAssessments)
	assert.Empty(t, empty.Assessments)
	assert.Empty(t, empty.AspectSummary)

	for i := 0; i < 12; i++ {
		aspect := "A"
		if i%2 == 1 {
			aspect = "B"
		}
		repo.add(models.AssessmentDetail{Assessment: models.Assessment{ID: fmt.Sprintf("x-%d", i), TeacherID: "t-1", AspectName: aspect, Score: 3 + i%2*2}})
	}
	summary, err := svc.TeacherSummary(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 12, summary.TotalAssessments)
	assert.Len(t, summary.Assessments, 10)
	assert.Equal(t, "x-11", summary.Assessments[0].ID)
	assert.Equal(t, 4.0, summary.AverageScore)
	assert.Equal(t, 3.0, summary.AspectSummary["A"].Average)
	assert.Equal(t, 5.0, summary.AspectSummary["B"].Average)

	_, err = svc.TeacherSummary(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAssessmentServiceUpdateRechecksAspect(t *testing.T) {
	svc, repo := newAssessmentFixture()
	repo.add(models.AssessmentDetail{Assessment: models.Assessment{ID: "a", SupervisionID: "sv-1", AspectName: "A", Score: 3}})
	repo.add(models.AssessmentDetail{Assessment: models.Assessment{ID: "b", SupervisionID: "sv-1", AspectName: "B", Score: 3}})

	taken := "B"
	_, err := svc.Update(context.Background(), "a", models.UpdateAssessmentRequest{AspectName: &taken})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	score := 5
	updated, err := svc.Update(context.Background(), "a", models.UpdateAssessmentRequest{Score: &score})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Score)
	assert.Equal(t, "A", updated.AspectName)

	bad := 9
	_, err = svc.Update(context.Background(), "a", models.UpdateAssessmentRequest{Score: &bad})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAssessmentServiceDeleteBySupervision(t *testing.T) {
	svc, repo := newAssessmentFixture()
	repo.add(models.AssessmentDetail{Assessment: models.Assessment{ID: "a", SupervisionID: "sv-1", AspectName: "A"}})
	repo.add(models.AssessmentDetail{Assessment: models.Assessment{ID: "b", SupervisionID: "sv-1", AspectName: "B"}})

	n, err := svc.DeleteBySupervision(context.Background(), "sv-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = svc.DeleteBySupervision(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
