package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervisi-api/internal/models"
)

func TestReportCreateDefaultsToDraft(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	report := &models.Report{SupervisorID: "s1", TeacherID: "t1", Title: "x", Content: "y", Period: "2024-05"}
	require.NoError(t, repo.Create(context.Background(), report))
	assert.Equal(t, models.ReportDraft, report.Status)
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportExistsForPeriod(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM reports WHERE supervisor_id = $1 AND teacher_id = $2 AND period = $3)")).
		WithArgs("s1", "t1", "2024-05").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForPeriod(context.Background(), "s1", "t1", "2024-05", nil)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReportListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	status := models.ReportPublished
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND r.teacher_id = $1 AND r.status = $2 ORDER BY r.generated_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("t1", "PUBLISHED").
		WillReturnRows(sqlmock.NewRows([]string{"id", "supervisor_id", "teacher_id", "title", "content", "period", "average_score", "recommendations", "status", "generated_at", "created_at", "updated_at", "supervisor_name", "teacher_name"}).
			AddRow("r1", "s1", "t1", "T", "C", "2024-05", 4.67, nil, "PUBLISHED", now, now, now, "Pak Budi", "Bu Siti"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports r WHERE 1=1 AND r.teacher_id = $1 AND r.status = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ReportFilter{TeacherID: "t1", Status: &status, Take: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.InDelta(t, 4.67, items[0].AverageScore, 0.001)
}

func TestReportExportUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportExportRepository(db)

	now := time.Now()
	status := models.ExportFinished
	url := "/api/v1/reports/exports/download/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_exports SET status = $1, result_url = $2, finished_at = $3 WHERE id = $4")).
		WithArgs("FINISHED", url, now, "exp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "exp-1", ExportUpdate{Status: &status, ResultURL: &url, FinishedAt: &now}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
