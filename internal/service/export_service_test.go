package service

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, time.UTC, zap.NewNop())
	return svc, store
}

func exportReportFixture() *models.ReportDetail {
	recommendation := RecommendationFor(4.67)
	return &models.ReportDetail{
		Report: models.Report{
			ID:              "r-1",
			Title:           "Laporan Maret",
			Period:          "2024-03",
			Content:         "# Laporan Supervisi Guru\n\n**Periode:** 2024-03\n",
			AverageScore:    4.67,
			Recommendations: &recommendation,
			Status:          models.ReportDraft,
			GeneratedAt:     time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC),
		},
		SupervisorName: "Budi",
		TeacherName:    "Siti Aminah",
	}
}

func readStored(t *testing.T, svc *ExportService, rel string) []byte {
	t.Helper()
	f, err := svc.Open(rel)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	result, err := svc.Generate("exp-1", exportReportFixture(), models.ExportFormatCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/exports/download/"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))
	assert.Contains(t, result.RelativePath, "siti_aminah")

	body := string(readStored(t, svc, result.RelativePath))
	assert.Contains(t, body, "Periode,2024-03")
	assert.Contains(t, body, "Rekomendasi")

	claims, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", claims.ExportID)
	assert.Equal(t, result.RelativePath, claims.Path)
}

func TestExportServiceGeneratePDFAndXLSX(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	pdf, err := svc.Generate("exp-2", exportReportFixture(), models.ExportFormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(readStored(t, svc, pdf.RelativePath), []byte("%PDF")))

	xlsx, err := svc.Generate("exp-3", exportReportFixture(), models.ExportFormatXLSX)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(readStored(t, svc, xlsx.RelativePath), []byte("PK")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	_, err := svc.Generate("exp-4", exportReportFixture(), models.ExportFormat("docx"))
	require.Error(t, err)
}
