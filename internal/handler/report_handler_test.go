package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervisi-api/internal/middleware"
	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/service"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

type reportServiceMock struct {
	reportService
	generated    models.GenerateReportRequest
	generateResp *models.ReportDetail
	generateErr  error
	lastFilter   models.ReportFilter
	lastStatus   models.ReportStatus
}

func (m *reportServiceMock) Generate(ctx context.Context, req models.GenerateReportRequest) (*models.ReportDetail, error) {
	m.generated = req
	return m.generateResp, m.generateErr
}

func (m *reportServiceMock) List(ctx context.Context, filter models.ReportFilter) ([]models.ReportDetail, int, error) {
	m.lastFilter = filter
	return []models.ReportDetail{{Report: models.Report{ID: "r-1"}}}, 1, nil
}

func (m *reportServiceMock) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) (*models.ReportDetail, error) {
	m.lastStatus = status
	return &models.ReportDetail{Report: models.Report{ID: id, Status: status}}, nil
}

type exportServiceMock struct {
	requested   models.CreateReportExportRequest
	requestedBy models.Principal
	statusErr   error
	download    *service.ReportDownload
	downloadErr error
}

func (m *exportServiceMock) Request(ctx context.Context, principal models.Principal, reportID string, req models.CreateReportExportRequest) (*models.ReportExportStatus, error) {
	m.requested = req
	m.requestedBy = principal
	return &models.ReportExportStatus{ID: "exp-1", ReportID: reportID, Format: req.Format, Status: models.ExportQueued}, nil
}

func (m *exportServiceMock) Status(ctx context.Context, principal models.Principal, exportID string) (*models.ReportExportStatus, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &models.ReportExportStatus{ID: exportID, Status: models.ExportFinished}, nil
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		generateResp: &models.ReportDetail{Report: models.Report{ID: "r-1", AverageScore: 4.67, Status: models.ReportDraft}},
	}
	handler := NewReportHandler(mockSvc, &exportServiceMock{}, nil)

	payload, _ := json.Marshal(models.GenerateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-03", Title: "Laporan Maret"})
	c, w := newGinContext(http.MethodPost, "/reports/generate", payload)

	handler.Generate(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2024-03", mockSvc.generated.Period)

	var body struct {
		Message string              `json:"message"`
		Data    models.ReportDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Report generated successfully", body.Message)
	assert.Equal(t, 4.67, body.Data.AverageScore)
}

func TestReportHandlerGenerateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		generateErr: appErrors.Clone(appErrors.ErrConflict, "Report already exists for this teacher in period 2024-03"),
	}
	handler := NewReportHandler(mockSvc, &exportServiceMock{}, nil)

	payload, _ := json.Marshal(models.GenerateReportRequest{SupervisorID: "s-1", TeacherID: "t-1", Period: "2024-03", Title: "x"})
	c, w := newGinContext(http.MethodPost, "/reports/generate", payload)

	handler.Generate(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "period 2024-03")
}

func TestReportHandlerGenerateMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{}, &exportServiceMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/reports/generate", []byte("{"))

	handler.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerListParsesQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{}
	handler := NewReportHandler(mockSvc, &exportServiceMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/reports?status=published&period=2024-03&skip=5&take=500", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Status)
	assert.Equal(t, models.ReportPublished, *mockSvc.lastFilter.Status)
	assert.Equal(t, "2024-03", mockSvc.lastFilter.Period)
	assert.Equal(t, 5, mockSvc.lastFilter.Skip)
	assert.Equal(t, models.MaxTake, mockSvc.lastFilter.Take)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 100, body["take"])
}

func TestReportHandlerUpdateStatusUppercases(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{}
	handler := NewReportHandler(mockSvc, &exportServiceMock{}, nil)

	c, w := newGinContext(http.MethodPut, "/reports/r-1/status/archived", nil)
	c.Params = gin.Params{{Key: "id", Value: "r-1"}, {Key: "status", Value: "archived"}}

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReportArchived, mockSvc.lastStatus)
}

func TestReportHandlerRequestExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exports := &exportServiceMock{}
	handler := NewReportHandler(&reportServiceMock{}, exports, nil)

	payload, _ := json.Marshal(models.CreateReportExportRequest{Format: models.ExportFormatPDF})
	c, w := newGinContext(http.MethodPost, "/reports/r-1/exports", payload)
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleSupervisor})

	handler.RequestExport(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ExportFormatPDF, exports.requested.Format)
	assert.Equal(t, "u-1", exports.requestedBy.UserID)
}

func TestReportHandlerExportStatusRequiresPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{}, &exportServiceMock{}, nil)

	c, w := newGinContext(http.MethodGet, "/reports/exports/exp-1", nil)
	c.Params = gin.Params{{Key: "exportId", Value: "exp-1"}}

	handler.ExportStatus(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandlerExportStatusForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exports := &exportServiceMock{statusErr: appErrors.Clone(appErrors.ErrForbidden, "forbidden")}
	handler := NewReportHandler(&reportServiceMock{}, exports, nil)

	c, w := newGinContext(http.MethodGet, "/reports/exports/exp-1", nil)
	c.Params = gin.Params{{Key: "exportId", Value: "exp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-9", Role: models.RoleTeacher})

	handler.ExportStatus(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportHandlerDownloadExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp("", "report*.csv")
	require.NoError(t, err)
	defer os.Remove(file.Name())
	_, _ = file.WriteString("Field,Value\n")
	_, _ = file.Seek(0, 0)

	exports := &exportServiceMock{
		download: &service.ReportDownload{
			File:      file,
			Filename:  "report_2024-03_siti.csv",
			Format:    models.ExportFormatCSV,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	handler := NewReportHandler(&reportServiceMock{}, exports, nil)

	c, w := newGinContext(http.MethodGet, "/reports/exports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}

	handler.DownloadExport(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report_2024-03_siti.csv")
	assert.Equal(t, "Field,Value\n", w.Body.String())
}

func TestReportHandlerDownloadInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exports := &exportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid download token")}
	handler := NewReportHandler(&reportServiceMock{}, exports, nil)

	c, w := newGinContext(http.MethodGet, "/reports/exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.DownloadExport(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
