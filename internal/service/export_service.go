package service

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/pkg/export"
	"github.com/noah-isme/supervisi-api/pkg/storage"
)

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	Sweep(maxAge time.Duration) ([]string, error)
}

type documentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders reports into files and signs their download links.
type ExportService struct {
	storage   fileStorage
	renderers map[models.ExportFormat]documentRenderer
	signer    *storage.SignedURLSigner
	location  *time.Location
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService with the csv, pdf and xlsx renderers.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, loc *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{
		storage: store,
		renderers: map[models.ExportFormat]documentRenderer{
			models.ExportFormatCSV:  export.NewCSVExporter(),
			models.ExportFormatPDF:  export.NewPDFExporter(),
			models.ExportFormatXLSX: export.NewXLSXExporter(),
		},
		signer:   signer,
		location: loc,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders report in format, stores the file and returns a signed link for exportID.
func (s *ExportService) Generate(exportID string, report *models.ReportDetail, format models.ExportFormat) (*ExportResult, error) {
	if report == nil {
		return nil, fmt.Errorf("report nil")
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	payload, err := renderer.RenderDocument(s.buildDocument(report))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(report, format), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Sign(exportID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/exports/download/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates a download token. Expired tokens still return their claims.
func (s *ExportService) ParseToken(token string) (storage.DownloadToken, error) {
	return s.signer.Verify(token)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl, defaulting to the configured ResultTTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.Sweep(ttl)
}

func (s *ExportService) buildDocument(report *models.ReportDetail) export.Document {
	fields := []export.Field{
		{Label: "Periode", Value: report.Period},
		{Label: "Guru", Value: report.TeacherName},
		{Label: "Supervisor", Value: report.SupervisorName},
		{Label: "Status", Value: string(report.Status)},
		{Label: "Rata-rata Skor", Value: fmt.Sprintf("%.2f", report.AverageScore)},
		{Label: "Dibuat", Value: localDate(report.GeneratedAt, s.location)},
	}
	body := report.Content
	if report.Recommendations != nil && *report.Recommendations != "" {
		body = strings.TrimRight(body, "\n") + "\n\n## Rekomendasi\n" + *report.Recommendations + "\n"
	}
	return export.Document{
		Title:  report.Title,
		Fields: fields,
		Body:   body,
		Footer: "Diekspor " + s.now().In(s.location).Format("02/01/2006 15:04"),
	}
}

func (s *ExportService) buildFilename(report *models.ReportDetail, format models.ExportFormat) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("report_%s_%s_%s.%s", sanitizeFilename(report.Period), sanitizeFilename(report.TeacherName), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
