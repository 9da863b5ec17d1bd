package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
	"github.com/noah-isme/supervisi-api/pkg/jobs"
)

const (
	exportJobKind      = "report_export"
	exportRecoverLimit = 50
)

type exportStore interface {
	Create(ctx context.Context, job *models.ReportExport) error
	GetByID(ctx context.Context, id string) (*models.ReportExport, error)
	Update(ctx context.Context, id string, params repository.ExportUpdate) error
	ListUnfinished(ctx context.Context, limit int) ([]models.ReportExport, error)
}

type reportLookup interface {
	FindByID(ctx context.Context, id string) (*models.ReportDetail, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ReportExportConfig governs cleanup of stored files.
type ReportExportConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ReportExportService queues report exports and serves their signed downloads.
type ReportExportService struct {
	repo      exportStore
	reports   reportLookup
	queue     jobDispatcher
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportExportConfig
}

// NewReportExportService constructs the export orchestration service.
func NewReportExportService(repo exportStore, reports reportLookup, queue jobDispatcher, exporter *ExportService, validate *validator.Validate, logger *zap.Logger, cfg ReportExportConfig) *ReportExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportExportService{
		repo:      repo,
		reports:   reports,
		queue:     queue,
		exporter:  exporter,
		validator: ensureValidator(validate),
		logger:    logger,
		cfg:       cfg,
	}
}

func exportJob(job *models.ReportExport) jobs.Job {
	return jobs.Job{
		ID:      job.ID,
		Kind:    exportJobKind,
		Payload: models.ExportPayload{ExportID: job.ID, ReportID: job.ReportID, Format: job.Format},
	}
}

// Request persists a QUEUED export for a report and hands it to the worker pool.
func (s *ReportExportService) Request(ctx context.Context, principal models.Principal, reportID string, req models.CreateReportExportRequest) (*models.ReportExportStatus, error) {
	req.Format = models.ExportFormat(strings.ToLower(string(req.Format)))
	if err := validatePayload(s.validator, req, "invalid export payload"); err != nil {
		return nil, err
	}
	if _, err := s.reports.FindByID(ctx, reportID); err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Report with ID %s not found", reportID))
		}
		return nil, appErrors.Internal(err, "failed to load report")
	}

	job := &models.ReportExport{
		ReportID:  reportID,
		Format:    req.Format,
		Status:    models.ExportQueued,
		CreatedBy: principal.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Internal(err, "failed to create export")
	}
	if err := s.queue.Enqueue(exportJob(job)); err != nil {
		failed := models.ExportFailed
		msg := "failed to enqueue export"
		now := time.Now().UTC()
		if updateErr := s.repo.Update(ctx, job.ID, repository.ExportUpdate{Status: &failed, ErrorMessage: &msg, FinishedAt: &now}); updateErr != nil {
			s.logger.Warn("failed to mark export failed", zap.String("export_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Internal(err, "failed to enqueue export")
	}
	s.logger.Info("report export queued", zap.String("export_id", job.ID), zap.String("report_id", reportID), zap.String("format", string(job.Format)))
	return exportStatus(job), nil
}

// Status returns the polling view of an export. Teachers only see exports they requested.
func (s *ReportExportService) Status(ctx context.Context, principal models.Principal, exportID string) (*models.ReportExportStatus, error) {
	job, err := s.repo.GetByID(ctx, exportID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Export with ID %s not found", exportID))
		}
		return nil, appErrors.Internal(err, "failed to load export")
	}
	if principal.Role == models.RoleTeacher && job.CreatedBy != principal.UserID {
		return nil, appErrors.ErrForbidden
	}
	return exportStatus(job), nil
}

func exportStatus(job *models.ReportExport) *models.ReportExportStatus {
	resp := &models.ReportExportStatus{
		ID:         job.ID,
		ReportID:   job.ReportID,
		Format:     job.Format,
		Status:     job.Status,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.Status == models.ExportFinished {
		resp.DownloadURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}

// ResolveDownload validates a token against its export row and opens the stored file.
func (s *ReportExportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	claims, err := s.exporter.ParseToken(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, claims.ExportID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("Export not found")
		}
		return nil, appErrors.Internal(err, "failed to load export")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.exporter.Open(claims.Path)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(claims.Path),
		Format:    job.Format,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// RecoverPending replays QUEUED and PROCESSING exports after a restart.
func (s *ReportExportService) RecoverPending(ctx context.Context) {
	pending, err := s.repo.ListUnfinished(ctx, exportRecoverLimit)
	if err != nil {
		s.logger.Warn("failed to recover pending exports", zap.Error(err))
		return
	}
	for i := range pending {
		job := &pending[i]
		if job.Status == models.ExportProcessing {
			queued := models.ExportQueued
			if err := s.repo.Update(ctx, job.ID, repository.ExportUpdate{Status: &queued}); err != nil {
				s.logger.Warn("failed to reset export", zap.String("export_id", job.ID), zap.Error(err))
				continue
			}
		}
		if err := s.queue.Enqueue(exportJob(job)); err != nil {
			s.logger.Warn("failed to requeue export", zap.String("export_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("pending exports requeued", zap.Int("count", len(pending)))
	}
}

// StartCleanup boots a goroutine that purges expired export files periodically.
func (s *ReportExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.exporter.Cleanup(s.cfg.ResultTTL)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

type exportGenerator interface {
	Generate(exportID string, report *models.ReportDetail, format models.ExportFormat) (*ExportResult, error)
}

// ReportExportWorker bridges queue jobs to ExportService.
type ReportExportWorker struct {
	repo     exportStore
	reports  reportLookup
	exporter exportGenerator
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewReportExportWorker constructs a worker.
func NewReportExportWorker(repo exportStore, reports reportLookup, exporter exportGenerator, metrics *MetricsService, logger *zap.Logger) *ReportExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportExportWorker{repo: repo, reports: reports, exporter: exporter, metrics: metrics, logger: logger}
}

// Handle processes a queue job. Errors leave the export QUEUED so the queue can retry it.
func (w *ReportExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	started := time.Now()
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportProcessing
	if err := w.repo.Update(ctx, job.ID, repository.ExportUpdate{Status: &processing}); err != nil {
		return err
	}

	report, err := w.reports.FindByID(ctx, record.ReportID)
	if err == nil {
		var result *ExportResult
		result, err = w.exporter.Generate(record.ID, report, record.Format)
		if err == nil {
			finished := models.ExportFinished
			now := time.Now().UTC()
			clear := ""
			url := result.URL
			if err := w.repo.Update(ctx, job.ID, repository.ExportUpdate{
				Status:       &finished,
				ResultURL:    &url,
				ErrorMessage: &clear,
				FinishedAt:   &now,
			}); err != nil {
				w.logger.Warn("failed to mark export finished", zap.String("export_id", job.ID), zap.Error(err))
				return err
			}
			w.metrics.RecordExport(record.Format, models.ExportFinished, time.Since(started))
			return nil
		}
	}

	queued := models.ExportQueued
	msg := err.Error()
	if updateErr := w.repo.Update(ctx, job.ID, repository.ExportUpdate{Status: &queued, ErrorMessage: &msg}); updateErr != nil {
		w.logger.Warn("failed to mark export queued", zap.String("export_id", job.ID), zap.Error(updateErr))
	}
	return err
}

// OnFailure marks an export FAILED once the queue has exhausted its retries.
func (w *ReportExportWorker) OnFailure(ctx context.Context, job jobs.Job, cause error) {
	failed := models.ExportFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := w.repo.Update(context.WithoutCancel(ctx), job.ID, repository.ExportUpdate{Status: &failed, ErrorMessage: &msg, FinishedAt: &now}); err != nil {
		w.logger.Warn("failed to mark export failed", zap.String("export_id", job.ID), zap.Error(err))
	}
	format := models.ExportFormat("")
	if payload, ok := job.Payload.(models.ExportPayload); ok {
		format = payload.Format
	}
	w.metrics.RecordExport(format, models.ExportFailed, 0)
}
