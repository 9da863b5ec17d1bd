package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

type reportRepository interface {
	List(ctx context.Context, filter models.ReportFilter) ([]models.ReportDetail, int, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ReportDetail, error)
	FindByID(ctx context.Context, id string) (*models.ReportDetail, error)
	ExistsForPeriod(ctx context.Context, supervisorID, teacherID, period string, excludeID *string) (bool, error)
	Create(ctx context.Context, report *models.Report) error
	Update(ctx context.Context, report *models.Report) error
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error
	Delete(ctx context.Context, id string) error
	StatRows(ctx context.Context, supervisorID string) ([]repository.ReportStatRow, error)
}

type periodAssessments interface {
	ListInPeriod(ctx context.Context, teacherID string, start, end time.Time) ([]models.AssessmentDetail, error)
}

// ReportService manages supervision reports and generates them from assessments.
type ReportService struct {
	repo        reportRepository
	supervisors supervisorLookup
	teachers    teacherLookup
	assessments periodAssessments
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	location    *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewReportService constructs a ReportService. Periods are resolved in loc.
func NewReportService(repo reportRepository, supervisors supervisorLookup, teachers teacherLookup, assessments periodAssessments, cache *CacheService, metrics *MetricsService, validate *validator.Validate, loc *time.Location, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		repo:        repo,
		supervisors: supervisors,
		teachers:    teachers,
		assessments: assessments,
		cache:       cache,
		metrics:     metrics,
		validator:   ensureValidator(validate),
		location:    loc,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func periodConflict(period string) error {
	return conflict(fmt.Sprintf("Report already exists for this teacher in period %s", period))
}

func (s *ReportService) ensurePeriodFree(ctx context.Context, supervisorID, teacherID, period string, excludeID *string) error {
	exists, err := s.repo.ExistsForPeriod(ctx, supervisorID, teacherID, period, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check report period")
	}
	if exists {
		return periodConflict(period)
	}
	return nil
}

func (s *ReportService) insert(ctx context.Context, report *models.Report) error {
	if err := s.repo.Create(ctx, report); err != nil {
		if repository.IsUniqueViolation(err) {
			return periodConflict(report.Period)
		}
		return appErrors.Internal(err, "failed to create report")
	}
	s.cache.Invalidate(ctx, cacheKeyReportStats)
	return nil
}

// Create stores a manually written report.
func (s *ReportService) Create(ctx context.Context, req models.CreateReportRequest) (*models.ReportDetail, error) {
	if err := validatePayload(s.validator, req, "invalid report payload"); err != nil {
		return nil, err
	}
	supervisor, err := requireSupervisor(ctx, s.supervisors, req.SupervisorID)
	if err != nil {
		return nil, err
	}
	teacher, err := requireTeacher(ctx, s.teachers, req.TeacherID)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePeriodFree(ctx, req.SupervisorID, req.TeacherID, req.Period, nil); err != nil {
		return nil, err
	}

	report := &models.Report{
		SupervisorID:    req.SupervisorID,
		TeacherID:       req.TeacherID,
		Title:           strings.TrimSpace(req.Title),
		Content:         req.Content,
		Period:          req.Period,
		Recommendations: req.Recommendations,
		Status:          req.Status,
		GeneratedAt:     s.now(),
	}
	if req.AverageScore != nil {
		report.AverageScore = round2(*req.AverageScore)
	}
	if report.Status == "" {
		report.Status = models.ReportDraft
	}
	if err := s.insert(ctx, report); err != nil {
		return nil, err
	}
	return &models.ReportDetail{Report: *report, SupervisorName: supervisor.Name, TeacherName: teacher.Name}, nil
}

// Generate aggregates a teacher's assessments in a month into a DRAFT report.
func (s *ReportService) Generate(ctx context.Context, req models.GenerateReportRequest) (*models.ReportDetail, error) {
	if err := validatePayload(s.validator, req, "invalid report payload"); err != nil {
		return nil, err
	}
	supervisor, err := requireSupervisor(ctx, s.supervisors, req.SupervisorID)
	if err != nil {
		return nil, err
	}
	teacher, err := requireTeacher(ctx, s.teachers, req.TeacherID)
	if err != nil {
		return nil, err
	}
	if err := s.ensurePeriodFree(ctx, req.SupervisorID, req.TeacherID, req.Period, nil); err != nil {
		return nil, err
	}

	start, end, err := PeriodBounds(req.Period, s.location)
	if err != nil {
		return nil, appErrors.Validation(nil, "invalid report payload", "period must be in YYYY-MM format")
	}
	items, err := s.assessments.ListInPeriod(ctx, req.TeacherID, start, end)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load assessments for period")
	}

	result := Aggregate(AggregateInput{
		Period:      req.Period,
		TeacherName: teacher.Name,
		Subject:     teacher.Subject,
		Classroom:   teacher.Classroom,
		Assessments: items,
		Location:    s.location,
	})

	recommendations := result.Recommendations
	report := &models.Report{
		SupervisorID:    req.SupervisorID,
		TeacherID:       req.TeacherID,
		Title:           strings.TrimSpace(req.Title),
		Content:         result.Content,
		Period:          req.Period,
		AverageScore:    result.AverageScore,
		Recommendations: &recommendations,
		Status:          models.ReportDraft,
		GeneratedAt:     s.now(),
	}
	if err := s.insert(ctx, report); err != nil {
		return nil, err
	}
	s.metrics.RecordReportGenerated(result.AverageScore)
	s.logger.Info("report generated",
		zap.String("report_id", report.ID),
		zap.String("teacher_id", req.TeacherID),
		zap.String("period", req.Period),
		zap.Int("assessments", len(items)),
		zap.Float64("average", result.AverageScore),
	)
	return &models.ReportDetail{Report: *report, SupervisorName: supervisor.Name, TeacherName: teacher.Name}, nil
}

// List returns reports ordered by generation time, newest first.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) ([]models.ReportDetail, int, error) {
	filter.Skip, filter.Take = models.NormalizePage(filter.Skip, filter.Take)
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, badRequest(fmt.Sprintf("Invalid status: %s", *filter.Status))
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list reports")
	}
	return items, total, nil
}

// ListByTeacher returns a teacher's reports, latest period first.
func (s *ReportService) ListByTeacher(ctx context.Context, teacherID string) ([]models.ReportDetail, error) {
	if _, err := requireTeacher(ctx, s.teachers, teacherID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list teacher reports")
	}
	if items == nil {
		items = []models.ReportDetail{}
	}
	return items, nil
}

// Get returns one report.
func (s *ReportService) Get(ctx context.Context, id string) (*models.ReportDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Report with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load report")
	}
	return item, nil
}

// Update applies a partial update. A changed period is re-checked for uniqueness.
func (s *ReportService) Update(ctx context.Context, id string, req models.UpdateReportRequest) (*models.ReportDetail, error) {
	if err := validatePayload(s.validator, req, "invalid report payload"); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := existing.Report
	if req.Period != nil && *req.Period != report.Period {
		if err := s.ensurePeriodFree(ctx, report.SupervisorID, report.TeacherID, *req.Period, &id); err != nil {
			return nil, err
		}
		report.Period = *req.Period
	}
	if req.Title != nil {
		report.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		report.Content = *req.Content
	}
	if req.AverageScore != nil {
		report.AverageScore = round2(*req.AverageScore)
	}
	if req.Recommendations != nil {
		report.Recommendations = req.Recommendations
	}
	if req.Status != nil {
		report.Status = *req.Status
	}

	if err := s.repo.Update(ctx, &report); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, periodConflict(report.Period)
		}
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Report with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update report")
	}
	s.cache.Invalidate(ctx, cacheKeyReportStats)
	existing.Report = report
	return existing, nil
}

// UpdateStatus moves a report between DRAFT, PUBLISHED and ARCHIVED.
func (s *ReportService) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) (*models.ReportDetail, error) {
	if !status.Valid() {
		return nil, badRequest(fmt.Sprintf("Invalid status: %s", status))
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Report with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update report status")
	}
	s.cache.Invalidate(ctx, cacheKeyReportStats)
	existing.Status = status
	return existing, nil
}

// Delete removes a report. Its export jobs go with it.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound(fmt.Sprintf("Report with ID %s not found", id))
		}
		return appErrors.Internal(err, "failed to delete report")
	}
	s.cache.Invalidate(ctx, cacheKeyReportStats)
	return nil
}

// Stats counts reports by status and period. The average ignores reports without a score.
func (s *ReportService) Stats(ctx context.Context, supervisorID string) (*models.ReportStats, error) {
	key := cacheKey(cacheKeyReportStats, supervisorID)
	return cached(ctx, s.cache, key, func() (*models.ReportStats, error) {
		rows, err := s.repo.StatRows(ctx, supervisorID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load report stats")
		}
		stats := &models.ReportStats{
			Total:    len(rows),
			ByStatus: make(map[string]int, len(models.ReportStatuses)),
			ByPeriod: make(map[string]int),
		}
		for _, status := range models.ReportStatuses {
			stats.ByStatus[string(status)] = 0
		}
		var sum float64
		var scored int
		for _, row := range rows {
			stats.ByStatus[string(row.Status)]++
			stats.ByPeriod[row.Period]++
			if row.AverageScore != 0 {
				sum += row.AverageScore
				scored++
			}
		}
		if scored > 0 {
			stats.AverageScore = round2(sum / float64(scored))
		}
		return stats, nil
	})
}
