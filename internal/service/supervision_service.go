package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

type supervisionRepository interface {
	List(ctx context.Context, filter models.SupervisionFilter) ([]models.SupervisionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SupervisionDetail, error)
	ExistsAt(ctx context.Context, supervisorID, teacherID string, date time.Time, excludeID *string) (bool, error)
	Create(ctx context.Context, s *models.Supervision) error
	Update(ctx context.Context, s *models.Supervision) error
	UpdateStatus(ctx context.Context, id string, status models.SupervisionStatus) error
	Delete(ctx context.Context, id string) error
	StatRows(ctx context.Context, supervisorID, teacherID, timezone string) ([]repository.SupervisionStatRow, error)
}

type supervisorLookup interface {
	FindByID(ctx context.Context, id string) (*models.SupervisorDetail, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
}

type supervisionAssessments interface {
	ListBySupervision(ctx context.Context, supervisionID string) ([]models.Assessment, error)
}

func requireSupervisor(ctx context.Context, repo supervisorLookup, id string) (*models.SupervisorDetail, error) {
	supervisor, err := repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("Supervisor not found")
		}
		return nil, appErrors.Internal(err, "failed to load supervisor")
	}
	return supervisor, nil
}

func requireTeacher(ctx context.Context, repo teacherLookup, id string) (*models.TeacherDetail, error) {
	teacher, err := repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("Teacher not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	return teacher, nil
}

// SupervisionService manages supervision sessions.
type SupervisionService struct {
	repo        supervisionRepository
	supervisors supervisorLookup
	teachers    teacherLookup
	assessments supervisionAssessments
	cache       *CacheService
	validator   *validator.Validate
	timezone    string
	logger      *zap.Logger
}

// NewSupervisionService constructs a SupervisionService. Monthly stats are bucketed in timezone.
func NewSupervisionService(repo supervisionRepository, supervisors supervisorLookup, teachers teacherLookup, assessments supervisionAssessments, cache *CacheService, validate *validator.Validate, timezone string, logger *zap.Logger) *SupervisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timezone == "" {
		timezone = "UTC"
	}
	return &SupervisionService{
		repo:        repo,
		supervisors: supervisors,
		teachers:    teachers,
		assessments: assessments,
		cache:       cache,
		validator:   ensureValidator(validate),
		timezone:    timezone,
		logger:      logger,
	}
}

// List returns sessions ordered by date, newest first.
func (s *SupervisionService) List(ctx context.Context, filter models.SupervisionFilter) ([]models.SupervisionDetail, int, error) {
	filter.Skip, filter.Take = models.NormalizePage(filter.Skip, filter.Take)
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, badRequest(fmt.Sprintf("Invalid status: %s", *filter.Status))
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, 0, badRequest(fmt.Sprintf("Invalid type: %s", *filter.Type))
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list supervisions")
	}
	return items, total, nil
}

// Get returns a session with its assessments.
func (s *SupervisionService) Get(ctx context.Context, id string) (*models.SupervisionDetail, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	assessments, err := s.assessments.ListBySupervision(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load assessments")
	}
	if assessments == nil {
		assessments = []models.Assessment{}
	}
	item.Assessments = assessments
	return item, nil
}

func (s *SupervisionService) load(ctx context.Context, id string) (*models.SupervisionDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Supervision with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load supervision")
	}
	return item, nil
}

func (s *SupervisionService) ensureFreeSlot(ctx context.Context, supervisorID, teacherID string, date time.Time, excludeID *string) error {
	exists, err := s.repo.ExistsAt(ctx, supervisorID, teacherID, date, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check supervision date")
	}
	if exists {
		return conflict("Supervision already exists for this teacher at this date")
	}
	return nil
}

// Create records a new session.
func (s *SupervisionService) Create(ctx context.Context, req models.CreateSupervisionRequest) (*models.SupervisionDetail, error) {
	if err := validatePayload(s.validator, req, "invalid supervision payload"); err != nil {
		return nil, err
	}
	if req.Date.IsZero() {
		return nil, appErrors.Validation(nil, "invalid supervision payload", "date is required")
	}
	supervisor, err := requireSupervisor(ctx, s.supervisors, req.SupervisorID)
	if err != nil {
		return nil, err
	}
	teacher, err := requireTeacher(ctx, s.teachers, req.TeacherID)
	if err != nil {
		return nil, err
	}
	date := req.Date.UTC()
	if err := s.ensureFreeSlot(ctx, req.SupervisorID, req.TeacherID, date, nil); err != nil {
		return nil, err
	}

	item := &models.Supervision{
		SupervisorID: req.SupervisorID,
		TeacherID:    req.TeacherID,
		Type:         req.Type,
		Date:         date,
		Notes:        req.Notes,
		Status:       req.Status,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("Supervision already exists for this teacher at this date")
		}
		return nil, appErrors.Internal(err, "failed to create supervision")
	}
	s.cache.Invalidate(ctx, cacheKeySupervisionStats)
	return &models.SupervisionDetail{Supervision: *item, SupervisorName: supervisor.Name, TeacherName: teacher.Name}, nil
}

// Update applies a partial update. A changed date is re-checked for collisions.
func (s *SupervisionService) Update(ctx context.Context, id string, req models.UpdateSupervisionRequest) (*models.SupervisionDetail, error) {
	if err := validatePayload(s.validator, req, "invalid supervision payload"); err != nil {
		return nil, err
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	item := existing.Supervision
	if req.Date != nil {
		date := req.Date.UTC()
		if !date.Equal(item.Date) {
			if err := s.ensureFreeSlot(ctx, item.SupervisorID, item.TeacherID, date, &id); err != nil {
				return nil, err
			}
		}
		item.Date = date
	}
	if req.Type != nil {
		item.Type = *req.Type
	}
	if req.Notes != nil {
		item.Notes = req.Notes
	}
	if req.Status != nil {
		item.Status = *req.Status
	}

	if err := s.repo.Update(ctx, &item); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("Supervision already exists for this teacher at this date")
		}
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Supervision with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update supervision")
	}
	s.cache.Invalidate(ctx, cacheKeySupervisionStats)
	existing.Supervision = item
	return existing, nil
}

// UpdateStatus moves a session to status.
func (s *SupervisionService) UpdateStatus(ctx context.Context, id string, status models.SupervisionStatus) (*models.SupervisionDetail, error) {
	if !status.Valid() {
		return nil, badRequest(fmt.Sprintf("Invalid status: %s", status))
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Supervision with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update supervision status")
	}
	s.cache.Invalidate(ctx, cacheKeySupervisionStats)
	existing.Status = status
	return existing, nil
}

// Delete removes a session together with its assessments.
func (s *SupervisionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound(fmt.Sprintf("Supervision with ID %s not found", id))
		}
		return appErrors.Internal(err, "failed to delete supervision")
	}
	s.cache.Invalidate(ctx, cacheKeySupervisionStats)
	return nil
}

// Stats counts sessions by status, type and month. Every known status and type is present.
func (s *SupervisionService) Stats(ctx context.Context, supervisorID, teacherID string) (*models.SupervisionStats, error) {
	key := cacheKey(cacheKeySupervisionStats, supervisorID, teacherID)
	return cached(ctx, s.cache, key, func() (*models.SupervisionStats, error) {
		rows, err := s.repo.StatRows(ctx, supervisorID, teacherID, s.timezone)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load supervision stats")
		}
		stats := &models.SupervisionStats{
			ByStatus: make(map[string]int, len(models.SupervisionStatuses)),
			ByType:   make(map[string]int, len(models.SupervisionTypes)),
			ByMonth:  make(map[string]int),
		}
		for _, status := range models.SupervisionStatuses {
			stats.ByStatus[string(status)] = 0
		}
		for _, typ := range models.SupervisionTypes {
			stats.ByType[string(typ)] = 0
		}
		for _, row := range rows {
			stats.Total += row.Count
			stats.ByStatus[string(row.Status)] += row.Count
			stats.ByType[string(row.Type)] += row.Count
			stats.ByMonth[row.Month] += row.Count
		}
		return stats, nil
	})
}
