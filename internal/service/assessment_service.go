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

const teacherSummaryRecent = 10

type assessmentRepository interface {
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.AssessmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AssessmentDetail, error)
	ListBySupervision(ctx context.Context, supervisionID string) ([]models.Assessment, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AssessmentDetail, error)
	ListInPeriod(ctx context.Context, teacherID string, start, end time.Time) ([]models.AssessmentDetail, error)
	AspectExists(ctx context.Context, supervisionID, aspect string, excludeID *string) (bool, error)
	Create(ctx context.Context, a *models.Assessment) error
	Update(ctx context.Context, a *models.Assessment) error
	Delete(ctx context.Context, id string) error
	DeleteBySupervision(ctx context.Context, supervisionID string) (int64, error)
}

type supervisionLookup interface {
	FindByID(ctx context.Context, id string) (*models.SupervisionDetail, error)
}

// AssessmentService manages per-aspect scores within supervisions.
type AssessmentService struct {
	repo         assessmentRepository
	supervisions supervisionLookup
	teachers     teacherLookup
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewAssessmentService constructs an AssessmentService.
func NewAssessmentService(repo assessmentRepository, supervisions supervisionLookup, teachers teacherLookup, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{repo: repo, supervisions: supervisions, teachers: teachers, validator: ensureValidator(validate), logger: logger}
}

func aspectConflict(aspect string) error {
	return conflict(fmt.Sprintf("Assessment for aspect '%s' already exists in this supervision", aspect))
}

func (s *AssessmentService) requireSupervision(ctx context.Context, id string) error {
	if _, err := s.supervisions.FindByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound("Supervision not found")
		}
		return appErrors.Internal(err, "failed to load supervision")
	}
	return nil
}

func (s *AssessmentService) ensureAspectFree(ctx context.Context, supervisionID, aspect string, excludeID *string) error {
	exists, err := s.repo.AspectExists(ctx, supervisionID, aspect, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check assessment aspect")
	}
	if exists {
		return aspectConflict(aspect)
	}
	return nil
}

// Create scores one aspect of a supervision.
func (s *AssessmentService) Create(ctx context.Context, req models.CreateAssessmentRequest) (*models.Assessment, error) {
	if err := validatePayload(s.validator, req, "invalid assessment payload"); err != nil {
		return nil, err
	}
	if err := s.requireSupervision(ctx, req.SupervisionID); err != nil {
		return nil, err
	}
	if _, err := requireTeacher(ctx, s.teachers, req.TeacherID); err != nil {
		return nil, err
	}
	aspect := strings.TrimSpace(req.AspectName)
	if err := s.ensureAspectFree(ctx, req.SupervisionID, aspect, nil); err != nil {
		return nil, err
	}

	assessment := &models.Assessment{
		SupervisionID: req.SupervisionID,
		TeacherID:     req.TeacherID,
		AspectName:    aspect,
		Score:         req.Score,
		Feedback:      req.Feedback,
	}
	if err := s.repo.Create(ctx, assessment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, aspectConflict(aspect)
		}
		return nil, appErrors.Internal(err, "failed to create assessment")
	}
	return assessment, nil
}

// CreateMultiple creates each assessment in order. Failures are reported per item and do not
// roll back earlier successes.
func (s *AssessmentService) CreateMultiple(ctx context.Context, req models.CreateMultipleAssessmentsRequest) (*models.MultipleAssessmentsResult, error) {
	if len(req.Assessments) == 0 {
		return nil, appErrors.Validation(nil, "invalid assessments payload", "assessments is required")
	}
	result := &models.MultipleAssessmentsResult{Results: make([]models.AssessmentResult, 0, len(req.Assessments))}
	for _, item := range req.Assessments {
		created, err := s.Create(ctx, item)
		if err != nil {
			result.Failed++
			result.Results = append(result.Results, models.AssessmentResult{
				Success: false,
				Data:    item,
				Error:   appErrors.FromError(err).Message,
			})
			continue
		}
		result.Created++
		result.Results = append(result.Results, models.AssessmentResult{Success: true, Data: created})
	}
	s.logger.Debug("multiple assessments processed", zap.Int("created", result.Created), zap.Int("failed", result.Failed))
	return result, nil
}

// List returns assessments ordered by creation time, newest first.
func (s *AssessmentService) List(ctx context.Context, filter models.AssessmentFilter) ([]models.AssessmentDetail, int, error) {
	filter.Skip, filter.Take = models.NormalizePage(filter.Skip, filter.Take)
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list assessments")
	}
	return items, total, nil
}

// Get returns one assessment.
func (s *AssessmentService) Get(ctx context.Context, id string) (*models.AssessmentDetail, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Assessment with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load assessment")
	}
	return item, nil
}

// ListBySupervision returns a session's assessments ordered by aspect name.
func (s *AssessmentService) ListBySupervision(ctx context.Context, supervisionID string) ([]models.Assessment, error) {
	if err := s.requireSupervision(ctx, supervisionID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListBySupervision(ctx, supervisionID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assessments")
	}
	if items == nil {
		items = []models.Assessment{}
	}
	return items, nil
}

// TeacherSummary aggregates every assessment of a teacher.
func (s *AssessmentService) TeacherSummary(ctx context.Context, teacherID string) (*models.TeacherAssessmentSummary, error) {
	teacher, err := requireTeacher(ctx, s.teachers, teacherID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list teacher assessments")
	}

	summary := &models.TeacherAssessmentSummary{
		Teacher:          teacher,
		TotalAssessments: len(items),
		Assessments:      []models.AssessmentDetail{},
		AspectSummary:    make(map[string]models.AspectStat),
	}
	if len(items) == 0 {
		return summary, nil
	}

	scores := make([]int, len(items))
	byAspect := make(map[string][]int)
	for i, item := range items {
		scores[i] = item.Score
		byAspect[item.AspectName] = append(byAspect[item.AspectName], item.Score)
	}
	summary.AverageScore = round2(mean(scores))
	for aspect, aspectScores := range byAspect {
		summary.AspectSummary[aspect] = models.AspectStat{Scores: aspectScores, Average: round2(mean(aspectScores))}
	}
	recent := items
	if len(recent) > teacherSummaryRecent {
		recent = recent[:teacherSummaryRecent]
	}
	summary.Assessments = recent
	return summary, nil
}

// Update applies a partial update. A renamed aspect is re-checked for uniqueness.
func (s *AssessmentService) Update(ctx context.Context, id string, req models.UpdateAssessmentRequest) (*models.AssessmentDetail, error) {
	if err := validatePayload(s.validator, req, "invalid assessment payload"); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	assessment := existing.Assessment
	if req.AspectName != nil {
		aspect := strings.TrimSpace(*req.AspectName)
		if aspect != assessment.AspectName {
			if err := s.ensureAspectFree(ctx, assessment.SupervisionID, aspect, &id); err != nil {
				return nil, err
			}
		}
		assessment.AspectName = aspect
	}
	if req.Score != nil {
		assessment.Score = *req.Score
	}
	if req.Feedback != nil {
		assessment.Feedback = req.Feedback
	}

	if err := s.repo.Update(ctx, &assessment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, aspectConflict(assessment.AspectName)
		}
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Assessment with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update assessment")
	}
	existing.Assessment = assessment
	return existing, nil
}

// Delete removes one assessment.
func (s *AssessmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound(fmt.Sprintf("Assessment with ID %s not found", id))
		}
		return appErrors.Internal(err, "failed to delete assessment")
	}
	return nil
}

// DeleteBySupervision removes every assessment of a session and returns how many were deleted.
func (s *AssessmentService) DeleteBySupervision(ctx context.Context, supervisionID string) (int64, error) {
	if err := s.requireSupervision(ctx, supervisionID); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteBySupervision(ctx, supervisionID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to delete assessments")
	}
	return n, nil
}
