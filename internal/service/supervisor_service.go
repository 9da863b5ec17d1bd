package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

type supervisorRepository interface {
	List(ctx context.Context, filter models.SupervisorFilter) ([]models.SupervisorDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SupervisorDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.SupervisorDetail, error)
	ExistsByNIP(ctx context.Context, nip string, excludeID *string) (bool, error)
	Create(ctx context.Context, supervisor *models.Supervisor) error
	Update(ctx context.Context, supervisor *models.Supervisor) error
	Delete(ctx context.Context, id string) error
	ListTeachers(ctx context.Context, supervisorIDs []string) (map[string][]models.TeacherDetail, error)
	ReplaceTeachers(ctx context.Context, supervisorID string, teacherIDs []string) error
}

type teacherCounter interface {
	CountExisting(ctx context.Context, ids []string) (int, error)
}

// SupervisorService manages supervisor profiles and their teacher assignments.
type SupervisorService struct {
	repo      supervisorRepository
	users     userFinder
	teachers  teacherCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSupervisorService constructs a SupervisorService.
func NewSupervisorService(repo supervisorRepository, users userFinder, teachers teacherCounter, validate *validator.Validate, logger *zap.Logger) *SupervisorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupervisorService{repo: repo, users: users, teachers: teachers, validator: ensureValidator(validate), logger: logger}
}

// List returns supervisors together with their assigned teachers.
func (s *SupervisorService) List(ctx context.Context, filter models.SupervisorFilter) ([]models.SupervisorDetail, int, error) {
	filter.Skip, filter.Take = models.NormalizePage(filter.Skip, filter.Take)
	supervisors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list supervisors")
	}
	ids := make([]string, len(supervisors))
	for i := range supervisors {
		ids[i] = supervisors[i].ID
	}
	assigned, err := s.repo.ListTeachers(ctx, ids)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to load assigned teachers")
	}
	for i := range supervisors {
		supervisors[i].Teachers = nonNilTeachers(assigned[supervisors[i].ID])
	}
	return supervisors, total, nil
}

// Get returns a supervisor with assigned teachers.
func (s *SupervisorService) Get(ctx context.Context, id string) (*models.SupervisorDetail, error) {
	supervisor, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	assigned, err := s.repo.ListTeachers(ctx, []string{id})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load assigned teachers")
	}
	supervisor.Teachers = nonNilTeachers(assigned[id])
	return supervisor, nil
}

func (s *SupervisorService) load(ctx context.Context, id string) (*models.SupervisorDetail, error) {
	supervisor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Supervisor with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load supervisor")
	}
	return supervisor, nil
}

func (s *SupervisorService) ensureNIPAvailable(ctx context.Context, nip string, excludeID *string) error {
	exists, err := s.repo.ExistsByNIP(ctx, nip, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check nip uniqueness")
	}
	if exists {
		return conflict("NIP already exists")
	}
	return nil
}

// Create attaches a supervisor profile to a SUPERVISOR account.
func (s *SupervisorService) Create(ctx context.Context, req models.CreateSupervisorRequest) (*models.SupervisorDetail, error) {
	if err := validatePayload(s.validator, req, "invalid supervisor payload"); err != nil {
		return nil, err
	}
	user, err := requireUserWithRole(ctx, s.users, req.UserID, models.RoleSupervisor)
	if err != nil {
		return nil, err
	}
	nip := strings.TrimSpace(req.NIP)
	if err := s.ensureNIPAvailable(ctx, nip, nil); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByUserID(ctx, req.UserID); err == nil {
		return nil, conflict("User already has a supervisor profile")
	} else if !repository.IsNotFound(err) {
		return nil, appErrors.Internal(err, "failed to check supervisor profile")
	}

	supervisor := &models.Supervisor{UserID: req.UserID, NIP: nip, Specialization: req.Specialization}
	if err := s.repo.Create(ctx, supervisor); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("NIP already exists")
		}
		return nil, appErrors.Internal(err, "failed to create supervisor")
	}
	return &models.SupervisorDetail{
		Supervisor: *supervisor,
		Name:       user.Name,
		Email:      user.Email,
		Phone:      user.Phone,
		Teachers:   []models.TeacherDetail{},
	}, nil
}

// Update applies a partial update to a supervisor profile.
func (s *SupervisorService) Update(ctx context.Context, id string, req models.UpdateSupervisorRequest) (*models.SupervisorDetail, error) {
	if err := validatePayload(s.validator, req, "invalid supervisor payload"); err != nil {
		return nil, err
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	supervisor := existing.Supervisor
	if req.NIP != nil {
		nip := strings.TrimSpace(*req.NIP)
		if nip != supervisor.NIP {
			if err := s.ensureNIPAvailable(ctx, nip, &id); err != nil {
				return nil, err
			}
		}
		supervisor.NIP = nip
	}
	if req.Specialization != nil {
		supervisor.Specialization = req.Specialization
	}

	if err := s.repo.Update(ctx, &supervisor); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("NIP already exists")
		}
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Supervisor with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update supervisor")
	}
	existing.Supervisor = supervisor
	return existing, nil
}

// Delete removes a supervisor profile.
func (s *SupervisorService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound(fmt.Sprintf("Supervisor with ID %s not found", id))
		}
		if repository.IsForeignKeyViolation(err) {
			return conflict("Supervisor is still referenced by supervisions or reports")
		}
		return appErrors.Internal(err, "failed to delete supervisor")
	}
	return nil
}

// AssignTeachers replaces the supervisor's teacher set. Every id must exist or nothing changes.
func (s *SupervisorService) AssignTeachers(ctx context.Context, id string, req models.AssignTeachersRequest) (*models.SupervisorDetail, error) {
	if err := validatePayload(s.validator, req, "invalid assignment payload"); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	ids := uniqueStrings(req.TeacherIDs)
	found, err := s.teachers.CountExisting(ctx, ids)
	if err != nil {
		if repository.IsInvalidText(err) {
			return nil, notFound("Some teachers not found")
		}
		return nil, appErrors.Internal(err, "failed to verify teachers")
	}
	if found != len(ids) {
		return nil, notFound("Some teachers not found")
	}

	if err := s.repo.ReplaceTeachers(ctx, id, ids); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, notFound("Some teachers not found")
		}
		return nil, appErrors.Internal(err, "failed to assign teachers")
	}
	s.logger.Info("supervisor teachers assigned", zap.String("supervisor_id", id), zap.Int("count", len(ids)))
	return s.Get(ctx, id)
}

// AssignedTeachers lists the teachers assigned to a supervisor.
func (s *SupervisorService) AssignedTeachers(ctx context.Context, id string) ([]models.TeacherDetail, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	assigned, err := s.repo.ListTeachers(ctx, []string{id})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load assigned teachers")
	}
	return nonNilTeachers(assigned[id]), nil
}

func nonNilTeachers(teachers []models.TeacherDetail) []models.TeacherDetail {
	if teachers == nil {
		return []models.TeacherDetail{}
	}
	return teachers
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
