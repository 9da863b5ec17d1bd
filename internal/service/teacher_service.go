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

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.TeacherDetail, error)
	ExistsByNIP(ctx context.Context, nip string, excludeID *string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, id string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// requireUserWithRole loads the account a profile is being attached to.
func requireUserWithRole(ctx context.Context, users userFinder, userID string, role models.UserRole) (*models.User, error) {
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("User not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if user.Role != role {
		return nil, conflict(fmt.Sprintf("User must have %s role", role))
	}
	return user, nil
}

// TeacherService orchestrates teacher profile operations.
type TeacherService struct {
	repo      teacherRepository
	users     userFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, users userFinder, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, users: users, validator: ensureValidator(validate), logger: logger}
}

// List returns teachers with their account names.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	filter.Skip, filter.Take = models.NormalizePage(filter.Skip, filter.Take)
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list teachers")
	}
	return teachers, total, nil
}

// Get returns a teacher by ID.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.TeacherDetail, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Teacher with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	return teacher, nil
}

// GetByUser returns the teacher profile of the calling account.
func (s *TeacherService) GetByUser(ctx context.Context, principal models.Principal) (*models.TeacherDetail, error) {
	teacher, err := s.repo.FindByUserID(ctx, principal.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("Teacher profile not found")
		}
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	return teacher, nil
}

func (s *TeacherService) ensureNIPAvailable(ctx context.Context, nip string, excludeID *string) error {
	exists, err := s.repo.ExistsByNIP(ctx, nip, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check nip uniqueness")
	}
	if exists {
		return conflict("NIP already exists")
	}
	return nil
}

// Create attaches a teacher profile to a TEACHER account.
func (s *TeacherService) Create(ctx context.Context, req models.CreateTeacherRequest) (*models.TeacherDetail, error) {
	if err := validatePayload(s.validator, req, "invalid teacher payload"); err != nil {
		return nil, err
	}
	user, err := requireUserWithRole(ctx, s.users, req.UserID, models.RoleTeacher)
	if err != nil {
		return nil, err
	}
	nip := strings.TrimSpace(req.NIP)
	if err := s.ensureNIPAvailable(ctx, nip, nil); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByUserID(ctx, req.UserID); err == nil {
		return nil, conflict("User already has a teacher profile")
	} else if !repository.IsNotFound(err) {
		return nil, appErrors.Internal(err, "failed to check teacher profile")
	}

	teacher := &models.Teacher{
		UserID:    req.UserID,
		NIP:       nip,
		Subject:   strings.TrimSpace(req.Subject),
		Classroom: req.Classroom,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("NIP already exists")
		}
		return nil, appErrors.Internal(err, "failed to create teacher")
	}

	s.logger.Info("teacher profile created", zap.String("teacher_id", teacher.ID), zap.String("user_id", user.ID))
	return &models.TeacherDetail{Teacher: *teacher, Name: user.Name, Email: user.Email, Phone: user.Phone}, nil
}

// Update applies a partial update to a teacher profile.
func (s *TeacherService) Update(ctx context.Context, id string, req models.UpdateTeacherRequest) (*models.TeacherDetail, error) {
	if err := validatePayload(s.validator, req, "invalid teacher payload"); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	teacher := existing.Teacher
	if req.NIP != nil {
		nip := strings.TrimSpace(*req.NIP)
		if nip != teacher.NIP {
			if err := s.ensureNIPAvailable(ctx, nip, &id); err != nil {
				return nil, err
			}
		}
		teacher.NIP = nip
	}
	if req.Subject != nil {
		teacher.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.Classroom != nil {
		teacher.Classroom = req.Classroom
	}

	if err := s.repo.Update(ctx, &teacher); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("NIP already exists")
		}
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("Teacher with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to update teacher")
	}
	existing.Teacher = teacher
	return existing, nil
}

// Delete removes a teacher profile.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return notFound(fmt.Sprintf("Teacher with ID %s not found", id))
		}
		if repository.IsForeignKeyViolation(err) {
			return conflict("Teacher is still referenced by supervisions or reports")
		}
		return appErrors.Internal(err, "failed to delete teacher")
	}
	return nil
}
