package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

const (
	passwordHashCost = 10
	userSearchLimit  = 20
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Search(ctx context.Context, term string, role *models.UserRole, limit int) ([]models.User, error)
	ListActive(ctx context.Context, role *models.UserRole) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindDetailByID(ctx context.Context, id string) (*models.UserDetail, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ExistingEmails(ctx context.Context, emails []string) ([]string, error)
	Create(ctx context.Context, user *models.User) error
	CreateMany(ctx context.Context, users []*models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	CountByRoleAndActivity(ctx context.Context) ([]repository.RoleActivityCount, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	cache     *CacheService
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, cache *CacheService, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: ensureValidator(validate), cache: cache, logger: logger}
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), passwordHashCost)
	if err != nil {
		return "", appErrors.Internal(err, "failed to hash password")
	}
	return string(hash), nil
}

// List returns paginated users and the total count.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	filter.Skip, filter.Take = models.NormalizePage(filter.Skip, filter.Take)
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, 0, badRequest(fmt.Sprintf("Invalid role: %s", *filter.Role))
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list users")
	}
	return users, total, nil
}

// Search matches active users by email or name.
func (s *UserService) Search(ctx context.Context, term string, role *models.UserRole) ([]models.User, error) {
	if role != nil && !role.Valid() {
		return nil, badRequest(fmt.Sprintf("Invalid role: %s", *role))
	}
	users, err := s.repo.Search(ctx, strings.TrimSpace(term), role, userSearchLimit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to search users")
	}
	return users, nil
}

// ListByRole returns active users holding role.
func (s *UserService) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	if !role.Valid() {
		return nil, badRequest(fmt.Sprintf("Invalid role: %s", role))
	}
	users, err := s.repo.ListActive(ctx, &role)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users by role")
	}
	return users, nil
}

// ListActive returns every active user.
func (s *UserService) ListActive(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListActive(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list active users")
	}
	return users, nil
}

// Get returns a user with its linked profile ids.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserDetail, error) {
	user, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("User with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound(fmt.Sprintf("User with ID %s not found", id))
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

func (s *UserService) ensureEmailAvailable(ctx context.Context, email string) error {
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return appErrors.Internal(err, "failed to check email uniqueness")
	}
	if exists {
		return conflict("Email already exists")
	}
	return nil
}

func newUserFromRequest(req models.CreateUserRequest, hash string) *models.User {
	return &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Phone:        req.Phone,
		Role:         req.Role,
		IsActive:     true,
	}
}

// Create adds a new user.
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := validatePayload(s.validator, req, "invalid create user payload"); err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, req.Email); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := newUserFromRequest(req, hash)
	if err := s.repo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("Email already exists")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.audit(ctx, models.AuditActionUserCreate, user.ID, nil, map[string]interface{}{"email": user.Email, "role": user.Role}, meta)
	s.cache.Invalidate(ctx, cacheKeyUserStats)
	return user, nil
}

// BulkCreate inserts every user in one transaction after checking all emails up front.
func (s *UserService) BulkCreate(ctx context.Context, req models.BulkCreateUsersRequest, meta models.RequestMeta) ([]*models.User, error) {
	if err := validatePayload(s.validator, req, "invalid bulk create payload"); err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(req.Users))
	seen := make(map[string]struct{}, len(req.Users))
	var repeated []string
	for _, u := range req.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if _, dup := seen[email]; dup {
			repeated = append(repeated, email)
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}
	if len(repeated) > 0 {
		return nil, conflict(fmt.Sprintf("Duplicate emails in request: %s", strings.Join(repeated, ", ")))
	}

	existing, err := s.repo.ExistingEmails(ctx, emails)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check email uniqueness")
	}
	if len(existing) > 0 {
		return nil, conflict(fmt.Sprintf("Emails already exist: %s", strings.Join(existing, ", ")))
	}

	users := make([]*models.User, 0, len(req.Users))
	for _, u := range req.Users {
		hash, err := hashPassword(u.Password)
		if err != nil {
			return nil, err
		}
		users = append(users, newUserFromRequest(u, hash))
	}
	if err := s.repo.CreateMany(ctx, users); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("Email already exists")
		}
		return nil, appErrors.Internal(err, "failed to create users")
	}

	for _, user := range users {
		s.audit(ctx, models.AuditActionUserCreate, user.ID, nil, map[string]interface{}{"email": user.Email, "role": user.Role}, meta)
	}
	s.cache.Invalidate(ctx, cacheKeyUserStats)
	return users, nil
}

// Update applies a partial update to a user.
func (s *UserService) Update(ctx context.Context, id string, req models.UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := validatePayload(s.validator, req, "invalid update user payload"); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	old := map[string]interface{}{"email": user.Email, "name": user.Name, "role": user.Role, "isActive": user.IsActive}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != strings.ToLower(user.Email) {
			if err := s.ensureEmailAvailable(ctx, email); err != nil {
				return nil, err
			}
		}
		user.Email = email
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, conflict("Email already exists")
		}
		return nil, appErrors.Internal(err, "failed to update user")
	}

	s.audit(ctx, models.AuditActionUserUpdate, user.ID, old, map[string]interface{}{"email": user.Email, "name": user.Name, "role": user.Role, "isActive": user.IsActive}, meta)
	s.cache.Invalidate(ctx, cacheKeyUserStats)
	return user, nil
}

// ToggleActive sets the active flag of a user.
func (s *UserService) ToggleActive(ctx context.Context, id string, req models.ToggleActiveRequest, meta models.RequestMeta) (*models.User, error) {
	if err := validatePayload(s.validator, req, "invalid toggle payload"); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := user.IsActive
	if err := s.repo.SetActive(ctx, id, *req.IsActive); err != nil {
		return nil, appErrors.Internal(err, "failed to update user status")
	}
	user.IsActive = *req.IsActive

	s.audit(ctx, models.AuditActionUserToggle, id, map[string]interface{}{"isActive": previous}, map[string]interface{}{"isActive": user.IsActive}, meta)
	s.cache.Invalidate(ctx, cacheKeyUserStats)
	return user, nil
}

// Remove soft-deletes a user by marking it inactive.
func (s *UserService) Remove(ctx context.Context, id string, meta models.RequestMeta) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return appErrors.Internal(err, "failed to delete user")
	}

	s.audit(ctx, models.AuditActionUserDelete, id, map[string]interface{}{"isActive": user.IsActive}, map[string]interface{}{"isActive": false}, meta)
	s.cache.Invalidate(ctx, cacheKeyUserStats)
	return nil
}

// ChangePassword verifies the old password before storing the new one.
// Non-admin callers may only change their own password.
func (s *UserService) ChangePassword(ctx context.Context, principal models.Principal, id string, req models.ChangePasswordRequest, meta models.RequestMeta) error {
	if principal.Role != models.RoleAdmin && principal.UserID != id {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only change your own password")
	}
	if err := validatePayload(s.validator, req, "invalid change password payload"); err != nil {
		return err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "Old password is incorrect")
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}

	s.audit(ctx, models.AuditActionPasswordChange, id, nil, nil, meta)
	return nil
}

// CheckEmail reports whether email is registered.
func (s *UserService) CheckEmail(ctx context.Context, email string) (*models.EmailCheck, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, badRequest("email is required")
	}
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check email")
	}
	return &models.EmailCheck{Exists: exists}, nil
}

// Stats counts users per role and activity. Results are cached.
func (s *UserService) Stats(ctx context.Context) (*models.UserStats, error) {
	return cached(ctx, s.cache, cacheKey(cacheKeyUserStats), func() (*models.UserStats, error) {
		rows, err := s.repo.CountByRoleAndActivity(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load user stats")
		}
		stats := &models.UserStats{ByRole: make(map[models.UserRole]int, len(models.AllRoles))}
		for _, role := range models.AllRoles {
			stats.ByRole[role] = 0
		}
		for _, row := range rows {
			stats.Total += row.Count
			stats.ByRole[row.Role] += row.Count
			if row.IsActive {
				stats.Active += row.Count
			} else {
				stats.Inactive += row.Count
			}
		}
		return stats, nil
	})
}

// Profile returns the caller's own account.
func (s *UserService) Profile(ctx context.Context, principal models.Principal) (*models.UserDetail, error) {
	return s.Get(ctx, principal.UserID)
}

// UpdateProfile lets the caller change their name and phone.
func (s *UserService) UpdateProfile(ctx context.Context, principal models.Principal, req models.UpdateProfileRequest, meta models.RequestMeta) (*models.User, error) {
	return s.Update(ctx, principal.UserID, models.UpdateUserRequest{Name: req.Name, Phone: req.Phone}, meta)
}

func (s *UserService) audit(ctx context.Context, action, resourceID string, oldValues, newValues map[string]interface{}, meta models.RequestMeta) {
	entry := &models.AuditLog{
		UserID:     meta.Actor(),
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
