package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/repository"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

type mockUserRepo struct {
	users         map[string]*models.User
	listErr       error
	createManyErr error
	bulkCalls     int
	auditLogs     []*models.AuditLog
	tokens        map[string]*models.RefreshToken
	lastLogin     map[string]bool
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User), tokens: make(map[string]*models.RefreshToken), lastLogin: make(map[string]bool)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) Search(ctx context.Context, term string, role *models.UserRole, limit int) ([]models.User, error) {
	var users []models.User
	for _, u := range m.users {
		if u.IsActive && strings.Contains(strings.ToLower(u.Name), strings.ToLower(term)) {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (m *mockUserRepo) ListActive(ctx context.Context, role *models.UserRole) ([]models.User, error) {
	var users []models.User
	for _, u := range m.users {
		if u.IsActive && (role == nil || u.Role == *role) {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindDetailByID(ctx context.Context, id string) (*models.UserDetail, error) {
	user, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.UserDetail{User: *user}, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *mockUserRepo) ExistingEmails(ctx context.Context, emails []string) ([]string, error) {
	var found []string
	for _, e := range emails {
		if ok, _ := m.EmailExists(ctx, e); ok {
			found = append(found, e)
		}
	}
	sort.Strings(found)
	return found, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) CreateMany(ctx context.Context, users []*models.User) error {
	m.bulkCalls++
	if m.createManyErr != nil {
		return m.createManyErr
	}
	for _, u := range users {
		_ = m.Create(ctx, u)
	}
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.users[id].PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.IsActive = active
	return nil
}

func (m *mockUserRepo) CountByRoleAndActivity(ctx context.Context) ([]repository.RoleActivityCount, error) {
	counts := map[repository.RoleActivityCount]int{}
	for _, u := range m.users {
		counts[repository.RoleActivityCount{Role: u.Role, IsActive: u.IsActive}]++
	}
	rows := make([]repository.RoleActivityCount, 0, len(counts))
	for key, n := range counts {
		key.Count = n
		rows = append(rows, key)
	}
	return rows, nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func mustHash(t *testing.T, raw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	user, err := svc.Create(context.Background(), models.CreateUserRequest{Email: "USER@EXAMPLE.COM", Name: "User", Password: "secret1", Role: models.RoleTeacher}, models.RequestMeta{ActorID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	cost, _ := bcrypt.Cost([]byte(user.PasswordHash))
	assert.Equal(t, 10, cost)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
	assert.Equal(t, "admin", *repo.auditLogs[0].UserID)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "1", Email: "user@example.com"})
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), models.CreateUserRequest{Email: "User@example.com", Name: "User", Password: "secret1", Role: models.RoleTeacher}, models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "Email already exists", appErr.Message)
}

func TestUserServiceCreateValidation(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), models.CreateUserRequest{Email: "bad", Password: "123", Role: "STUDENT"}, models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Contains(t, appErr.Details, "name is required")
}

func TestUserServiceUpdatePartial(t *testing.T) {
	phone := "0812"
	repo := newMockUserRepo(&models.User{ID: "1", Email: "a@example.com", Name: "Old", Phone: &phone, Role: models.RoleTeacher, IsActive: true})
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	name := "New"
	user, err := svc.Update(context.Background(), "1", models.UpdateUserRequest{Name: &name}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "New", user.Name)
	assert.Equal(t, "a@example.com", user.Email)
	assert.Equal(t, models.RoleTeacher, user.Role)
	require.NotNil(t, user.Phone)
	assert.Equal(t, "0812", *user.Phone)
}

func TestUserServiceUpdateEmailConflict(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: "1", Email: "a@example.com"},
		&models.User{ID: "2", Email: "b@example.com"},
	)
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	taken := "B@example.com"
	_, err := svc.Update(context.Background(), "1", models.UpdateUserRequest{Email: &taken}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	same := "A@example.com"
	user, err := svc.Update(context.Background(), "1", models.UpdateUserRequest{Email: &same}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Email)
}

func TestUserServiceGetNotFound(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil, zap.NewNop())
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "User with ID missing not found", appErrors.FromError(err).Message)
}

func TestUserServiceRemoveIsSoftDelete(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "1", Email: "a@example.com", IsActive: true})
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	require.NoError(t, svc.Remove(context.Background(), "1", models.RequestMeta{ActorID: "admin"}))
	require.Contains(t, repo.users, "1")
	assert.False(t, repo.users["1"].IsActive)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)
}

func TestUserServiceToggleActive(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "1", Email: "a@example.com", IsActive: false})
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	active := true
	user, err := svc.ToggleActive(context.Background(), "1", models.ToggleActiveRequest{IsActive: &active}, models.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	_, err = svc.ToggleActive(context.Background(), "1", models.ToggleActiveRequest{}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceChangePassword(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "1", Email: "a@example.com", PasswordHash: mustHash(t, "oldpass")})
	svc := NewUserService(repo, nil, nil, zap.NewNop())
	self := models.Principal{UserID: "1", Role: models.RoleTeacher}

	err := svc.ChangePassword(context.Background(), self, "1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpass"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, "Old password is incorrect", appErrors.FromError(err).Message)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)

	require.NoError(t, svc.ChangePassword(context.Background(), self, "1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpass"}, models.RequestMeta{}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["1"].PasswordHash), []byte("newpass")))

	other := models.Principal{UserID: "2", Role: models.RoleSupervisor}
	err = svc.ChangePassword(context.Background(), other, "1", models.ChangePasswordRequest{OldPassword: "newpass", NewPassword: "another"}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = svc.ChangePassword(context.Background(), models.Principal{UserID: "x", Role: models.RoleAdmin}, "missing", models.ChangePasswordRequest{OldPassword: "a", NewPassword: "bbbbbb"}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceBulkCreate(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "1", Email: "taken@example.com"})
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	req := models.BulkCreateUsersRequest{Users: []models.CreateUserRequest{
		{Email: "new@example.com", Name: "New", Password: "secret1", Role: models.RoleTeacher},
		{Email: "taken@example.com", Name: "Taken", Password: "secret1", Role: models.RoleTeacher},
	}}
	_, err := svc.BulkCreate(context.Background(), req, models.RequestMeta{})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "taken@example.com")
	assert.Zero(t, repo.bulkCalls)

	req.Users[1].Email = "NEW@example.com"
	_, err = svc.BulkCreate(context.Background(), req, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Zero(t, repo.bulkCalls)

	req.Users[1].Email = "other@example.com"
	users, err := svc.BulkCreate(context.Background(), req, models.RequestMeta{})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 1, repo.bulkCalls)
	assert.Len(t, repo.users, 3)
}

func TestUserServiceStatsZeroesRoles(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: "1", Role: models.RoleAdmin, IsActive: true},
		&models.User{ID: "2", Role: models.RoleTeacher, IsActive: true},
		&models.User{ID: "3", Role: models.RoleTeacher, IsActive: false},
	)
	svc := NewUserService(repo, nil, nil, zap.NewNop())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 0, stats.ByRole[models.RoleSupervisor])
	assert.Equal(t, 2, stats.ByRole[models.RoleTeacher])
}

func TestUserServiceListRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil, zap.NewNop())
	role := models.UserRole("STUDENT")
	_, _, err := svc.List(context.Background(), models.UserFilter{Role: &role})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.ListByRole(context.Background(), role)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceCheckEmail(t *testing.T) {
	svc := NewUserService(newMockUserRepo(&models.User{ID: "1", Email: "a@example.com"}), nil, nil, zap.NewNop())
	check, err := svc.CheckEmail(context.Background(), "A@example.com")
	require.NoError(t, err)
	assert.True(t, check.Exists)

	_, err = svc.CheckEmail(context.Background(), " ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
