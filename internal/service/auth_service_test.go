package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/supervisi-api/internal/models"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin[id] = true
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	copy := *token
	m.tokens[token.Token] = &copy
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.tokens[token]; ok {
		copy := *rt
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "supervisi-api",
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", Email: "user@example.com", Name: "User", Role: models.RoleSupervisor, IsActive: true, PasswordHash: mustHash(t, "password123")})
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "USER@example.com", Password: "password123", IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "User", resp.User.Name)
	assert.True(t, repo.lastLogin["user-1"])
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleSupervisor, claims.Role)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", Email: "user@example.com", Role: models.RoleTeacher, IsActive: false, PasswordHash: mustHash(t, "password123")})
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password123"})
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "taken", Email: "taken@example.com"})
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Register(context.Background(), models.RegisterRequest{Email: "New@Example.com", Name: "New", Password: "secret1", Role: models.RoleTeacher}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Len(t, repo.users, 2)
	assert.Len(t, repo.tokens, 1)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "taken@example.com", Name: "Dup", Password: "secret1", Role: models.RoleTeacher}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "short@example.com", Name: "Short", Password: "123", Role: models.RoleTeacher}, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", Email: "user@example.com", Role: models.RoleAdmin, IsActive: true})
	repo.tokens["old"] = &models.RefreshToken{ID: "rt-1", UserID: "user-1", Token: "old", ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.NoError(t, err)
	assert.NotEqual(t, "old", resp.RefreshToken)
	assert.True(t, repo.tokens["old"].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", IsActive: true})
	repo.tokens["stale"] = &models.RefreshToken{ID: "rt-1", UserID: "user-1", Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)}
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "user-1", IsActive: true})
	repo.tokens["mine"] = &models.RefreshToken{ID: "rt-1", UserID: "user-1", Token: "mine", ExpiresAt: time.Now().Add(time.Hour)}
	repo.tokens["theirs"] = &models.RefreshToken{ID: "rt-2", UserID: "user-2", Token: "theirs", ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAuthService(repo, nil, nil, zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), "theirs", models.RequestMeta{ActorID: "user-1"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Logout(context.Background(), "mine", models.RequestMeta{ActorID: "user-1"}))
	assert.True(t, repo.tokens["mine"].Revoked)
	assert.False(t, repo.tokens["theirs"].Revoked)
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(newMockUserRepo(), nil, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.ValidateToken("garbage")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	claims := &models.JWTClaims{UserID: "u", Role: models.RoleTeacher, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	good, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	parsed, err := svc.ValidateToken(good)
	require.NoError(t, err)
	assert.Equal(t, models.Principal{UserID: "u", Role: models.RoleTeacher}, parsed.Principal())
}
