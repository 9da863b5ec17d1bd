package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/supervisi-api/internal/models"
)

const userColumns = `id, email, password_hash, name, phone, role, is_active, last_login, created_at, updated_at`

// UserRepository provides database access for accounts, refresh sessions and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindDetailByID returns a user with linked supervisor/teacher profile ids.
func (r *UserRepository) FindDetailByID(ctx context.Context, id string) (*models.UserDetail, error) {
	const query = `SELECT u.id, u.email, u.password_hash, u.name, u.phone, u.role, u.is_active, u.last_login, u.created_at, u.updated_at,
s.id AS supervisor_id, t.id AS teacher_id
FROM users u
LEFT JOIN supervisors s ON s.user_id = u.id
LEFT JOIN teachers t ON t.user_id = u.id
WHERE u.id = $1 LIMIT 1`
	var detail models.UserDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user detail: %w", err)
	}
	return &detail, nil
}

// EmailExists reports whether any account uses email.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// ExistingEmails returns the subset of emails already registered.
func (r *UserRepository) ExistingEmails(ctx context.Context, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(e)
	}
	const query = `SELECT email FROM users WHERE LOWER(email) = ANY($1) ORDER BY email`
	var found []string
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(lowered)); err != nil {
		return nil, fmt.Errorf("find existing emails: %w", err)
	}
	return found, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	w := &where{}
	if filter.Role != nil {
		w.add("role = $%d", *filter.Role)
	}
	if filter.IsActive != nil {
		w.add("is_active = $%d", *filter.IsActive)
	}
	if filter.Search != "" {
		w.add("(email ILIKE $%[1]d OR name ILIKE $%[1]d OR phone ILIKE $%[1]d)", "%"+filter.Search+"%")
	}
	base := " FROM users" + w.sql()

	listQuery := "SELECT " + userColumns + base + " ORDER BY created_at DESC" + page(filter.Skip, filter.Take)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, w.args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, w.args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Search matches active users by email or name, ordered by name.
func (r *UserRepository) Search(ctx context.Context, term string, role *models.UserRole, limit int) ([]models.User, error) {
	w := &where{}
	w.add("is_active = $%d", true)
	w.add("(email ILIKE $%[1]d OR name ILIKE $%[1]d)", "%"+term+"%")
	if role != nil {
		w.add("role = $%d", *role)
	}
	query := "SELECT " + userColumns + " FROM users" + w.sql() + fmt.Sprintf(" ORDER BY name ASC LIMIT %d", limit)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, w.args...); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// ListActive returns active users, optionally restricted to a role, ordered by name.
func (r *UserRepository) ListActive(ctx context.Context, role *models.UserRole) ([]models.User, error) {
	w := &where{}
	w.add("is_active = $%d", true)
	if role != nil {
		w.add("role = $%d", *role)
	}
	query := "SELECT " + userColumns + " FROM users" + w.sql() + " ORDER BY name ASC"
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, w.args...); err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return users, nil
}

const insertUser = `INSERT INTO users (id, email, password_hash, name, phone, role, is_active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :name, :phone, :role, :is_active, :created_at, :updated_at)`

func stampUser(user *models.User) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	stampUser(user)
	if _, err := r.db.NamedExecContext(ctx, insertUser, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateMany inserts all users in one transaction.
func (r *UserRepository) CreateMany(ctx context.Context, users []*models.User) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, user := range users {
			stampUser(user)
			if _, err := tx.NamedExecContext(ctx, insertUser, user); err != nil {
				return fmt.Errorf("bulk create user %s: %w", user.Email, err)
			}
		}
		return nil
	})
}

// Update writes every mutable column of user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET email = :email, password_hash = :password_hash, name = :name, phone = :phone, role = :role, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetActive toggles the soft-delete flag. Remove is SetActive(id, false).
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}

// RoleActivityCount is one group of the user stats query.
type RoleActivityCount struct {
	Role     models.UserRole `db:"role"`
	IsActive bool            `db:"is_active"`
	Count    int             `db:"count"`
}

// CountByRoleAndActivity groups accounts by role and active flag.
func (r *UserRepository) CountByRoleAndActivity(ctx context.Context) ([]RoleActivityCount, error) {
	const query = `SELECT role, is_active, COUNT(*) AS count FROM users GROUP BY role, is_active`
	var rows []RoleActivityCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	return rows, nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all live refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
