package models

import "time"

// UserRole represents the roles recognised by the authorization policy.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleTeacher    UserRole = "TEACHER"
)

// AllRoles lists every role in display order.
var AllRoles = []UserRole{RoleAdmin, RoleSupervisor, RoleTeacher}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents an application account stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// UserDetail adds the ids of the profile rows linked to the account.
type UserDetail struct {
	User
	SupervisorID *string `db:"supervisor_id" json:"supervisorId,omitempty"`
	TeacherID    *string `db:"teacher_id" json:"teacherId,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Search   string
	Role     *UserRole
	IsActive *bool
	Skip     int
	Take     int
}

// CreateUserRequest is the admin payload for creating an account.
type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Name     string   `json:"name" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN SUPERVISOR TEACHER"`
	Phone    *string  `json:"phone"`
}

// UpdateUserRequest is a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	Email    *string   `json:"email" validate:"omitempty,email"`
	Password *string   `json:"password" validate:"omitempty,min=6"`
	Name     *string   `json:"name" validate:"omitempty,min=1"`
	Role     *UserRole `json:"role" validate:"omitempty,oneof=ADMIN SUPERVISOR TEACHER"`
	Phone    *string   `json:"phone"`
	IsActive *bool     `json:"isActive"`
}

// UpdateProfileRequest is the self-service subset of UpdateUserRequest.
type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Phone *string `json:"phone"`
}

// ToggleActiveRequest flips the soft-delete flag.
type ToggleActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// BulkCreateUsersRequest creates several accounts atomically.
type BulkCreateUsersRequest struct {
	Users []CreateUserRequest `json:"users" validate:"required,min=1,dive"`
}

// UserStats summarises accounts by role and activity.
type UserStats struct {
	Total    int              `json:"total"`
	ByRole   map[UserRole]int `json:"byRole"`
	Active   int              `json:"active"`
	Inactive int              `json:"inactive"`
}

// EmailCheck reports whether an email is already registered.
type EmailCheck struct {
	Exists bool `json:"exists"`
}
