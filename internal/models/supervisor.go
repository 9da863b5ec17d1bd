package models

import "time"

// Supervisor is the supervising profile attached to a SUPERVISOR account.
type Supervisor struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"userId"`
	NIP            string    `db:"nip" json:"nip"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// SupervisorDetail joins the profile with account fields and assigned teachers.
type SupervisorDetail struct {
	Supervisor
	Name     string          `db:"user_name" json:"name"`
	Email    string          `db:"user_email" json:"email"`
	Phone    *string         `db:"user_phone" json:"phone,omitempty"`
	Teachers []TeacherDetail `db:"-" json:"teachers"`
}

// SupervisorFilter captures list options.
type SupervisorFilter struct {
	Search string
	Skip   int
	Take   int
}

// CreateSupervisorRequest links a supervisor profile to an existing user.
type CreateSupervisorRequest struct {
	UserID         string  `json:"userId" validate:"required"`
	NIP            string  `json:"nip" validate:"required"`
	Specialization *string `json:"specialization"`
}

// UpdateSupervisorRequest is a partial update of a supervisor profile.
type UpdateSupervisorRequest struct {
	NIP            *string `json:"nip" validate:"omitempty,min=1"`
	Specialization *string `json:"specialization"`
}

// AssignTeachersRequest replaces a supervisor's teacher set.
type AssignTeachersRequest struct {
	TeacherIDs []string `json:"teacherIds" validate:"required,dive,required"`
}
