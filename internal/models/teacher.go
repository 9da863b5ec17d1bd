package models

import "time"

// Teacher is the teaching profile attached to a TEACHER account.
type Teacher struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	NIP       string    `db:"nip" json:"nip"`
	Subject   string    `db:"subject" json:"subject"`
	Classroom *string   `db:"classroom" json:"classroom,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// TeacherDetail joins the profile with its account fields.
type TeacherDetail struct {
	Teacher
	Name  string  `db:"user_name" json:"name"`
	Email string  `db:"user_email" json:"email"`
	Phone *string `db:"user_phone" json:"phone,omitempty"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search  string
	Subject string
	Skip    int
	Take    int
}

// CreateTeacherRequest links a teacher profile to an existing user.
type CreateTeacherRequest struct {
	UserID    string  `json:"userId" validate:"required"`
	NIP       string  `json:"nip" validate:"required"`
	Subject   string  `json:"subject" validate:"required"`
	Classroom *string `json:"classroom"`
}

// UpdateTeacherRequest is a partial update of a teacher profile.
type UpdateTeacherRequest struct {
	NIP       *string `json:"nip" validate:"omitempty,min=1"`
	Subject   *string `json:"subject" validate:"omitempty,min=1"`
	Classroom *string `json:"classroom"`
}
