package models

import "time"

// Assessment is a 1-5 score for one aspect within a supervision.
type Assessment struct {
	ID            string    `db:"id" json:"id"`
	SupervisionID string    `db:"supervision_id" json:"supervisionId"`
	TeacherID     string    `db:"teacher_id" json:"teacherId"`
	AspectName    string    `db:"aspect_name" json:"aspectName"`
	Score         int       `db:"score" json:"score"`
	Feedback      *string   `db:"feedback" json:"feedback,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// AssessmentDetail joins the supervision date and participant names.
type AssessmentDetail struct {
	Assessment
	SupervisorID    string    `db:"supervisor_id" json:"supervisorId"`
	SupervisorName  string    `db:"supervisor_name" json:"supervisorName"`
	TeacherName     string    `db:"teacher_name" json:"teacherName"`
	SupervisionDate time.Time `db:"supervision_date" json:"supervisionDate"`
}

// AssessmentFilter captures list options. Date bounds apply to the supervision date.
type AssessmentFilter struct {
	TeacherID     string
	SupervisorID  string
	SupervisionID string
	StartDate     *time.Time
	EndDate       *time.Time
	Skip          int
	Take          int
}

// CreateAssessmentRequest scores one aspect.
type CreateAssessmentRequest struct {
	SupervisionID string  `json:"supervisionId" validate:"required"`
	TeacherID     string  `json:"teacherId" validate:"required"`
	AspectName    string  `json:"aspectName" validate:"required"`
	Score         int     `json:"score" validate:"required,min=1,max=5"`
	Feedback      *string `json:"feedback"`
}

// CreateMultipleAssessmentsRequest creates assessments one by one.
type CreateMultipleAssessmentsRequest struct {
	Assessments []CreateAssessmentRequest `json:"assessments" validate:"required,min=1"`
}

// AssessmentResult is the per-item outcome of a multiple create.
type AssessmentResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

// MultipleAssessmentsResult summarises a multiple create.
type MultipleAssessmentsResult struct {
	Created int                `json:"created"`
	Failed  int                `json:"failed"`
	Results []AssessmentResult `json:"results"`
}

// UpdateAssessmentRequest is a partial update.
type UpdateAssessmentRequest struct {
	AspectName *string `json:"aspectName" validate:"omitempty,min=1"`
	Score      *int    `json:"score" validate:"omitempty,min=1,max=5"`
	Feedback   *string `json:"feedback"`
}

// AspectStat collects the scores recorded for one aspect.
type AspectStat struct {
	Scores  []int   `json:"scores"`
	Average float64 `json:"average"`
}

// TeacherAssessmentSummary is the per-teacher overview.
type TeacherAssessmentSummary struct {
	Teacher          *TeacherDetail        `json:"teacher"`
	AverageScore     float64               `json:"averageScore"`
	TotalAssessments int                   `json:"totalAssessments"`
	Assessments      []AssessmentDetail    `json:"assessments"`
	AspectSummary    map[string]AspectStat `json:"aspectSummary"`
}
