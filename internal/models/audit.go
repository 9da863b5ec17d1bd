package models

import "time"

const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionRegister       = "REGISTER"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionUserUpdate     = "USER_UPDATE"
	AuditActionUserDelete     = "USER_DELETE"
	AuditActionUserToggle     = "USER_TOGGLE_ACTIVE"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionReportGenerate = "REPORT_GENERATE"
	AuditActionReportExport   = "REPORT_EXPORT"
)

// AuditLog is one row of the audit trail. Old/new values hold raw JSON.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// RequestMeta identifies who issued a mutating request and from where.
type RequestMeta struct {
	ActorID   string
	IP        string
	UserAgent string
}

func (m RequestMeta) Actor() *string {
	if m.ActorID == "" {
		return nil
	}
	id := m.ActorID
	return &id
}
