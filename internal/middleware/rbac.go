package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervisi-api/internal/models"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

// Operation names a protected route for the authorization policy.
type Operation string

const (
	OpAuthLogout Operation = "auth.logout"
	OpAuthMe     Operation = "auth.me"

	OpUserCreate         Operation = "users.create"
	OpUserBulkCreate     Operation = "users.bulk"
	OpUserList           Operation = "users.list"
	OpUserSearch         Operation = "users.search"
	OpUserListByRole     Operation = "users.byRole"
	OpUserListActive     Operation = "users.active"
	OpUserStats          Operation = "users.stats"
	OpUserCheckEmail     Operation = "users.checkEmail"
	OpUserProfile        Operation = "users.profile"
	OpUserUpdateProfile  Operation = "users.updateProfile"
	OpUserGet            Operation = "users.get"
	OpUserUpdate         Operation = "users.update"
	OpUserToggleActive   Operation = "users.toggleActive"
	OpUserChangePassword Operation = "users.changePassword"
	OpUserDelete         Operation = "users.delete"

	OpTeacherCreate Operation = "teachers.create"
	OpTeacherList   Operation = "teachers.list"
	OpTeacherMe     Operation = "teachers.me"
	OpTeacherGet    Operation = "teachers.get"
	OpTeacherUpdate Operation = "teachers.update"
	OpTeacherDelete Operation = "teachers.delete"

	OpSupervisorCreate         Operation = "supervisors.create"
	OpSupervisorList           Operation = "supervisors.list"
	OpSupervisorGet            Operation = "supervisors.get"
	OpSupervisorUpdate         Operation = "supervisors.update"
	OpSupervisorDelete         Operation = "supervisors.delete"
	OpSupervisorTeachers       Operation = "supervisors.teachers"
	OpSupervisorAssignTeachers Operation = "supervisors.assignTeachers"

	OpSupervisionCreate       Operation = "supervisions.create"
	OpSupervisionList         Operation = "supervisions.list"
	OpSupervisionStats        Operation = "supervisions.stats"
	OpSupervisionGet          Operation = "supervisions.get"
	OpSupervisionUpdate       Operation = "supervisions.update"
	OpSupervisionUpdateStatus Operation = "supervisions.updateStatus"
	OpSupervisionDelete       Operation = "supervisions.delete"

	OpAssessmentCreate              Operation = "assessments.create"
	OpAssessmentCreateMultiple      Operation = "assessments.createMultiple"
	OpAssessmentList                Operation = "assessments.list"
	OpAssessmentBySupervision       Operation = "assessments.bySupervision"
	OpAssessmentTeacherSummary      Operation = "assessments.teacherSummary"
	OpAssessmentGet                 Operation = "assessments.get"
	OpAssessmentUpdate              Operation = "assessments.update"
	OpAssessmentDelete              Operation = "assessments.delete"
	OpAssessmentDeleteBySupervision Operation = "assessments.deleteBySupervision"

	OpScheduleCreate       Operation = "schedules.create"
	OpScheduleList         Operation = "schedules.list"
	OpScheduleUpcoming     Operation = "schedules.upcoming"
	OpScheduleCalendar     Operation = "schedules.calendar"
	OpScheduleGet          Operation = "schedules.get"
	OpScheduleUpdate       Operation = "schedules.update"
	OpScheduleUpdateStatus Operation = "schedules.updateStatus"
	OpScheduleDelete       Operation = "schedules.delete"

	OpReportCreate       Operation = "reports.create"
	OpReportGenerate     Operation = "reports.generate"
	OpReportList         Operation = "reports.list"
	OpReportStats        Operation = "reports.stats"
	OpReportByTeacher    Operation = "reports.byTeacher"
	OpReportGet          Operation = "reports.get"
	OpReportUpdate       Operation = "reports.update"
	OpReportUpdateStatus Operation = "reports.updateStatus"
	OpReportDelete       Operation = "reports.delete"
	OpReportExport       Operation = "reports.export"
	OpReportExportStatus Operation = "reports.exportStatus"

	OpMetrics Operation = "system.metrics"
)

var (
	anyRole     = []models.UserRole{models.RoleAdmin, models.RoleSupervisor, models.RoleTeacher}
	adminOnly   = []models.UserRole{models.RoleAdmin}
	staff       = []models.UserRole{models.RoleAdmin, models.RoleSupervisor}
	teacherOnly = []models.UserRole{models.RoleTeacher}
)

// Policy maps every protected operation to the roles allowed to call it.
var Policy = map[Operation][]models.UserRole{
	OpAuthLogout: anyRole,
	OpAuthMe:     anyRole,

	OpUserCreate:         adminOnly,
	OpUserBulkCreate:     adminOnly,
	OpUserList:           adminOnly,
	OpUserSearch:         staff,
	OpUserListByRole:     adminOnly,
	OpUserListActive:     adminOnly,
	OpUserStats:          adminOnly,
	OpUserCheckEmail:     adminOnly,
	OpUserProfile:        anyRole,
	OpUserUpdateProfile:  anyRole,
	OpUserGet:            anyRole,
	OpUserUpdate:         adminOnly,
	OpUserToggleActive:   adminOnly,
	OpUserChangePassword: anyRole,
	OpUserDelete:         adminOnly,

	OpTeacherCreate: adminOnly,
	OpTeacherList:   staff,
	OpTeacherMe:     teacherOnly,
	OpTeacherGet:    anyRole,
	OpTeacherUpdate: adminOnly,
	OpTeacherDelete: adminOnly,

	OpSupervisorCreate:         adminOnly,
	OpSupervisorList:           anyRole,
	OpSupervisorGet:            anyRole,
	OpSupervisorUpdate:         adminOnly,
	OpSupervisorDelete:         adminOnly,
	OpSupervisorTeachers:       staff,
	OpSupervisorAssignTeachers: staff,

	OpSupervisionCreate:       staff,
	OpSupervisionList:         anyRole,
	OpSupervisionStats:        staff,
	OpSupervisionGet:          anyRole,
	OpSupervisionUpdate:       staff,
	OpSupervisionUpdateStatus: staff,
	OpSupervisionDelete:       staff,

	OpAssessmentCreate:              staff,
	OpAssessmentCreateMultiple:      staff,
	OpAssessmentList:                anyRole,
	OpAssessmentBySupervision:       anyRole,
	OpAssessmentTeacherSummary:      anyRole,
	OpAssessmentGet:                 anyRole,
	OpAssessmentUpdate:              staff,
	OpAssessmentDelete:              staff,
	OpAssessmentDeleteBySupervision: staff,

	OpScheduleCreate:       staff,
	OpScheduleList:         anyRole,
	OpScheduleUpcoming:     anyRole,
	OpScheduleCalendar:     anyRole,
	OpScheduleGet:          anyRole,
	OpScheduleUpdate:       staff,
	OpScheduleUpdateStatus: staff,
	OpScheduleDelete:       staff,

	OpReportCreate:       staff,
	OpReportGenerate:     staff,
	OpReportList:         anyRole,
	OpReportStats:        staff,
	OpReportByTeacher:    anyRole,
	OpReportGet:          anyRole,
	OpReportUpdate:       staff,
	OpReportUpdateStatus: staff,
	OpReportDelete:       staff,
	OpReportExport:       staff,
	OpReportExportStatus: anyRole,

	OpMetrics: adminOnly,
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(op Operation, role models.UserRole) bool {
	for _, r := range Policy[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize enforces the policy for op. It must run after JWT.
func Authorize(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !Allowed(op, claims.Role) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation"))
			c.Abort()
			return
		}
		c.Next()
	}
}
