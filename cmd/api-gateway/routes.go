package main

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/supervisi-api/api/swagger"
	"github.com/noah-isme/supervisi-api/internal/handler"
	"github.com/noah-isme/supervisi-api/internal/middleware"
	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/service"
	"github.com/noah-isme/supervisi-api/pkg/config"
	"github.com/noah-isme/supervisi-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/supervisi-api/pkg/middleware/cors"
	"github.com/noah-isme/supervisi-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/supervisi-api/pkg/middleware/requestid"
)

// routerDeps is everything newRouter mounts.
type routerDeps struct {
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
	Metrics        *service.MetricsService
	RateCounter    ratelimit.Counter
	ExportsEnabled bool

	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Teachers     *handler.TeacherHandler
	Supervisors  *handler.SupervisorHandler
	Supervisions *handler.SupervisionHandler
	Assessments  *handler.AssessmentHandler
	Schedules    *handler.ScheduleHandler
	Reports      *handler.ReportHandler
	System       *handler.MetricsHandler
}

func rateCounter(client *redis.Client) ratelimit.Counter {
	return ratelimit.NewRedisCounter(client)
}

func newRouter(cfg *config.Config, d routerDeps, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.Metrics))

	r.GET("/health", d.System.Health)
	r.GET("/ready", d.System.Ready)
	r.GET("/metrics", d.System.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authn := middleware.JWT(d.Tokens)
	// guard chains JWT and the role policy for op.
	guard := func(op middleware.Operation, extra ...gin.HandlerFunc) []gin.HandlerFunc {
		return append([]gin.HandlerFunc{authn, middleware.Authorize(op)}, extra...)
	}
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(d.Audit, logr, action, resource)
	}
	with := func(chain []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
		return append(chain, h)
	}

	auth := api.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", ratelimit.Middleware(d.RateCounter, cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow), d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", with(guard(middleware.OpAuthLogout), d.Auth.Logout)...)
	auth.GET("/me", with(guard(middleware.OpAuthMe), d.Auth.Me)...)

	users := api.Group("/users")
	users.POST("", with(guard(middleware.OpUserCreate), d.Users.Create)...)
	users.POST("/bulk", with(guard(middleware.OpUserBulkCreate), d.Users.BulkCreate)...)
	users.GET("", with(guard(middleware.OpUserList), d.Users.List)...)
	users.GET("/search", with(guard(middleware.OpUserSearch), d.Users.Search)...)
	users.GET("/role/:role", with(guard(middleware.OpUserListByRole), d.Users.ListByRole)...)
	users.GET("/active", with(guard(middleware.OpUserListActive), d.Users.ListActive)...)
	users.GET("/stats", with(guard(middleware.OpUserStats), d.Users.Stats)...)
	users.GET("/check-email", with(guard(middleware.OpUserCheckEmail), d.Users.CheckEmail)...)
	users.GET("/profile", with(guard(middleware.OpUserProfile), d.Users.Profile)...)
	users.PATCH("/profile", with(guard(middleware.OpUserUpdateProfile), d.Users.UpdateProfile)...)
	users.GET("/:id", with(guard(middleware.OpUserGet), d.Users.Get)...)
	users.PATCH("/:id", with(guard(middleware.OpUserUpdate), d.Users.Update)...)
	users.PATCH("/:id/toggle-active", with(guard(middleware.OpUserToggleActive), d.Users.ToggleActive)...)
	users.PATCH("/:id/change-password", with(guard(middleware.OpUserChangePassword), d.Users.ChangePassword)...)
	users.DELETE("/:id", with(guard(middleware.OpUserDelete), d.Users.Delete)...)

	teachers := api.Group("/teachers")
	teachers.POST("", with(guard(middleware.OpTeacherCreate), d.Teachers.Create)...)
	teachers.GET("", with(guard(middleware.OpTeacherList), d.Teachers.List)...)
	teachers.GET("/me", with(guard(middleware.OpTeacherMe), d.Teachers.Me)...)
	teachers.GET("/:id", with(guard(middleware.OpTeacherGet), d.Teachers.Get)...)
	teachers.PATCH("/:id", with(guard(middleware.OpTeacherUpdate), d.Teachers.Update)...)
	teachers.DELETE("/:id", with(guard(middleware.OpTeacherDelete), d.Teachers.Delete)...)

	supervisors := api.Group("/supervisors")
	supervisors.POST("", with(guard(middleware.OpSupervisorCreate), d.Supervisors.Create)...)
	supervisors.GET("", with(guard(middleware.OpSupervisorList), d.Supervisors.List)...)
	supervisors.GET("/:id", with(guard(middleware.OpSupervisorGet), d.Supervisors.Get)...)
	supervisors.PATCH("/:id", with(guard(middleware.OpSupervisorUpdate), d.Supervisors.Update)...)
	supervisors.DELETE("/:id", with(guard(middleware.OpSupervisorDelete), d.Supervisors.Delete)...)
	supervisors.GET("/:id/teachers", with(guard(middleware.OpSupervisorTeachers), d.Supervisors.Teachers)...)
	supervisors.PUT("/:id/assign-teachers", with(guard(middleware.OpSupervisorAssignTeachers), d.Supervisors.AssignTeachers)...)

	supervisions := api.Group("/supervisions")
	supervisions.POST("", with(guard(middleware.OpSupervisionCreate), d.Supervisions.Create)...)
	supervisions.GET("", with(guard(middleware.OpSupervisionList), d.Supervisions.List)...)
	supervisions.GET("/stats", with(guard(middleware.OpSupervisionStats), d.Supervisions.Stats)...)
	supervisions.GET("/:id", with(guard(middleware.OpSupervisionGet), d.Supervisions.Get)...)
	supervisions.PATCH("/:id", with(guard(middleware.OpSupervisionUpdate), d.Supervisions.Update)...)
	supervisions.PUT("/:id/status/:status", with(guard(middleware.OpSupervisionUpdateStatus), d.Supervisions.UpdateStatus)...)
	supervisions.DELETE("/:id", with(guard(middleware.OpSupervisionDelete), d.Supervisions.Delete)...)

	assessments := api.Group("/assessments")
	assessments.POST("", with(guard(middleware.OpAssessmentCreate), d.Assessments.Create)...)
	assessments.POST("/multiple", with(guard(middleware.OpAssessmentCreateMultiple), d.Assessments.CreateMultiple)...)
	assessments.GET("", with(guard(middleware.OpAssessmentList), d.Assessments.List)...)
	assessments.GET("/supervision/:supervisionId", with(guard(middleware.OpAssessmentBySupervision), d.Assessments.BySupervision)...)
	assessments.GET("/teacher/:teacherId/summary", with(guard(middleware.OpAssessmentTeacherSummary), d.Assessments.TeacherSummary)...)
	assessments.GET("/:id", with(guard(middleware.OpAssessmentGet), d.Assessments.Get)...)
	assessments.PATCH("/:id", with(guard(middleware.OpAssessmentUpdate), d.Assessments.Update)...)
	assessments.DELETE("/:id", with(guard(middleware.OpAssessmentDelete), d.Assessments.Delete)...)
	assessments.DELETE("/supervision/:supervisionId", with(guard(middleware.OpAssessmentDeleteBySupervision), d.Assessments.DeleteBySupervision)...)

	schedules := api.Group("/schedules")
	schedules.POST("", with(guard(middleware.OpScheduleCreate), d.Schedules.Create)...)
	schedules.GET("", with(guard(middleware.OpScheduleList), d.Schedules.List)...)
	schedules.GET("/upcoming", with(guard(middleware.OpScheduleUpcoming), d.Schedules.Upcoming)...)
	schedules.GET("/calendar", with(guard(middleware.OpScheduleCalendar), d.Schedules.Calendar)...)
	schedules.GET("/calendar.ics", with(guard(middleware.OpScheduleCalendar), d.Schedules.CalendarICS)...)
	schedules.GET("/:id", with(guard(middleware.OpScheduleGet), d.Schedules.Get)...)
	schedules.PATCH("/:id", with(guard(middleware.OpScheduleUpdate), d.Schedules.Update)...)
	schedules.PUT("/:id/status", with(guard(middleware.OpScheduleUpdateStatus), d.Schedules.UpdateStatus)...)
	schedules.DELETE("/:id", with(guard(middleware.OpScheduleDelete), d.Schedules.Delete)...)

	reports := api.Group("/reports")
	reports.POST("", with(guard(middleware.OpReportCreate), d.Reports.Create)...)
	reports.POST("/generate", with(guard(middleware.OpReportGenerate, audit(models.AuditActionReportGenerate, "reports")), d.Reports.Generate)...)
	reports.GET("", with(guard(middleware.OpReportList), d.Reports.List)...)
	reports.GET("/stats", with(guard(middleware.OpReportStats), d.Reports.Stats)...)
	reports.GET("/teacher/:teacherId", with(guard(middleware.OpReportByTeacher), d.Reports.ByTeacher)...)
	reports.GET("/:id", with(guard(middleware.OpReportGet), d.Reports.Get)...)
	reports.PATCH("/:id", with(guard(middleware.OpReportUpdate), d.Reports.Update)...)
	reports.PUT("/:id/status/:status", with(guard(middleware.OpReportUpdateStatus), d.Reports.UpdateStatus)...)
	reports.DELETE("/:id", with(guard(middleware.OpReportDelete), d.Reports.Delete)...)
	if d.ExportsEnabled {
		reports.POST("/:id/exports", with(guard(middleware.OpReportExport, audit(models.AuditActionReportExport, "report_exports")), d.Reports.RequestExport)...)
		reports.GET("/exports/:exportId", with(guard(middleware.OpReportExportStatus), d.Reports.ExportStatus)...)
		reports.GET("/exports/download/:token", d.Reports.DownloadExport)
	}

	api.GET("/system/metrics", with(guard(middleware.OpMetrics), d.System.Snapshot)...)

	return r
}
