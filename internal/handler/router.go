package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// RouterDeps are the collaborators behind the API group.
type RouterDeps struct {
	Auth               tokenValidator
	Timetables         *TimetableHandler
	Catalog            *CatalogHandler
	Exports            *ExportHandler
	Metrics            *MetricsHandler
	DefaultInstitution string
	RequestTimeout     time.Duration
	Logger             *zap.Logger
}

// RegisterRoutes mounts the timetable API under api. Writes require ADMIN or SUPERADMIN.
func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	if deps.Exports != nil {
		api.GET("/schedules/exports/download", deps.Exports.Download)
	}

	secured := api.Group("")
	secured.Use(
		middleware.Timeout(deps.RequestTimeout),
		middleware.JWT(deps.Auth),
		middleware.Institution(deps.DefaultInstitution),
	)

	schedules := secured.Group("/schedules")
	schedules.GET("", deps.Timetables.Schedule)
	schedules.GET("/structure", deps.Timetables.Structure)
	schedules.GET("/teachers/:teacherId", deps.Timetables.TeacherSchedule)
	schedules.POST("", admin, middleware.Audit(logger, "schedule.save_grid"), deps.Timetables.SaveGrid)
	schedules.PUT("/cells", admin, middleware.Audit(logger, "schedule.edit_cell"), deps.Timetables.EditCell)
	schedules.POST("/generate", admin, middleware.Audit(logger, "schedule.generate"), deps.Timetables.Generate)
	if deps.Exports != nil {
		schedules.POST("/exports", admin, middleware.Audit(logger, "schedule.export"), deps.Exports.Create)
		schedules.GET("/exports/:id", admin, deps.Exports.Status)
	}

	secured.GET("/teachers", deps.Catalog.Teachers)
	secured.GET("/courses", deps.Catalog.Courses)
	secured.GET("/courses/details", deps.Catalog.CourseDetails)
	secured.GET("/rooms", deps.Catalog.Rooms)

	if deps.Metrics != nil {
		secured.GET("/metrics/system", admin, deps.Metrics.SystemMetrics)
	}
}
