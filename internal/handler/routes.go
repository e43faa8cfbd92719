package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kru-apps/gradebook-api/internal/middleware"
	"github.com/kru-apps/gradebook-api/internal/models"
	"github.com/kru-apps/gradebook-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth       *AuthHandler
	Students   *StudentHandler
	Classrooms *ClassroomHandler
	Courses    *CourseHandler
	Assignment *AssignmentHandler
	Exams      *ExamHandler
	Grading    *GradingHandler
	Analytics  *AnalyticsHandler
	Exports    *ExportHandler
}

// RegisterRoutes mounts all API routes under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService) {
	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Signed token downloads carry their own authorisation.
	api.GET("/exports/download", h.Exports.Download)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	secured.GET("/students", staff, h.Students.List)
	secured.GET("/students/:id", staff, h.Students.Get)
	secured.POST("/students", admin, h.Students.Create)
	secured.PUT("/students/:id", admin, h.Students.Update)
	secured.DELETE("/students/:id", admin, h.Students.Delete)
	secured.POST("/students/import", admin, h.Students.Import)

	secured.GET("/classrooms", staff, h.Classrooms.List)
	secured.GET("/classrooms/:id", staff, h.Classrooms.Get)
	secured.POST("/classrooms", admin, h.Classrooms.Create)
	secured.GET("/classrooms/:id/students", staff, h.Classrooms.Roster)
	secured.POST("/classrooms/:id/enroll", staff, h.Classrooms.EnrollIntoCourse)

	secured.GET("/courses", staff, h.Courses.List)
	secured.GET("/courses/:id", staff, h.Courses.Get)
	secured.POST("/courses", staff, h.Courses.Create)
	secured.PUT("/courses/:id", staff, h.Courses.Update)
	secured.POST("/courses/:id/close", staff, h.Courses.Close)
	secured.GET("/courses/:id/students", staff, h.Courses.Students)
	secured.POST("/courses/:id/students", staff, h.Courses.Enroll)
	secured.DELETE("/courses/:id/students/:studentId", staff, h.Courses.Unenroll)

	secured.GET("/courses/:id/assignments", staff, h.Assignment.List)
	secured.POST("/courses/:id/assignments", staff, h.Assignment.Create)
	secured.DELETE("/courses/:id/assignments/:assignmentId", staff, h.Assignment.Delete)

	secured.GET("/courses/:id/exams", staff, h.Exams.List)
	secured.POST("/courses/:id/exams", staff, h.Exams.Create)
	secured.DELETE("/courses/:id/exams/:examId", staff, h.Exams.Delete)

	secured.GET("/courses/:id/gradebook", staff, h.Grading.Gradebook)
	secured.POST("/courses/:id/assignments/:assignmentId/submissions/:studentId/toggle", staff, h.Grading.ToggleStatus)
	secured.PUT("/courses/:id/grades", staff, h.Grading.BulkSave)
	secured.GET("/courses/:id/students/:studentId/summary", anyRole, h.Grading.Summary)

	secured.GET("/courses/:id/analytics", staff, h.Analytics.Course)

	secured.GET("/courses/:id/export-settings", staff, h.Exports.GetSettings)
	secured.PUT("/courses/:id/export-settings", staff, h.Exports.SaveSettings)
	secured.POST("/courses/:id/exports", staff, h.Exports.Request)
	secured.GET("/exports/:jobId", staff, h.Exports.Status)
}
