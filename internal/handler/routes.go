package handler

import (
	"github.com/gin-gonic/gin"

	internalmiddleware "github.com/noah-isme/sma-adp-scheduler/internal/middleware"
	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

// RegisterCalendarRoutes mounts the calendar screen on group. Every role may use it;
// write access is decided per event by the session.
func RegisterCalendarRoutes(group *gin.RouterGroup, h *CalendarHandler) {
	group.GET("", h.Render)
	group.POST("/refresh", h.Refresh)
	group.PUT("/filters", h.SetFilters)
	group.POST("/navigate", h.Navigate)
	group.GET("/options", h.Options)
	group.GET("/export", h.Export)

	group.POST("/cells/click", h.ClickCell)
	group.POST("/events/:id/click", h.ClickEvent)

	drag := group.Group("/drag")
	drag.POST("/start", h.DragStart)
	drag.POST("/over", h.DragOver)
	drag.POST("/drop", h.DragDrop)
	drag.POST("/cancel", h.DragCancel)

	editor := group.Group("/editor")
	editor.POST("", h.OpenEditor)
	editor.PATCH("", h.ChangeEditor)
	editor.DELETE("", h.CloseEditor)
	editor.POST("/submit", h.SubmitEditor)
	editor.POST("/delete", h.RequestDelete)
	editor.POST("/delete/confirm", h.ConfirmDelete)

	group.DELETE("/notifications/:id", h.DismissNotification)
}

// RegisterScheduleRoutes mounts the schedule resource. Reads are open to every role,
// writes to admins and teachers; ownership is checked by the service.
func RegisterScheduleRoutes(group *gin.RouterGroup, h *ScheduleHandler) {
	writers := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	group.GET("/schedules", h.List)
	group.POST("/schedules", writers, h.Create)
	group.PATCH("/schedules/:id", writers, h.Patch)
	group.DELETE("/schedules/:id", writers, h.Delete)
}

// RegisterDirectoryRoutes mounts the read-only directory listings and the cache control endpoint.
func RegisterDirectoryRoutes(group *gin.RouterGroup, h *DirectoryHandler) {
	group.GET("/classes", h.ListClasses)
	group.GET("/teachers", h.ListTeachers)
	group.GET("/classrooms", h.ListClassrooms)
	group.GET("/students/:id/enrollments",
		internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), string(models.RoleParent), internalmiddleware.RoleSelf),
		h.ListEnrollments)
	group.GET("/parents/:id/children",
		internalmiddleware.RBAC(string(models.RoleAdmin), internalmiddleware.RoleSelf),
		h.ListChildren)
	group.POST("/cache/invalidate", internalmiddleware.RequireRoles(models.RoleAdmin), h.InvalidateCache)
}
