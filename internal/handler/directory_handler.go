package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
	"github.com/noah-isme/sma-adp-scheduler/pkg/response"
)

type directoryService interface {
	ListClasses(ctx context.Context, scope models.ClassScope) ([]models.Class, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListClassrooms(ctx context.Context) ([]models.Classroom, error)
	ListEnrollments(ctx context.Context, actor models.Viewer, studentID string) ([]models.Enrollment, error)
	ListChildren(ctx context.Context, actor models.Viewer, parentID string) ([]models.Child, error)
	InvalidateCache(ctx context.Context, scope string) error
}

// DirectoryHandler exposes the class, teacher, classroom, enrollment and guardian lookups.
type DirectoryHandler struct {
	service directoryService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(svc directoryService) *DirectoryHandler {
	return &DirectoryHandler{service: svc}
}

// InvalidateCacheRequest selects which cached listings to drop.
type InvalidateCacheRequest struct {
	Scope string `json:"scope" example:"all"`
}

// ListClasses godoc
// @Summary List classes
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Param teacherId query string false "Only classes taught by this teacher"
// @Param ids query string false "Comma separated class ids"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *DirectoryHandler) ListClasses(c *gin.Context) {
	scope := models.ClassScope{TeacherID: c.Query("teacherId"), ClassIDs: splitList(c.Query("ids"))}
	classes, err := h.service.ListClasses(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// ListTeachers godoc
// @Summary List teachers
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *DirectoryHandler) ListTeachers(c *gin.Context) {
	teachers, err := h.service.ListTeachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// ListClassrooms godoc
// @Summary List classrooms
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *DirectoryHandler) ListClassrooms(c *gin.Context) {
	rooms, err := h.service.ListClassrooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// ListEnrollments godoc
// @Summary List a student's active enrollments
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/enrollments [get]
func (h *DirectoryHandler) ListEnrollments(c *gin.Context) {
	actor, err := viewerFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollments, err := h.service.ListEnrollments(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// ListChildren godoc
// @Summary List a parent's children
// @Tags Directory
// @Produce json
// @Security BearerAuth
// @Param id path string true "Parent ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /parents/{id}/children [get]
func (h *DirectoryHandler) ListChildren(c *gin.Context) {
	actor, err := viewerFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	children, err := h.service.ListChildren(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, children, nil)
}

// InvalidateCache godoc
// @Summary Drop cached directory listings
// @Tags Directory
// @Accept json
// @Security BearerAuth
// @Param payload body InvalidateCacheRequest false "Scope: all, classes, teachers or classrooms"
// @Success 202
// @Router /cache/invalidate [post]
func (h *DirectoryHandler) InvalidateCache(c *gin.Context) {
	var req InvalidateCacheRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
			return
		}
	}
	if err := h.service.InvalidateCache(c.Request.Context(), req.Scope); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
