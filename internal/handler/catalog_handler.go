package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type catalogService interface {
	ListTeachers(ctx context.Context, institutionID string) ([]models.Teacher, error)
	ListSubjects(ctx context.Context, institutionID string) ([]models.Subject, error)
	ListRooms(ctx context.Context, institutionID string) ([]models.Room, error)
	SubjectDetails(ctx context.Context, institutionID string) (dto.SubjectDetails, error)
}

// CatalogHandler exposes the read-only teacher, course and room listings.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// Teachers godoc
// @Summary List teachers
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *CatalogHandler) Teachers(c *gin.Context) {
	teachers, err := h.service.ListTeachers(c.Request.Context(), institutionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, teachers, map[string]interface{}{"total": len(teachers)})
}

// Courses godoc
// @Summary List courses
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) Courses(c *gin.Context) {
	subjects, err := h.service.ListSubjects(c.Request.Context(), institutionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, subjects, map[string]interface{}{"total": len(subjects)})
}

// CourseDetails godoc
// @Summary Course legend keyed by course code
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses/details [get]
func (h *CatalogHandler) CourseDetails(c *gin.Context) {
	details, err := h.service.SubjectDetails(c.Request.Context(), institutionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, details)
}

// Rooms godoc
// @Summary List rooms
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *CatalogHandler) Rooms(c *gin.Context) {
	rooms, err := h.service.ListRooms(c.Request.Context(), institutionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rooms, map[string]interface{}{"total": len(rooms)})
}
