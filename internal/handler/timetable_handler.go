package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/response"
)

type timetableService interface {
	GetStructure(ctx context.Context, institutionID string) (*models.Structure, error)
	GetSchedule(ctx context.Context, institutionID string) (dto.FullTimeTable, error)
	TeacherTimetable(ctx context.Context, institutionID, teacherRef string) (dto.TimeTable, error)
	SaveGrid(ctx context.Context, institutionID string, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error)
	EditCell(ctx context.Context, institutionID string, req dto.EditCellRequest) (*dto.EditCellResponse, error)
	Generate(ctx context.Context, institutionID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
}

// TimetableHandler exposes schedule read and edit endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(service timetableService) *TimetableHandler {
	return &TimetableHandler{service: service}
}

// Structure godoc
// @Summary Timetable structure
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedules/structure [get]
func (h *TimetableHandler) Structure(c *gin.Context) {
	structure, err := h.service.GetStructure(c.Request.Context(), institutionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, structure)
}

// Schedule godoc
// @Summary Full timetable
// @Description Every grid as [semester][section][day][period]; assigned cells are [teacher, subject, room].
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *TimetableHandler) Schedule(c *gin.Context) {
	full, err := h.service.GetSchedule(c.Request.Context(), institutionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, full)
}

// TeacherSchedule godoc
// @Summary Teacher timetable
// @Tags Schedules
// @Produce json
// @Param teacherId path string true "Teacher id or name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/teachers/{teacherId} [get]
func (h *TimetableHandler) TeacherSchedule(c *gin.Context) {
	table, err := h.service.TeacherTimetable(c.Request.Context(), institutionFromContext(c), c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, table)
}

// SaveGrid godoc
// @Summary Replace one grid
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Grid payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules [post]
func (h *TimetableHandler) SaveGrid(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.SaveGrid(c.Request.Context(), institutionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// EditCell godoc
// @Summary Place, replace or clear one cell
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.EditCellRequest true "Cell payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/cells [put]
func (h *TimetableHandler) EditCell(c *gin.Context) {
	var req dto.EditCellRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.EditCell(c.Request.Context(), institutionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Generate godoc
// @Summary Auto-fill the timetable
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest false "Generation options"
// @Success 200 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	resp, err := h.service.Generate(c.Request.Context(), institutionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp, map[string]interface{}{"unresolved": len(resp.Unresolved)})
}
