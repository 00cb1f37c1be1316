package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/scheduler"
	"github.com/noah-isme/sma-adp-scheduler/pkg/export"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
	"github.com/noah-isme/sma-adp-scheduler/pkg/logger"
	"github.com/noah-isme/sma-adp-scheduler/pkg/response"
)

type sessionRegistry interface {
	Session(viewer models.Viewer) *scheduler.Session
	Len() int
}

type sessionGauge interface {
	SetCalendarSessions(n int)
}

// CalendarHandler routes calendar gestures to the caller's session.
type CalendarHandler struct {
	sessions sessionRegistry
	gauge    sessionGauge
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(sessions sessionRegistry, gauge sessionGauge, logger *zap.Logger) *CalendarHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarHandler{
		sessions: sessions,
		gauge:    gauge,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// CellRequest addresses one grid cell.
type CellRequest struct {
	DayOfWeek *int `json:"day_of_week" binding:"required"`
	Hour      *int `json:"hour" binding:"required"`
}

// NavigateRequest moves the calendar's reference date.
type NavigateRequest struct {
	Action string `json:"action" binding:"required" example:"next_week"`
}

// DragStartRequest picks the dragged event.
type DragStartRequest struct {
	EventID string `json:"event_id" binding:"required"`
}

// DragOverRequest reports the hovered cell.
type DragOverRequest struct {
	ClassroomID string `json:"classroom_id"`
	DayOfWeek   *int   `json:"day_of_week" binding:"required"`
	Hour        *int   `json:"hour" binding:"required"`
}

// OptionsResponse lists picker choices for the editor.
type OptionsResponse struct {
	Classes    []scheduler.ClassOption `json:"classes"`
	Classrooms []models.Classroom      `json:"classrooms"`
}

func (h *CalendarHandler) session(c *gin.Context) (*scheduler.Session, bool) {
	viewer, err := viewerFromContext(c)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	s := h.sessions.Session(viewer)
	if h.gauge != nil {
		h.gauge.SetCalendarSessions(h.sessions.Len())
	}
	return s, true
}

func (h *CalendarHandler) fail(c *gin.Context, err error) {
	appErr := scheduler.ToAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		logger.ForRequest(h.logger, c).Warn("calendar request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, appErr)
}

// Render godoc
// @Summary Render the caller's calendar
// @Description Loads the caller's schedule on first use and returns the grid, event blocks, editor and notifications.
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Param mode query string false "week or day"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /calendar [get]
func (h *CalendarHandler) Render(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if mode := c.Query("mode"); mode != "" {
		s.SetMode(scheduler.ParseMode(mode))
	}
	if err := s.EnsureLoaded(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s.Render())
}

// Refresh godoc
// @Summary Reload calendar data
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /calendar/refresh [post]
func (h *CalendarHandler) Refresh(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s.Render())
}

// SetFilters godoc
// @Summary Replace the teacher/class filter
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body scheduler.Filter true "Filter"
// @Success 200 {object} response.Envelope
// @Router /calendar/filters [put]
func (h *CalendarHandler) SetFilters(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var filter scheduler.Filter
	if err := c.ShouldBindJSON(&filter); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if err := s.SetFilter(c.Request.Context(), filter); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s.Render())
}

// Navigate godoc
// @Summary Move to another week or day
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body NavigateRequest true "next_week, prev_week, next_day, prev_day or today"
// @Success 200 {object} response.Envelope
// @Router /calendar/navigate [post]
func (h *CalendarHandler) Navigate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if err := s.Navigate(scheduler.NavAction(req.Action)); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s.Render())
}

// Options godoc
// @Summary List class and classroom choices
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /calendar/options [get]
func (h *CalendarHandler) Options(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.EnsureLoaded(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	classes, rooms := s.Options()
	response.OK(c, OptionsResponse{Classes: classes, Classrooms: rooms})
}

// ClickCell godoc
// @Summary Click an empty cell
// @Description Opens a new-event editor when the viewer may add classes on that day.
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body CellRequest true "Cell"
// @Success 200 {object} response.Envelope
// @Router /calendar/cells/click [post]
func (h *CalendarHandler) ClickCell(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	intent, err := s.ClickCell(*req.DayOfWeek, *req.Hour)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, intent)
}

// ClickEvent godoc
// @Summary Click an event
// @Description Opens the editor for owners and admins, otherwise the detail panel.
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /calendar/events/{id}/click [post]
func (h *CalendarHandler) ClickEvent(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	intent, err := s.ClickEvent(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, intent)
}

// DragStart godoc
// @Summary Start dragging an event
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body DragStartRequest true "Event"
// @Success 200 {object} response.Envelope
// @Router /calendar/drag/start [post]
func (h *CalendarHandler) DragStart(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req DragStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if err := s.DragStart(req.EventID); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, s.Render().Drag)
}

// DragOver godoc
// @Summary Hover a drop target
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body DragOverRequest true "Target cell"
// @Success 200 {object} response.Envelope
// @Router /calendar/drag/over [post]
func (h *CalendarHandler) DragOver(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req DragOverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	s.DragOver(scheduler.DropTarget{ClassroomID: req.ClassroomID, DayOfWeek: *req.DayOfWeek, Hour: *req.Hour})
	response.OK(c, s.Render().Drag)
}

// DragDrop godoc
// @Summary Drop the dragged event
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /calendar/drag/drop [post]
func (h *CalendarHandler) DragDrop(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	result, err := s.DragDrop(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, result)
}

// DragCancel godoc
// @Summary Cancel the drag
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /calendar/drag/cancel [post]
func (h *CalendarHandler) DragCancel(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.DragCancel()
	response.OK(c, s.Render().Drag)
}

// OpenEditor godoc
// @Summary Open the editor for a new event
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body CellRequest true "Cell"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /calendar/editor [post]
func (h *CalendarHandler) OpenEditor(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	snap, err := s.OpenEditor(*req.DayOfWeek, *req.Hour)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, snap)
}

// ChangeEditor godoc
// @Summary Change editor fields
// @Tags Calendar
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body scheduler.EditorChanges true "Changed fields"
// @Success 200 {object} response.Envelope
// @Router /calendar/editor [patch]
func (h *CalendarHandler) ChangeEditor(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var changes scheduler.EditorChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	snap, err := s.ChangeEditor(changes)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, snap)
}

// SubmitEditor godoc
// @Summary Save the editor form
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /calendar/editor/submit [post]
func (h *CalendarHandler) SubmitEditor(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	event, err := s.SubmitEditor(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, event)
}

// RequestDelete godoc
// @Summary Ask to delete the edited event
// @Tags Calendar
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /calendar/editor/delete [post]
func (h *CalendarHandler) RequestDelete(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.RequestDelete()
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, snap)
}

// ConfirmDelete godoc
// @Summary Confirm deletion of the edited event
// @Tags Calendar
// @Security BearerAuth
// @Success 204
// @Failure 502 {object} response.Envelope
// @Router /calendar/editor/delete/confirm [post]
func (h *CalendarHandler) ConfirmDelete(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.ConfirmDelete(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// CloseEditor godoc
// @Summary Discard the editor
// @Tags Calendar
// @Security BearerAuth
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /calendar/editor [delete]
func (h *CalendarHandler) CloseEditor(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.CloseEditor(); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// DismissNotification godoc
// @Summary Dismiss a notification
// @Tags Calendar
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /calendar/notifications/{id} [delete]
func (h *CalendarHandler) DismissNotification(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if !s.Dismiss(c.Param("id")) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "notification not found"))
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download the visible timetable
// @Tags Calendar
// @Produce application/pdf
// @Produce text/csv
// @Security BearerAuth
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Router /calendar/export [get]
func (h *CalendarHandler) Export(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.EnsureLoaded(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	view := s.Render()
	timetable := timetableFrom(view)
	filename := "timetable-" + view.WeekStart

	switch format := strings.ToLower(c.DefaultQuery("format", "pdf")); format {
	case "csv":
		body, err := h.csv.Render(timetable)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		response.Attachment(c, filename+".csv", "text/csv", body)
	case "pdf":
		body, err := h.pdf.Render(timetable)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		response.Attachment(c, filename+".pdf", "application/pdf", body)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format)))
	}
}

func timetableFrom(view scheduler.CalendarView) export.Timetable {
	title := "Timetable, week of " + view.WeekStart
	if view.Viewer.Name != "" {
		title = view.Viewer.Name + " - " + title
	}
	out := export.Timetable{Title: title}
	for _, col := range view.Columns {
		out.Columns = append(out.Columns, export.Column{DayOfWeek: col.DayOfWeek, Date: col.Date, Label: col.Label})
	}
	for _, row := range view.Rows {
		out.Hours = append(out.Hours, row.Hour)
	}
	for _, block := range view.Events {
		out.Entries = append(out.Entries, export.Entry{
			DayOfWeek: block.DayOfWeek,
			Start:     block.StartTime.String(),
			End:       block.EndTime.String(),
			StartHour: block.StartTime.Hour(),
			Title:     block.Title,
			Subject:   block.Subject,
			Teacher:   block.TeacherName,
			Classroom: block.ClassroomName,
		})
	}
	return out
}
