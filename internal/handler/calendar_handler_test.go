package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scheduler/internal/middleware"
	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/scheduler"
)

// Monday 19 Oct 2026, 08:00.
var calendarNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type memCollaborator struct {
	mu      sync.Mutex
	events  []models.ScheduleEvent
	listErr error
}

func newMemCollaborator() *memCollaborator {
	return &memCollaborator{events: []models.ScheduleEvent{
		{ID: "e-1", ClassID: "c-math", ClassroomID: "r-1", DayOfWeek: 1, StartTime: models.Clock(9, 0), EndTime: models.Clock(10, 0)},
		{ID: "e-2", ClassID: "c-bio", ClassroomID: "r-2", DayOfWeek: 2, StartTime: models.Clock(10, 30), EndTime: models.Clock(12, 0)},
	}}
}

func (m *memCollaborator) ListSchedules(ctx context.Context) ([]models.ScheduleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ScheduleEvent(nil), m.events...), m.listErr
}

func (m *memCollaborator) ListClasses(ctx context.Context, scope models.ClassScope) ([]models.Class, error) {
	t1, t2 := "t-1", "t-2"
	all := []models.Class{
		{ID: "c-bio", Name: "Biology 10A", Subject: "Biology", TeacherID: &t2},
		{ID: "c-math", Name: "Math 10A", Subject: "Mathematics", TeacherID: &t1},
	}
	var out []models.Class
	for _, c := range all {
		if scope.TeacherID != "" && c.TeacherIDValue() != scope.TeacherID {
			continue
		}
		if len(scope.ClassIDs) > 0 && !contains(scope.ClassIDs, c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memCollaborator) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	return []models.Teacher{{ID: "t-1", FullName: "Siti Rahma"}, {ID: "t-2", FullName: "Budi Santoso"}}, nil
}

func (m *memCollaborator) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	return []models.Classroom{{ID: "r-1", Name: "Room 101", Building: "A"}, {ID: "r-2", Name: "Lab 2", Building: "B"}}, nil
}

func (m *memCollaborator) ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	return []models.Enrollment{{StudentID: studentID, ClassID: "c-math"}}, nil
}

func (m *memCollaborator) ListChildren(ctx context.Context, parentID string) ([]models.Child, error) {
	return nil, nil
}

func (m *memCollaborator) CreateSchedule(ctx context.Context, event models.ScheduleEvent) (*models.ScheduleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = "e-new"
	m.events = append(m.events, event)
	return &event, nil
}

func (m *memCollaborator) PatchSchedule(ctx context.Context, id string, patch models.SchedulePatch) (*models.ScheduleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.events {
		if e.ID == id {
			m.events[i] = patch.Apply(e)
			updated := m.events[i]
			return &updated, nil
		}
	}
	return nil, &scheduler.StatusError{Status: http.StatusNotFound, Message: "schedule not found"}
}

func (m *memCollaborator) DeleteSchedule(ctx context.Context, id string) error {
	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

type gaugeStub struct{ last int }

func (g *gaugeStub) SetCalendarSessions(n int) { g.last = n }

type calendarFixture struct {
	router *gin.Engine
	collab *memCollaborator
	gauge  *gaugeStub
}

func newCalendarFixture() *calendarFixture {
	gin.SetMode(gin.TestMode)
	collab := newMemCollaborator()
	registry := scheduler.NewRegistry(collab, scheduler.SessionConfig{Now: func() time.Time { return calendarNow }}, time.Hour)
	gauge := &gaugeStub{}
	h := NewCalendarHandler(registry, gauge, nil)

	router := gin.New()
	group := router.Group("/calendar", func(c *gin.Context) {
		role, ok := models.ParseRole(c.GetHeader("X-Role"))
		if ok {
			viewer := models.Viewer{ID: c.GetHeader("X-User"), Name: "Tester", Role: role}
			c.Set(middleware.ContextViewerKey, viewer)
			c.Request = c.Request.WithContext(scheduler.ContextWithViewer(c.Request.Context(), viewer))
		}
		c.Next()
	})
	RegisterCalendarRoutes(group, h)
	return &calendarFixture{router: router, collab: collab, gauge: gauge}
}

func (f *calendarFixture) do(t *testing.T, method, path, role, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Role", role)
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestCalendarRenderForAdmin(t *testing.T) {
	f := newCalendarFixture()

	rec := f.do(t, http.MethodGet, "/calendar", "ADMIN", "a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view scheduler.CalendarView
	decodeData(t, rec, &view)
	assert.True(t, view.Loaded)
	assert.True(t, view.CanEdit)
	assert.Equal(t, "2026-10-18", view.WeekStart)
	assert.Len(t, view.Columns, 7)
	require.Len(t, view.Events, 2)
	assert.Equal(t, "Math 10A", view.Events[0].Title)
	assert.Equal(t, "Siti Rahma", view.Events[0].TeacherName)
	assert.Equal(t, 1, f.gauge.last)
}

func TestCalendarRenderDayMode(t *testing.T) {
	f := newCalendarFixture()

	rec := f.do(t, http.MethodGet, "/calendar?mode=day", "ADMIN", "a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view scheduler.CalendarView
	decodeData(t, rec, &view)
	require.Len(t, view.Columns, 1)
	assert.Equal(t, 1, view.Columns[0].DayOfWeek)
	require.Len(t, view.Events, 1)
	assert.Equal(t, "e-1", view.Events[0].ID)
}

func TestCalendarRequiresViewer(t *testing.T) {
	f := newCalendarFixture()
	rec := f.do(t, http.MethodGet, "/calendar", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCalendarLoadFailureReturnsDataLoadError(t *testing.T) {
	f := newCalendarFixture()
	f.collab.listErr = &scheduler.StatusError{Status: http.StatusInternalServerError, Message: "db down"}

	rec := f.do(t, http.MethodGet, "/calendar", "ADMIN", "a-1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "DATA_LOAD_ERROR", errorCode(t, rec))

	f.collab.listErr = &scheduler.StatusError{Status: http.StatusUnauthorized}
	rec = f.do(t, http.MethodPost, "/calendar/refresh", "ADMIN", "a-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCalendarClickRoutingForTeacher(t *testing.T) {
	f := newCalendarFixture()
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/calendar", "TEACHER", "t-1", nil).Code)

	rec := f.do(t, http.MethodPost, "/calendar/events/e-1/click", "TEACHER", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var intent scheduler.Intent
	decodeData(t, rec, &intent)
	assert.Equal(t, scheduler.IntentEditor, intent.Kind)
	require.NotNil(t, intent.Editor)
	assert.Equal(t, "e-1", intent.Editor.EventID)

	rec = f.do(t, http.MethodPost, "/calendar/events/e-missing/click", "TEACHER", "t-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarStudentIsReadOnly(t *testing.T) {
	f := newCalendarFixture()
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/calendar", "STUDENT", "s-1", nil).Code)

	rec := f.do(t, http.MethodPost, "/calendar/cells/click", "STUDENT", "s-1", map[string]int{"day_of_week": 3, "hour": 10})
	require.Equal(t, http.StatusOK, rec.Code)
	var intent scheduler.Intent
	decodeData(t, rec, &intent)
	assert.Equal(t, scheduler.IntentNone, intent.Kind)
	assert.Equal(t, "read-only", intent.Reason)

	rec = f.do(t, http.MethodPost, "/calendar/editor", "STUDENT", "s-1", map[string]int{"day_of_week": 3, "hour": 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/calendar/cells/click", "STUDENT", "s-1", map[string]int{"day_of_week": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarDragAndDrop(t *testing.T) {
	f := newCalendarFixture()
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/calendar", "ADMIN", "a-1", nil).Code)

	rec := f.do(t, http.MethodPost, "/calendar/drag/start", "ADMIN", "a-1", map[string]string{"event_id": "e-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var drag scheduler.DragSnapshot
	decodeData(t, rec, &drag)
	assert.Equal(t, scheduler.DragDragging, drag.State)

	rec = f.do(t, http.MethodPost, "/calendar/drag/over", "ADMIN", "a-1", map[string]interface{}{"day_of_week": 3, "hour": 14, "classroom_id": "r-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &drag)
	assert.Equal(t, scheduler.DragHovering, drag.State)

	rec = f.do(t, http.MethodPost, "/calendar/drag/drop", "ADMIN", "a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result scheduler.DropResult
	decodeData(t, rec, &result)
	assert.True(t, result.Committed)
	assert.Equal(t, 3, result.Event.DayOfWeek)
	assert.Equal(t, models.Clock(14, 0), result.Event.StartTime)
	assert.Equal(t, models.Clock(15, 0), result.Event.EndTime)
	assert.Equal(t, "r-2", result.Event.ClassroomID)

	rec = f.do(t, http.MethodGet, "/calendar", "ADMIN", "a-1", nil)
	var view scheduler.CalendarView
	decodeData(t, rec, &view)
	require.Len(t, view.Notifications, 1)
	assert.Equal(t, "Class moved", view.Notifications[0].Message)

	rec = f.do(t, http.MethodDelete, "/calendar/notifications/"+view.Notifications[0].ID, "ADMIN", "a-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/calendar/notifications/"+view.Notifications[0].ID, "ADMIN", "a-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarEditorCreateFlow(t *testing.T) {
	f := newCalendarFixture()
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/calendar", "TEACHER", "t-1", nil).Code)

	rec := f.do(t, http.MethodPost, "/calendar/editor", "TEACHER", "t-1", map[string]int{"day_of_week": 5, "hour": 9})
	require.Equal(t, http.StatusOK, rec.Code)
	var snap scheduler.EditorSnapshot
	decodeData(t, rec, &snap)
	assert.True(t, snap.Open)
	assert.Equal(t, models.Clock(10, 0), snap.Form.EndTime)

	rec = f.do(t, http.MethodPost, "/calendar/editor/submit", "TEACHER", "t-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = f.do(t, http.MethodPatch, "/calendar/editor", "TEACHER", "t-1", map[string]string{"class_id": "c-math", "classroom_id": "r-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/calendar/editor/submit", "TEACHER", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var event models.ScheduleEvent
	decodeData(t, rec, &event)
	assert.Equal(t, "e-new", event.ID)
	assert.Equal(t, 5, event.DayOfWeek)

	rec = f.do(t, http.MethodDelete, "/calendar/editor", "TEACHER", "t-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCalendarNavigateAndOptions(t *testing.T) {
	f := newCalendarFixture()

	rec := f.do(t, http.MethodPost, "/calendar/navigate", "ADMIN", "a-1", map[string]string{"action": "next_week"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view scheduler.CalendarView
	decodeData(t, rec, &view)
	assert.Equal(t, "2026-10-25", view.WeekStart)

	rec = f.do(t, http.MethodPost, "/calendar/navigate", "ADMIN", "a-1", map[string]string{"action": "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/calendar/options", "ADMIN", "a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var options OptionsResponse
	decodeData(t, rec, &options)
	assert.Len(t, options.Classes, 2)
	assert.Len(t, options.Classrooms, 2)
}

func TestCalendarExport(t *testing.T) {
	f := newCalendarFixture()

	rec := f.do(t, http.MethodGet, "/calendar/export?format=csv", "ADMIN", "a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "timetable-2026-10-18.csv")
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "Day,Date,Start,End"))
	assert.Contains(t, body, "Math 10A")

	rec = f.do(t, http.MethodGet, "/calendar/export", "ADMIN", "a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = f.do(t, http.MethodGet, "/calendar/export?format=xlsx", "ADMIN", "a-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
