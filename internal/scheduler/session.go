package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/timegrid"
)

const maxNotifications = 20

type viewerKey struct{}

// ContextWithViewer attaches the acting viewer to ctx for collaborator calls.
func ContextWithViewer(ctx context.Context, viewer models.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, viewer)
}

// ViewerFromContext returns the viewer attached by ContextWithViewer.
func ViewerFromContext(ctx context.Context) (models.Viewer, bool) {
	viewer, ok := ctx.Value(viewerKey{}).(models.Viewer)
	return viewer, ok
}

// NotificationLevel classifies a notification.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification is a transient, dismissible message.
type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	Reload    bool              `json:"reload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// IntentKind is the outcome of a click.
type IntentKind string

const (
	IntentNone   IntentKind = "NONE"
	IntentEditor IntentKind = "EDITOR"
	IntentDetail IntentKind = "DETAIL"
)

// Intent tells the caller what a click opened.
type Intent struct {
	Kind   IntentKind      `json:"kind"`
	Reason string          `json:"reason,omitempty"`
	Editor *EditorSnapshot `json:"editor,omitempty"`
	Detail *EventDetail    `json:"detail,omitempty"`
}

// SessionConfig configures sessions built by a Registry.
type SessionConfig struct {
	Grid            timegrid.Grid
	DefaultDuration time.Duration
	Now             func() time.Time
	Logger          *zap.Logger
	Recorder        MutationRecorder
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Grid.Rows() <= 0 {
		c.Grid = timegrid.Default()
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = time.Hour
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Session is one viewer's calendar screen.
type Session struct {
	store    *Store
	drag     *DragController
	editor   *Editor
	logger   *zap.Logger
	now      func() time.Time
	duration time.Duration

	mu       sync.Mutex
	viewer   models.Viewer
	view     *View
	filter   Filter
	notices  []Notification
	lastUsed time.Time
}

// NewSession builds a session for viewer.
func NewSession(viewer models.Viewer, collab Collaborator, cfg SessionConfig) *Session {
	cfg = cfg.withDefaults()
	store := NewStore(collab, WithClock(cfg.Now), WithLogger(cfg.Logger), WithRecorder(cfg.Recorder))
	return &Session{
		store:    store,
		drag:     NewDragController(store, cfg.Grid),
		editor:   NewEditor(store),
		logger:   cfg.Logger.With(zap.String("viewer_id", viewer.ID), zap.String("role", string(viewer.Role))),
		now:      cfg.Now,
		duration: cfg.DefaultDuration,
		viewer:   viewer,
		view:     NewView(cfg.Grid, cfg.Now),
		lastUsed: cfg.Now(),
	}
}

// Viewer returns the session's viewer.
func (s *Session) Viewer() models.Viewer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewer
}

func (s *Session) touch(viewer models.Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = viewer
	s.lastUsed = s.now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) ctx(ctx context.Context) (context.Context, models.Viewer) {
	viewer := s.Viewer()
	return ContextWithViewer(ctx, viewer), viewer
}

// Render builds the current render model.
func (s *Session) Render() CalendarView {
	state, loaded := s.store.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.view.render(renderInput{
		state:   state,
		loaded:  loaded,
		loading: s.store.Loading(),
		viewer:  s.viewer,
		filter:  s.filter,
		drag:    s.drag.Snapshot(),
		pending: s.store.IsPending,
	})
	out.Editor = s.editor.Snapshot()
	out.Notifications = append([]Notification{}, s.notices...)
	return out
}

// EnsureLoaded loads once if nothing has been loaded or is loading.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	if _, loaded := s.store.Snapshot(); loaded || s.store.Loading() {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads the viewer's data with the current filter.
func (s *Session) Refresh(ctx context.Context) error {
	ctx, viewer := s.ctx(ctx)
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()

	_, err := s.store.Load(ctx, viewer, filter)
	switch {
	case err == nil, errors.Is(err, ErrLoadSuperseded):
		return nil
	default:
		s.fail(err)
		return err
	}
}

// SetFilter replaces the filter and reloads.
func (s *Session) SetFilter(ctx context.Context, filter Filter) error {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// SetMode switches week/day rendering.
func (s *Session) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.SetMode(mode)
}

// Navigate moves the reference date. No data is re-fetched.
func (s *Session) Navigate(action NavAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Navigate(action)
}

// Options lists the loaded classes and classrooms for pickers.
func (s *Session) Options() ([]ClassOption, []models.Classroom) {
	state, _ := s.store.Snapshot()
	rooms := make([]models.Classroom, 0, len(state.Classrooms))
	for _, room := range state.Classrooms {
		rooms = append(rooms, room)
	}
	sortClassrooms(rooms)
	return ClassOptions(state), rooms
}

// ClickCell opens the editor on an editable, non-past cell.
func (s *Session) ClickCell(dayOfWeek, hour int) (Intent, error) {
	s.mu.Lock()
	viewer := s.viewer
	grid := s.view.Grid()
	weekStart := s.view.WeekStart()
	s.mu.Unlock()

	if !grid.Contains(grid.SlotFor(dayOfWeek, hour)) {
		return Intent{}, invalid("hour", "cell is outside the calendar")
	}
	if !CanEdit(viewer) {
		return Intent{Kind: IntentNone, Reason: "read-only"}, nil
	}
	if timegrid.IsPast(timegrid.OccurrenceDate(weekStart, dayOfWeek), s.now()) {
		return Intent{Kind: IntentNone, Reason: "past"}, nil
	}
	if err := s.editor.OpenNew(viewer, dayOfWeek, hour, weekStart, s.duration); err != nil {
		return Intent{}, err
	}
	snap := s.editor.Snapshot()
	return Intent{Kind: IntentEditor, Editor: &snap}, nil
}

// ClickEvent opens the editor for owners and admins, otherwise the detail panel.
func (s *Session) ClickEvent(id string) (Intent, error) {
	state, _ := s.store.Snapshot()
	s.mu.Lock()
	viewer, filter := s.viewer, s.filter
	weekStart := s.view.WeekStart()
	s.mu.Unlock()

	var event models.ScheduleEvent
	found := false
	for _, e := range FilterEvents(state.Events, viewer, filter) {
		if e.ID == id {
			event, found = e, true
			break
		}
	}
	if !found {
		return Intent{}, &NotFoundError{ID: id}
	}
	if CanEditEvent(viewer, event) {
		if s.store.IsPending(id) {
			return Intent{}, ErrMutationPending
		}
		if err := s.editor.OpenEdit(viewer, event, weekStart); err != nil {
			return Intent{}, err
		}
		snap := s.editor.Snapshot()
		return Intent{Kind: IntentEditor, Editor: &snap}, nil
	}
	s.mu.Lock()
	detail := s.view.Detail(state, event)
	s.mu.Unlock()
	return Intent{Kind: IntentDetail, Detail: &detail}, nil
}

// DragStart begins dragging an event in the current week.
func (s *Session) DragStart(id string) error {
	s.mu.Lock()
	viewer, weekStart := s.viewer, s.view.WeekStart()
	s.mu.Unlock()
	return s.drag.Start(viewer, id, weekStart)
}

// DragOver records the hovered cell. The date is derived from the current week.
func (s *Session) DragOver(target DropTarget) {
	s.mu.Lock()
	target.Date = timegrid.OccurrenceDate(s.view.WeekStart(), target.DayOfWeek)
	s.mu.Unlock()
	s.drag.Over(target)
}

// DragCancel abandons the drag.
func (s *Session) DragCancel() {
	s.drag.Cancel()
}

// DragDrop commits the drag.
func (s *Session) DragDrop(ctx context.Context) (DropResult, error) {
	ctx, _ = s.ctx(ctx)
	result, err := s.drag.Drop(ctx)
	if err != nil {
		s.fail(err)
		return result, err
	}
	if result.Committed {
		s.notify(LevelSuccess, "Class moved", false)
	}
	return result, nil
}

// OpenEditor opens a blank draft at a cell, like ClickCell but failing for read-only viewers.
func (s *Session) OpenEditor(dayOfWeek, hour int) (EditorSnapshot, error) {
	intent, err := s.ClickCell(dayOfWeek, hour)
	if err != nil {
		return EditorSnapshot{}, err
	}
	if intent.Kind != IntentEditor {
		if intent.Reason == "read-only" {
			return EditorSnapshot{}, ErrReadOnly
		}
		return EditorSnapshot{}, invalid("day_of_week", "cannot schedule a class on a past day")
	}
	return *intent.Editor, nil
}

// ChangeEditor updates editor fields.
func (s *Session) ChangeEditor(changes EditorChanges) (EditorSnapshot, error) {
	if err := s.editor.Change(changes); err != nil {
		return EditorSnapshot{}, err
	}
	return s.editor.Snapshot(), nil
}

// CloseEditor discards the editor.
func (s *Session) CloseEditor() error {
	return s.editor.Close()
}

// SubmitEditor saves the editor form.
func (s *Session) SubmitEditor(ctx context.Context) (models.ScheduleEvent, error) {
	ctx, viewer := s.ctx(ctx)
	event, err := s.editor.Submit(ctx, viewer)
	if err != nil {
		s.fail(err)
		return event, err
	}
	s.notify(LevelSuccess, "Class saved", false)
	return event, nil
}

// RequestDelete asks the editor to confirm deletion.
func (s *Session) RequestDelete() (EditorSnapshot, error) {
	if err := s.editor.RequestDelete(); err != nil {
		return EditorSnapshot{}, err
	}
	return s.editor.Snapshot(), nil
}

// ConfirmDelete deletes the edited event.
func (s *Session) ConfirmDelete(ctx context.Context) error {
	ctx, _ = s.ctx(ctx)
	if err := s.editor.ConfirmDelete(ctx); err != nil {
		s.fail(err)
		return err
	}
	s.notify(LevelSuccess, "Class deleted", false)
	return nil
}

// Dismiss removes a notification. It reports whether one was removed.
func (s *Session) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notices {
		if n.ID == id {
			s.notices = append(s.notices[:i], s.notices[i+1:]...)
			return true
		}
	}
	return false
}

// VisibleEvents returns the laid-out blocks of the current render.
func (s *Session) VisibleEvents() []EventBlock {
	return s.Render().Events
}

// fail reports collaborator failures once. Local validation and session expiry are
// left to the caller.
func (s *Session) fail(err error) {
	var expired *SessionExpiredError
	switch {
	case errors.As(err, &expired):
		return
	case IsValidation(err), errors.Is(err, ErrReadOnly), errors.Is(err, ErrMutationPending):
		return
	}
	s.logger.Warn("calendar action failed", zap.Error(err))
	message := ToAppError(err).Message
	s.notify(LevelError, message, ReloadRecommended(err))
}

func (s *Session) notify(level NotificationLevel, message string, reload bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Reload:    reload,
		CreatedAt: s.now(),
	})
	if len(s.notices) > maxNotifications {
		s.notices = s.notices[len(s.notices)-maxNotifications:]
	}
}
