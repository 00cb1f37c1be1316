package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/timegrid"
)

// EditorMode distinguishes creating from editing.
type EditorMode string

const (
	EditorNew  EditorMode = "NEW"
	EditorEdit EditorMode = "EDIT"
)

var errEditorClosed = errors.New("editor is not open")

// EditorForm holds the editable fields.
type EditorForm struct {
	ClassID     string           `json:"class_id"`
	ClassroomID string           `json:"classroom_id"`
	DayOfWeek   int              `json:"day_of_week"`
	StartTime   models.ClockTime `json:"start_time"`
	EndTime     models.ClockTime `json:"end_time"`
}

// EditorChanges is a partial form update.
type EditorChanges struct {
	ClassID     *string           `json:"class_id,omitempty"`
	ClassroomID *string           `json:"classroom_id,omitempty"`
	DayOfWeek   *int              `json:"day_of_week,omitempty"`
	StartTime   *models.ClockTime `json:"start_time,omitempty"`
	EndTime     *models.ClockTime `json:"end_time,omitempty"`
}

// EditorSnapshot is the render-facing state of the editor.
type EditorSnapshot struct {
	Open             bool       `json:"open"`
	Mode             EditorMode `json:"mode,omitempty"`
	EventID          string     `json:"event_id,omitempty"`
	Form             EditorForm `json:"form"`
	Date             string     `json:"date,omitempty"`
	Error            string     `json:"error,omitempty"`
	Submitting       bool       `json:"submitting"`
	ConfirmingDelete bool       `json:"confirming_delete"`
}

// Editor is the modal form for one event.
type Editor struct {
	store *Store

	mu            sync.Mutex
	open          bool
	mode          EditorMode
	original      models.ScheduleEvent
	form          EditorForm
	weekStart     time.Time
	err           error
	submitting    bool
	confirmDelete bool
}

// NewEditor builds a closed editor.
func NewEditor(store *Store) *Editor {
	return &Editor{store: store}
}

// OpenNew opens a draft at the given cell.
func (e *Editor) OpenNew(viewer models.Viewer, dayOfWeek, hour int, weekStart time.Time, duration time.Duration) error {
	if !CanEdit(viewer) {
		return ErrReadOnly
	}
	start := models.Clock(hour, 0)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrMutationPending
	}
	e.reset()
	e.open = true
	e.mode = EditorNew
	e.weekStart = weekStart
	e.form = EditorForm{DayOfWeek: dayOfWeek, StartTime: start, EndTime: start.Add(duration)}
	return nil
}

// OpenEdit opens an existing event.
func (e *Editor) OpenEdit(viewer models.Viewer, event models.ScheduleEvent, weekStart time.Time) error {
	if !CanEditEvent(viewer, event) {
		return ErrReadOnly
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrMutationPending
	}
	e.reset()
	e.open = true
	e.mode = EditorEdit
	e.original = event
	e.weekStart = weekStart
	e.form = EditorForm{
		ClassID:     event.ClassID,
		ClassroomID: event.ClassroomID,
		DayOfWeek:   event.DayOfWeek,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
	}
	return nil
}

// Change applies a partial update to the form.
func (e *Editor) Change(changes EditorChanges) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return invalid("", errEditorClosed.Error())
	}
	if e.submitting {
		return ErrMutationPending
	}
	if changes.ClassID != nil {
		e.form.ClassID = *changes.ClassID
	}
	if changes.ClassroomID != nil {
		e.form.ClassroomID = *changes.ClassroomID
	}
	if changes.DayOfWeek != nil {
		e.form.DayOfWeek = *changes.DayOfWeek
	}
	if changes.StartTime != nil {
		e.form.StartTime = *changes.StartTime
	}
	if changes.EndTime != nil {
		e.form.EndTime = *changes.EndTime
	}
	e.err = nil
	e.confirmDelete = false
	return nil
}

// Close discards the form. A form whose save is in flight stays open until the save resolves.
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrMutationPending
	}
	e.reset()
	return nil
}

// Snapshot returns the render-facing state.
func (e *Editor) Snapshot() EditorSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := EditorSnapshot{
		Open:             e.open,
		Mode:             e.mode,
		EventID:          e.original.ID,
		Form:             e.form,
		Submitting:       e.submitting,
		ConfirmingDelete: e.confirmDelete,
	}
	if e.open {
		snap.Date = timegrid.OccurrenceDate(e.weekStart, e.form.DayOfWeek).Format(dateLayout)
	}
	if e.err != nil {
		snap.Error = e.err.Error()
	}
	return snap
}

// Submit validates the form and writes it through the store. The editor stays open
// with the error on failure and closes on success.
func (e *Editor) Submit(ctx context.Context, viewer models.Viewer) (models.ScheduleEvent, error) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return models.ScheduleEvent{}, invalid("", errEditorClosed.Error())
	}
	if e.submitting {
		e.mu.Unlock()
		return models.ScheduleEvent{}, ErrMutationPending
	}
	if !CanEdit(viewer) {
		e.mu.Unlock()
		return models.ScheduleEvent{}, ErrReadOnly
	}
	if err := e.validateLocked(); err != nil {
		e.err = err
		e.mu.Unlock()
		return models.ScheduleEvent{}, err
	}
	mode, original, form, weekStart := e.mode, e.original, e.form, e.weekStart
	e.submitting = true
	e.err = nil
	e.mu.Unlock()

	var (
		saved models.ScheduleEvent
		err   error
	)
	if mode == EditorNew {
		saved, err = e.store.Create(ctx, Draft{
			ClassID:     form.ClassID,
			ClassroomID: form.ClassroomID,
			DayOfWeek:   form.DayOfWeek,
			StartTime:   form.StartTime,
			EndTime:     form.EndTime,
			WeekStart:   weekStart,
		})
	} else {
		saved, err = e.store.Update(ctx, original.ID, formPatch(original, form))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
	if err != nil {
		e.err = err
		return models.ScheduleEvent{}, err
	}
	e.reset()
	return saved, nil
}

// RequestDelete asks for confirmation before deleting the edited event.
func (e *Editor) RequestDelete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open || e.mode != EditorEdit {
		return invalid("", "only saved classes can be deleted")
	}
	if e.submitting {
		return ErrMutationPending
	}
	e.confirmDelete = true
	return nil
}

// ConfirmDelete removes the edited event after RequestDelete.
func (e *Editor) ConfirmDelete(ctx context.Context) error {
	e.mu.Lock()
	if !e.open || e.mode != EditorEdit || !e.confirmDelete {
		e.mu.Unlock()
		return invalid("", "delete must be confirmed first")
	}
	if e.submitting {
		e.mu.Unlock()
		return ErrMutationPending
	}
	id := e.original.ID
	e.submitting = true
	e.mu.Unlock()

	err := e.store.Remove(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
	if err != nil {
		e.err = err
		e.confirmDelete = false
		return err
	}
	e.reset()
	return nil
}

// validateLocked checks the form. New events may not land in the past; edits may keep
// a past slot but cannot move into one.
func (e *Editor) validateLocked() error {
	candidate := models.ScheduleEvent{
		ClassID:     e.form.ClassID,
		ClassroomID: e.form.ClassroomID,
		DayOfWeek:   e.form.DayOfWeek,
		StartTime:   e.form.StartTime,
		EndTime:     e.form.EndTime,
	}
	if err := validateEvent(candidate); err != nil {
		return err
	}
	moved := e.mode == EditorNew ||
		e.form.DayOfWeek != e.original.DayOfWeek ||
		e.form.StartTime != e.original.StartTime ||
		e.form.EndTime != e.original.EndTime
	if moved && timegrid.IsPast(timegrid.OccurrenceDate(e.weekStart, e.form.DayOfWeek), e.store.Now()) {
		return invalid("day_of_week", "cannot schedule a class on a past day")
	}
	return nil
}

func (e *Editor) reset() {
	e.open = false
	e.mode = ""
	e.original = models.ScheduleEvent{}
	e.form = EditorForm{}
	e.err = nil
	e.submitting = false
	e.confirmDelete = false
}

func formPatch(original models.ScheduleEvent, form EditorForm) models.SchedulePatch {
	var patch models.SchedulePatch
	if form.ClassID != original.ClassID {
		patch.ClassID = &form.ClassID
	}
	if form.ClassroomID != original.ClassroomID {
		patch.ClassroomID = &form.ClassroomID
	}
	if form.DayOfWeek != original.DayOfWeek {
		patch.DayOfWeek = &form.DayOfWeek
	}
	if form.StartTime != original.StartTime {
		patch.StartTime = &form.StartTime
	}
	if form.EndTime != original.EndTime {
		patch.EndTime = &form.EndTime
	}
	return patch
}
