package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/timegrid"
)

// DragState is a state of the drag/drop machine.
type DragState string

const (
	DragIdle       DragState = "IDLE"
	DragDragging   DragState = "DRAGGING"
	DragHovering   DragState = "HOVERING_TARGET"
	DragCommitting DragState = "COMMITTING"
)

var errDragInProgress = errors.New("another drag is in progress")

// DropTarget is a candidate cell. An empty ClassroomID keeps the event's classroom.
type DropTarget struct {
	ClassroomID string    `json:"classroom_id,omitempty"`
	DayOfWeek   int       `json:"day_of_week"`
	Hour        int       `json:"hour"`
	Date        time.Time `json:"date"`
}

// DragSnapshot is the render-facing view of the machine.
type DragSnapshot struct {
	State   DragState   `json:"state"`
	EventID string      `json:"event_id,omitempty"`
	Target  *DropTarget `json:"target,omitempty"`
}

// DropResult describes how a drop resolved.
type DropResult struct {
	Committed bool                 `json:"committed"`
	Event     models.ScheduleEvent `json:"event"`
}

// DragController repositions events by drag and drop.
type DragController struct {
	store *Store
	grid  timegrid.Grid

	mu     sync.Mutex
	state  DragState
	origin models.ScheduleEvent
	target *DropTarget
}

// NewDragController builds an idle controller.
func NewDragController(store *Store, grid timegrid.Grid) *DragController {
	return &DragController{store: store, grid: grid, state: DragIdle}
}

// Snapshot returns the current state.
func (d *DragController) Snapshot() DragSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := DragSnapshot{State: d.state}
	if d.state != DragIdle {
		snap.EventID = d.origin.ID
	}
	if d.target != nil {
		t := *d.target
		snap.Target = &t
	}
	return snap
}

// Start begins dragging eventID, whose occurrence is taken from the week starting at weekStart.
func (d *DragController) Start(viewer models.Viewer, eventID string, weekStart time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DragIdle {
		return invalid("", errDragInProgress.Error())
	}
	if !CanEdit(viewer) {
		return ErrReadOnly
	}
	event, ok := d.store.Event(eventID)
	if !ok {
		return &NotFoundError{ID: eventID}
	}
	if !CanEditEvent(viewer, event) {
		return ErrReadOnly
	}
	if timegrid.IsPast(timegrid.OccurrenceDate(weekStart, event.DayOfWeek), d.store.Now()) {
		return invalid("day_of_week", "past classes cannot be moved")
	}
	if d.store.IsPending(eventID) {
		return ErrMutationPending
	}
	d.state = DragDragging
	d.origin = event
	d.target = nil
	return nil
}

// Over records the cell under the pointer. A cell outside the grid clears the target.
func (d *DragController) Over(target DropTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DragDragging && d.state != DragHovering {
		return
	}
	if !d.grid.Contains(d.grid.SlotFor(target.DayOfWeek, target.Hour)) {
		d.state = DragDragging
		d.target = nil
		return
	}
	d.state = DragHovering
	d.target = &target
}

// Cancel abandons the drag without effect.
func (d *DragController) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DragCommitting {
		return
	}
	d.resetLocked()
}

// Drop commits the drag to the hovered target. Without a target the drag is cancelled.
// The event changes only when the store accepts the write.
func (d *DragController) Drop(ctx context.Context) (DropResult, error) {
	d.mu.Lock()
	if d.state != DragHovering || d.target == nil {
		d.resetLocked()
		d.mu.Unlock()
		return DropResult{}, nil
	}
	origin, target := d.origin, *d.target
	if timegrid.IsPast(target.Date, d.store.Now()) {
		d.resetLocked()
		d.mu.Unlock()
		return DropResult{}, invalid("day_of_week", "cannot move a class onto a past day")
	}
	patch, err := dropPatch(origin, target)
	if err != nil {
		d.resetLocked()
		d.mu.Unlock()
		return DropResult{}, err
	}
	d.state = DragCommitting
	d.mu.Unlock()

	updated, err := d.store.Update(ctx, origin.ID, patch)

	d.mu.Lock()
	d.resetLocked()
	d.mu.Unlock()
	if err != nil {
		return DropResult{}, err
	}
	return DropResult{Committed: true, Event: updated}, nil
}

func (d *DragController) resetLocked() {
	d.state = DragIdle
	d.origin = models.ScheduleEvent{}
	d.target = nil
}

// dropPatch moves origin to the target hour while keeping its duration.
func dropPatch(origin models.ScheduleEvent, target DropTarget) (models.SchedulePatch, error) {
	start := models.Clock(target.Hour, 0)
	end := start.Add(origin.Duration())
	if !end.Valid() {
		return models.SchedulePatch{}, invalid("start_time", "class would run past midnight")
	}
	day := target.DayOfWeek
	patch := models.SchedulePatch{DayOfWeek: &day, StartTime: &start, EndTime: &end}
	if target.ClassroomID != "" && target.ClassroomID != origin.ClassroomID {
		room := target.ClassroomID
		patch.ClassroomID = &room
	}
	return patch, nil
}
