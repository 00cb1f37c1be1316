package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/timegrid"
)

// State is the loaded calendar data for one viewer. Maps are replaced on every load and
// never mutated afterwards; Events is copied on every snapshot.
type State struct {
	Viewer     models.Viewer
	Filter     Filter
	Events     []models.ScheduleEvent
	Classes    map[string]models.Class
	Classrooms map[string]models.Classroom
	Teachers   map[string]models.Teacher
	// ClassTeacher maps class id to the teacher assigned to it.
	ClassTeacher map[string]string
	Children     []models.Child
	// ChildClasses maps class id to the ids of the viewer's children enrolled in it.
	ChildClasses map[string][]string
	LoadedAt     time.Time
}

// Draft is an unsaved event positioned in a concrete week.
type Draft struct {
	ClassID     string
	ClassroomID string
	DayOfWeek   int
	StartTime   models.ClockTime
	EndTime     models.ClockTime
	WeekStart   time.Time
}

// Date returns the calendar date the draft falls on.
func (d Draft) Date() time.Time {
	return timegrid.OccurrenceDate(d.WeekStart, d.DayOfWeek)
}

// Event converts the draft into an unsaved schedule event.
func (d Draft) Event() models.ScheduleEvent {
	return models.ScheduleEvent{
		ClassID:     d.ClassID,
		ClassroomID: d.ClassroomID,
		DayOfWeek:   d.DayOfWeek,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
	}
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for past-date checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder attaches a mutation recorder.
func WithRecorder(recorder MutationRecorder) StoreOption {
	return func(s *Store) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// Store owns the in-memory event list for one viewer. All writes go through it.
type Store struct {
	collab   Collaborator
	now      func() time.Time
	logger   *zap.Logger
	recorder MutationRecorder

	mu       sync.RWMutex
	state    *State
	issued   uint64
	inflight int
	pending  map[string]struct{}
}

// NewStore constructs a Store backed by the collaborator.
func NewStore(collab Collaborator, opts ...StoreOption) *Store {
	s := &Store{
		collab:   collab,
		now:      time.Now,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Load fetches the role-scoped data set for viewer. Only the most recently issued load
// commits; earlier ones resolve with ErrLoadSuperseded. On failure the previous state
// is kept.
func (s *Store) Load(ctx context.Context, viewer models.Viewer, filter Filter) (State, error) {
	s.mu.Lock()
	s.issued++
	ticket := s.issued
	s.inflight++
	s.mu.Unlock()

	loaded, err := s.fetch(ctx, viewer)
	s.recorder.RecordScheduleLoad(string(viewer.Role), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if ticket != s.issued {
		return State{}, ErrLoadSuperseded
	}
	if err != nil {
		s.logger.Warn("schedule load failed", zap.String("viewer_id", viewer.ID), zap.String("role", string(viewer.Role)), zap.Error(err))
		return State{}, err
	}
	loaded.Viewer = viewer
	loaded.Filter = filter
	loaded.LoadedAt = s.now()
	s.state = loaded
	return s.snapshotLocked(), nil
}

func (s *Store) fetch(ctx context.Context, viewer models.Viewer) (*State, error) {
	var (
		scope        models.ClassScope
		children     []models.Child
		childClasses map[string][]string
		restrict     bool
	)

	switch viewer.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		scope.TeacherID = viewer.ID
		restrict = true
	case models.RoleStudent:
		classIDs, err := s.enrolledClasses(ctx, viewer.ID)
		if err != nil {
			return nil, classifyLoad(err)
		}
		scope.ClassIDs = classIDs
		restrict = true
	case models.RoleParent:
		var err error
		children, childClasses, err = s.childrenClasses(ctx, viewer.ID)
		if err != nil {
			return nil, classifyLoad(err)
		}
		for classID := range childClasses {
			scope.ClassIDs = append(scope.ClassIDs, classID)
		}
		sort.Strings(scope.ClassIDs)
		restrict = true
	default:
		return nil, &DataLoadError{Err: ErrReadOnly}
	}

	var (
		events     []models.ScheduleEvent
		classes    []models.Class
		teachers   []models.Teacher
		classrooms []models.Classroom
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		events, err = s.collab.ListSchedules(gctx)
		return err
	})
	g.Go(func() (err error) {
		// An empty id list would widen the scope to every class.
		if restrict && scope.TeacherID == "" && len(scope.ClassIDs) == 0 {
			return nil
		}
		classes, err = s.collab.ListClasses(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		teachers, err = s.collab.ListTeachers(gctx)
		return err
	})
	g.Go(func() (err error) {
		classrooms, err = s.collab.ListClassrooms(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, classifyLoad(err)
	}

	st := &State{
		Classes:      make(map[string]models.Class, len(classes)),
		Classrooms:   make(map[string]models.Classroom, len(classrooms)),
		Teachers:     make(map[string]models.Teacher, len(teachers)),
		ClassTeacher: make(map[string]string, len(classes)),
		Children:     children,
		ChildClasses: childClasses,
	}
	for _, class := range classes {
		st.Classes[class.ID] = class
		if teacherID := class.TeacherIDValue(); teacherID != "" {
			st.ClassTeacher[class.ID] = teacherID
		}
	}
	for _, room := range classrooms {
		st.Classrooms[room.ID] = room
	}
	for _, teacher := range teachers {
		st.Teachers[teacher.ID] = teacher
	}

	st.Events = make([]models.ScheduleEvent, 0, len(events))
	for _, event := range events {
		if restrict {
			if _, ok := st.Classes[event.ClassID]; !ok {
				continue
			}
		}
		st.Events = append(st.Events, st.resolve(event))
	}
	sortEvents(st.Events)
	return st, nil
}

func (s *Store) enrolledClasses(ctx context.Context, studentID string) ([]string, error) {
	enrollments, err := s.collab.ListEnrollments(ctx, studentID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(enrollments))
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if _, ok := seen[e.ClassID]; ok {
			continue
		}
		seen[e.ClassID] = struct{}{}
		ids = append(ids, e.ClassID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) childrenClasses(ctx context.Context, parentID string) ([]models.Child, map[string][]string, error) {
	children, err := s.collab.ListChildren(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	perChild := make([][]models.Enrollment, len(children))
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range children {
		i, child := i, child
		g.Go(func() (err error) {
			perChild[i], err = s.collab.ListEnrollments(gctx, child.ID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	byClass := make(map[string][]string)
	for i, enrollments := range perChild {
		for _, e := range enrollments {
			byClass[e.ClassID] = appendUnique(byClass[e.ClassID], children[i].ID)
		}
	}
	return children, byClass, nil
}

// resolve fills the event's teacher from its class. Must be called with a
// fully built state.
func (st *State) resolve(event models.ScheduleEvent) models.ScheduleEvent {
	if teacherID, ok := st.ClassTeacher[event.ClassID]; ok {
		event.TeacherID = teacherID
	}
	return event
}

// Snapshot returns a copy of the current state and whether anything has been loaded.
func (s *Store) Snapshot() (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return State{}, false
	}
	return s.snapshotLocked(), true
}

func (s *Store) snapshotLocked() State {
	st := *s.state
	st.Events = append([]models.ScheduleEvent(nil), s.state.Events...)
	return st
}

// Loading reports whether a load is outstanding.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Event returns a loaded event by id.
func (s *Store) Event(id string) (models.ScheduleEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return models.ScheduleEvent{}, false
	}
	idx := indexOf(s.state.Events, id)
	if idx < 0 {
		return models.ScheduleEvent{}, false
	}
	return s.state.Events[idx], true
}

// IsPending reports whether a mutation for id is in flight.
func (s *Store) IsPending(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[id]
	return ok
}

// Create persists a draft. Invalid or past drafts are rejected without calling the
// collaborator.
func (s *Store) Create(ctx context.Context, draft Draft) (models.ScheduleEvent, error) {
	if err := validateEvent(draft.Event()); err != nil {
		return models.ScheduleEvent{}, err
	}
	if timegrid.IsPast(draft.Date(), s.now()) {
		return models.ScheduleEvent{}, invalid("day_of_week", "cannot schedule a class on a past day")
	}

	created, err := s.collab.CreateSchedule(ctx, draft.Event())
	if err != nil {
		err = classifyMutation("create", "", err)
		s.recorder.RecordScheduleMutation("create", err)
		return models.ScheduleEvent{}, err
	}
	s.recorder.RecordScheduleMutation("create", nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	event := *created
	if s.state != nil {
		event = s.state.resolve(event)
		s.state.Events = append(s.state.Events, event)
		sortEvents(s.state.Events)
	}
	return event, nil
}

// Update applies patch to a loaded event. The in-memory entry changes only after the
// collaborator accepts the write.
func (s *Store) Update(ctx context.Context, id string, patch models.SchedulePatch) (models.ScheduleEvent, error) {
	s.mu.Lock()
	current, err := s.beginLocked(id)
	if err != nil {
		s.mu.Unlock()
		return models.ScheduleEvent{}, err
	}
	if patch.Empty() {
		delete(s.pending, id)
		s.mu.Unlock()
		return current, nil
	}
	if err := validateEvent(patch.Apply(current)); err != nil {
		delete(s.pending, id)
		s.mu.Unlock()
		return models.ScheduleEvent{}, err
	}
	s.mu.Unlock()

	updated, err := s.collab.PatchSchedule(ctx, id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if err != nil {
		err = classifyMutation("update", id, err)
		s.recorder.RecordScheduleMutation("update", err)
		s.logger.Warn("schedule update failed", zap.String("schedule_id", id), zap.Error(err))
		return models.ScheduleEvent{}, err
	}
	s.recorder.RecordScheduleMutation("update", nil)

	event := *updated
	if s.state != nil {
		event = s.state.resolve(event)
		if idx := indexOf(s.state.Events, id); idx >= 0 {
			s.state.Events[idx] = event
			sortEvents(s.state.Events)
		}
	}
	return event, nil
}

// Remove deletes an event remotely, then locally.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, err := s.beginLocked(id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	err := s.collab.DeleteSchedule(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	if err != nil {
		err = classifyMutation("delete", id, err)
		s.recorder.RecordScheduleMutation("delete", err)
		s.logger.Warn("schedule delete failed", zap.String("schedule_id", id), zap.Error(err))
		return err
	}
	s.recorder.RecordScheduleMutation("delete", nil)
	if s.state != nil {
		if idx := indexOf(s.state.Events, id); idx >= 0 {
			s.state.Events = append(s.state.Events[:idx], s.state.Events[idx+1:]...)
		}
	}
	return nil
}

// beginLocked marks id as pending and returns its current value.
func (s *Store) beginLocked(id string) (models.ScheduleEvent, error) {
	if s.state == nil {
		return models.ScheduleEvent{}, &NotFoundError{ID: id}
	}
	idx := indexOf(s.state.Events, id)
	if idx < 0 {
		return models.ScheduleEvent{}, &NotFoundError{ID: id}
	}
	if _, busy := s.pending[id]; busy {
		return models.ScheduleEvent{}, ErrMutationPending
	}
	s.pending[id] = struct{}{}
	return s.state.Events[idx], nil
}

func validateEvent(e models.ScheduleEvent) error {
	switch {
	case e.ClassID == "":
		return invalid("class_id", "class is required")
	case e.ClassroomID == "":
		return invalid("classroom_id", "classroom is required")
	case !timegrid.ValidDay(e.DayOfWeek):
		return invalid("day_of_week", "day of week must be between 0 and 6")
	case !e.StartTime.Valid() || !e.EndTime.Valid():
		return invalid("start_time", "times must fall within the day")
	case e.StartTime >= e.EndTime:
		return invalid("end_time", "end time must be after start time")
	}
	return nil
}

func indexOf(events []models.ScheduleEvent, id string) int {
	for i := range events {
		if events[i].ID == id {
			return i
		}
	}
	return -1
}

func sortEvents(events []models.ScheduleEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
