package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

// Monday 19 Oct 2026, 08:00. The week starts on Sunday the 18th.
var testNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeCollaborator struct {
	mu sync.Mutex

	events      []models.ScheduleEvent
	classes     []models.Class
	teachers    []models.Teacher
	classrooms  []models.Classroom
	enrollments map[string][]models.Enrollment
	children    map[string][]models.Child

	listErr   error
	createErr error
	patchErr  error
	deleteErr error

	// block, when set, is received from before ListSchedules returns.
	block chan struct{}
	// createBlock and patchBlock, when set, are received from before the write lands.
	createBlock chan struct{}
	patchBlock  chan struct{}

	calls       map[string]int
	lastPatch   models.SchedulePatch
	lastCreate  models.ScheduleEvent
	lastScope   models.ClassScope
	lastViewers []models.Viewer
	nextID      int
}

func newFakeCollaborator() *fakeCollaborator {
	teacherA, teacherB := "t-1", "t-2"
	return &fakeCollaborator{
		classes: []models.Class{
			{ID: "c-math", Name: "Math 10A", Subject: "Mathematics", TeacherID: &teacherA},
			{ID: "c-bio", Name: "Biology 10A", Subject: "Biology", TeacherID: &teacherB},
			{ID: "c-art", Name: "Art 11B", Subject: "Art"},
		},
		teachers: []models.Teacher{
			{ID: "t-1", FullName: "Siti Rahma"},
			{ID: "t-2", FullName: "Budi Santoso"},
		},
		classrooms: []models.Classroom{
			{ID: "r-1", Name: "Room 101", Building: "A", Capacity: 30},
			{ID: "r-2", Name: "Lab 2", Building: "B", Capacity: 24},
		},
		events: []models.ScheduleEvent{
			{ID: "e-1", ClassID: "c-math", ClassroomID: "r-1", DayOfWeek: 1, StartTime: models.Clock(9, 0), EndTime: models.Clock(10, 0)},
			{ID: "e-2", ClassID: "c-bio", ClassroomID: "r-2", DayOfWeek: 2, StartTime: models.Clock(10, 30), EndTime: models.Clock(12, 0)},
			{ID: "e-3", ClassID: "c-art", ClassroomID: "r-1", DayOfWeek: 4, StartTime: models.Clock(13, 0), EndTime: models.Clock(14, 0)},
		},
		enrollments: map[string][]models.Enrollment{
			"s-1": {{StudentID: "s-1", ClassID: "c-math"}},
			"s-2": {{StudentID: "s-2", ClassID: "c-bio"}, {StudentID: "s-2", ClassID: "c-math"}},
		},
		children: map[string][]models.Child{
			"p-1": {{ID: "s-1", FullName: "Ani"}, {ID: "s-2", FullName: "Bayu"}},
		},
		calls: make(map[string]int),
	}
}

func (f *fakeCollaborator) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeCollaborator) writes() int {
	return f.count("create") + f.count("patch") + f.count("delete")
}

func (f *fakeCollaborator) record(ctx context.Context, op string) {
	f.calls[op]++
	if viewer, ok := ViewerFromContext(ctx); ok {
		f.lastViewers = append(f.lastViewers, viewer)
	}
}

func (f *fakeCollaborator) ListSchedules(ctx context.Context) ([]models.ScheduleEvent, error) {
	f.mu.Lock()
	f.record(ctx, "schedules")
	block := f.block
	events := append([]models.ScheduleEvent(nil), f.events...)
	err := f.listErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return events, err
}

func (f *fakeCollaborator) ListClasses(ctx context.Context, scope models.ClassScope) ([]models.Class, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx, "classes")
	f.lastScope = scope
	var out []models.Class
	for _, c := range f.classes {
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

func (f *fakeCollaborator) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx, "teachers")
	return f.teachers, nil
}

func (f *fakeCollaborator) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx, "classrooms")
	return f.classrooms, nil
}

func (f *fakeCollaborator) ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx, "enrollments")
	return f.enrollments[studentID], nil
}

func (f *fakeCollaborator) ListChildren(ctx context.Context, parentID string) ([]models.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx, "children")
	return f.children[parentID], nil
}

func (f *fakeCollaborator) CreateSchedule(ctx context.Context, event models.ScheduleEvent) (*models.ScheduleEvent, error) {
	f.mu.Lock()
	block := f.createBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx, "create")
	f.lastCreate = event
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	event.ID = fmt.Sprintf("new-%d", f.nextID)
	f.events = append(f.events, event)
	return &event, nil
}

func (f *fakeCollaborator) PatchSchedule(ctx context.Context, id string, patch models.SchedulePatch) (*models.ScheduleEvent, error) {
	f.mu.Lock()
	block := f.patchBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx, "patch")
	f.lastPatch = patch
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i] = patch.Apply(f.events[i])
			updated := f.events[i]
			return &updated, nil
		}
	}
	return nil, &StatusError{Status: http.StatusNotFound, Message: "schedule not found"}
}

func (f *fakeCollaborator) DeleteSchedule(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(ctx, "delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.events {
		if f.events[i].ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return &StatusError{Status: http.StatusNotFound, Message: "schedule not found"}
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

var (
	adminViewer   = models.Viewer{ID: "u-admin", Name: "Admin", Role: models.RoleAdmin}
	teacherViewer = models.Viewer{ID: "t-1", Name: "Siti Rahma", Role: models.RoleTeacher}
	studentViewer = models.Viewer{ID: "s-1", Name: "Ani", Role: models.RoleStudent}
	parentViewer  = models.Viewer{ID: "p-1", Name: "Ibu Dewi", Role: models.RoleParent}
)

func newLoadedStore(t interface{ Fatalf(string, ...interface{}) }, viewer models.Viewer) (*Store, *fakeCollaborator) {
	fake := newFakeCollaborator()
	store := NewStore(fake, WithClock(fixedClock))
	if _, err := store.Load(context.Background(), viewer, Filter{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	return store, fake
}

func eventIDs(events []models.ScheduleEvent) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}
