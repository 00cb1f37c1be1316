package scheduler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/timegrid"
)

func TestStoreLoadByRole(t *testing.T) {
	cases := []struct {
		name   string
		viewer models.Viewer
		want   []string
	}{
		{name: "admin sees everything", viewer: adminViewer, want: []string{"e-1", "e-2", "e-3"}},
		{name: "teacher sees own classes", viewer: teacherViewer, want: []string{"e-1"}},
		{name: "student sees enrolled classes", viewer: studentViewer, want: []string{"e-1"}},
		{name: "parent sees union of children", viewer: parentViewer, want: []string{"e-1", "e-2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newLoadedStore(t, tc.viewer)
			state, loaded := store.Snapshot()
			require.True(t, loaded)
			assert.Equal(t, tc.want, eventIDs(state.Events))
			assert.Equal(t, tc.viewer, state.Viewer)
		})
	}
}

func TestStoreLoadResolvesTeacherFromClass(t *testing.T) {
	store, _ := newLoadedStore(t, adminViewer)
	state, _ := store.Snapshot()

	assert.Equal(t, "t-1", state.ClassTeacher["c-math"])
	assert.Equal(t, "t-2", state.ClassTeacher["c-bio"])
	_, assigned := state.ClassTeacher["c-art"]
	assert.False(t, assigned)

	e1, ok := store.Event("e-1")
	require.True(t, ok)
	assert.Equal(t, "t-1", e1.TeacherID)
}

func TestStoreLoadParentChildren(t *testing.T) {
	store, fake := newLoadedStore(t, parentViewer)
	state, _ := store.Snapshot()

	assert.Equal(t, 2, fake.count("enrollments"))
	assert.ElementsMatch(t, []string{"c-bio", "c-math"}, fake.lastScope.ClassIDs)
	assert.ElementsMatch(t, []string{"s-1", "s-2"}, state.ChildClasses["c-math"])
	assert.Equal(t, []string{"s-2"}, state.ChildClasses["c-bio"])
}

func TestStoreLoadStudentWithoutEnrollments(t *testing.T) {
	store, fake := newLoadedStore(t, models.Viewer{ID: "s-9", Role: models.RoleStudent})
	state, _ := store.Snapshot()

	assert.Empty(t, state.Events)
	assert.Zero(t, fake.count("classes"))
}

func TestStoreLoadFailureKeepsPreviousState(t *testing.T) {
	store, fake := newLoadedStore(t, adminViewer)
	fake.listErr = &StatusError{Status: http.StatusInternalServerError}

	_, err := store.Load(context.Background(), adminViewer, Filter{})
	var loadErr *DataLoadError
	require.ErrorAs(t, err, &loadErr)

	state, loaded := store.Snapshot()
	require.True(t, loaded)
	assert.Len(t, state.Events, 3)
	assert.False(t, store.Loading())
}

func TestStoreLoadUnauthorizedIsSessionExpiry(t *testing.T) {
	fake := newFakeCollaborator()
	fake.listErr = &StatusError{Status: http.StatusUnauthorized}
	store := NewStore(fake, WithClock(fixedClock))

	_, err := store.Load(context.Background(), adminViewer, Filter{})
	var expired *SessionExpiredError
	assert.ErrorAs(t, err, &expired)
	_, loaded := store.Snapshot()
	assert.False(t, loaded)
}

func TestStoreLoadLastWriteWins(t *testing.T) {
	fake := newFakeCollaborator()
	gate := make(chan struct{})
	fake.block = gate
	store := NewStore(fake, WithClock(fixedClock))

	firstDone := make(chan error, 1)
	go func() {
		_, err := store.Load(context.Background(), adminViewer, Filter{ClassID: "stale"})
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return fake.count("schedules") == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, store.Loading())

	fake.mu.Lock()
	fake.block = nil
	fake.mu.Unlock()
	state, err := store.Load(context.Background(), adminViewer, Filter{ClassID: "c-math"})
	require.NoError(t, err)
	assert.Equal(t, "c-math", state.Filter.ClassID)
	assert.True(t, store.Loading())

	close(gate)
	assert.ErrorIs(t, <-firstDone, ErrLoadSuperseded)

	committed, _ := store.Snapshot()
	assert.Equal(t, "c-math", committed.Filter.ClassID)
	assert.False(t, store.Loading())
}

func TestStoreCreatePastDayRejectedLocally(t *testing.T) {
	store, fake := newLoadedStore(t, adminViewer)
	before, _ := store.Snapshot()

	_, err := store.Create(context.Background(), Draft{
		ClassID:     "c-math",
		ClassroomID: "r-1",
		DayOfWeek:   0,
		StartTime:   models.Clock(9, 0),
		EndTime:     models.Clock(10, 0),
		WeekStart:   timegrid.WeekStart(testNow),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, fake.writes())

	after, _ := store.Snapshot()
	assert.Equal(t, before.Events, after.Events)
}

func TestStoreCreateValidation(t *testing.T) {
	store, fake := newLoadedStore(t, adminViewer)
	week := timegrid.WeekStart(testNow)

	drafts := []Draft{
		{ClassroomID: "r-1", DayOfWeek: 2, StartTime: models.Clock(9, 0), EndTime: models.Clock(10, 0), WeekStart: week},
		{ClassID: "c-math", DayOfWeek: 2, StartTime: models.Clock(9, 0), EndTime: models.Clock(10, 0), WeekStart: week},
		{ClassID: "c-math", ClassroomID: "r-1", DayOfWeek: 2, StartTime: models.Clock(10, 0), EndTime: models.Clock(10, 0), WeekStart: week},
		{ClassID: "c-math", ClassroomID: "r-1", DayOfWeek: 9, StartTime: models.Clock(9, 0), EndTime: models.Clock(10, 0), WeekStart: week},
	}
	for _, draft := range drafts {
		_, err := store.Create(context.Background(), draft)
		assert.True(t, IsValidation(err), "%+v", draft)
	}
	assert.Zero(t, fake.writes())
}

func TestStoreCreateAppendsWithDerivedTeacher(t *testing.T) {
	store, fake := newLoadedStore(t, adminViewer)

	created, err := store.Create(context.Background(), Draft{
		ClassID:     "c-bio",
		ClassroomID: "r-2",
		DayOfWeek:   1,
		StartTime:   models.Clock(15, 0),
		EndTime:     models.Clock(16, 0),
		WeekStart:   timegrid.WeekStart(testNow),
	})
	require.NoError(t, err)
	assert.Equal(t, "new-1", created.ID)
	assert.Equal(t, "t-2", created.TeacherID)
	assert.Empty(t, fake.lastCreate.TeacherID)

	state, _ := store.Snapshot()
	assert.Len(t, state.Events, 4)
}

func TestStoreUpdateFailureLeavesStateUnchanged(t *testing.T) {
	store, fake := newLoadedStore(t, adminViewer)
	fake.patchErr = &StatusError{Status: http.StatusBadGateway, Message: "upstream down"}
	before, _ := store.Event("e-1")

	day := 3
	_, err := store.Update(context.Background(), "e-1", models.SchedulePatch{DayOfWeek: &day})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadGateway, pe.Status)

	after, _ := store.Event("e-1")
	assert.Equal(t, before, after)
	assert.False(t, store.IsPending("e-1"))
}

func TestStoreUpdateReplacesEntry(t *testing.T) {
	store, _ := newLoadedStore(t, adminViewer)
	room := "r-2"

	updated, err := store.Update(context.Background(), "e-1", models.SchedulePatch{ClassroomID: &room})
	require.NoError(t, err)
	assert.Equal(t, "r-2", updated.ClassroomID)

	stored, _ := store.Event("e-1")
	assert.Equal(t, "r-2", stored.ClassroomID)
	assert.Equal(t, "t-1", stored.TeacherID)
}

func TestStoreUpdateUnknownID(t *testing.T) {
	store, fake := newLoadedStore(t, adminViewer)
	day := 2
	_, err := store.Update(context.Background(), "missing", models.SchedulePatch{DayOfWeek: &day})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.True(t, IsPersistence(err))
	assert.True(t, ReloadRecommended(err))
	assert.Zero(t, fake.writes())
}

func TestStoreUpdateRemoteNotFound(t *testing.T) {
	store, fake := newLoadedStore(t, adminViewer)
	fake.patchErr = &StatusError{Status: http.StatusNotFound}
	day := 2

	_, err := store.Update(context.Background(), "e-1", models.SchedulePatch{DayOfWeek: &day})
	assert.True(t, ReloadRecommended(err))
	_, still := store.Event("e-1")
	assert.True(t, still)
}

func TestStoreSingleMutationInFlight(t *testing.T) {
	store, _ := newLoadedStore(t, adminViewer)

	store.mu.Lock()
	_, err := store.beginLocked("e-1")
	store.mu.Unlock()
	require.NoError(t, err)

	day := 2
	_, err = store.Update(context.Background(), "e-1", models.SchedulePatch{DayOfWeek: &day})
	assert.ErrorIs(t, err, ErrMutationPending)
	assert.ErrorIs(t, store.Remove(context.Background(), "e-1"), ErrMutationPending)
}

func TestStoreRemove(t *testing.T) {
	store, fake := newLoadedStore(t, adminViewer)

	require.NoError(t, store.Remove(context.Background(), "e-2"))
	state, _ := store.Snapshot()
	assert.Equal(t, []string{"e-1", "e-3"}, eventIDs(state.Events))

	fake.deleteErr = errors.New("connection reset")
	err := store.Remove(context.Background(), "e-1")
	assert.True(t, IsPersistence(err))
	_, still := store.Event("e-1")
	assert.True(t, still)
}

type recordingRecorder struct {
	mutations []string
	loads     []string
}

func (r *recordingRecorder) RecordScheduleMutation(op string, err error) {
	r.mutations = append(r.mutations, op+":"+outcome(err))
}

func (r *recordingRecorder) RecordScheduleLoad(role string, err error) {
	r.loads = append(r.loads, role+":"+outcome(err))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func TestStoreRecordsMutations(t *testing.T) {
	recorder := &recordingRecorder{}
	fake := newFakeCollaborator()
	store := NewStore(fake, WithClock(fixedClock), WithRecorder(recorder))
	_, err := store.Load(context.Background(), adminViewer, Filter{})
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), "e-3"))
	fake.deleteErr = &StatusError{Status: http.StatusInternalServerError}
	require.Error(t, store.Remove(context.Background(), "e-2"))

	assert.Equal(t, []string{"ADMIN:ok"}, recorder.loads)
	assert.Equal(t, []string{"delete:ok", "delete:error"}, recorder.mutations)
}
