package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
	"github.com/noah-isme/sma-adp-scheduler/pkg/jobs"
)

type memoryCache struct {
	mu        sync.Mutex
	items     map[string][]byte
	deleteErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	removed := 0
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

type classListerStub struct {
	classes []models.Class
	calls   int
	err     error
}

func (s *classListerStub) List(ctx context.Context, scope models.ClassScope) ([]models.Class, error) {
	s.calls++
	return s.classes, s.err
}

type classroomListerStub struct{ rooms []models.Classroom }

func (s classroomListerStub) List(ctx context.Context) ([]models.Classroom, error) {
	return s.rooms, nil
}

type teacherListerStub struct{ teachers []models.Teacher }

func (s teacherListerStub) List(ctx context.Context) ([]models.Teacher, error) {
	return s.teachers, nil
}

type enrollmentListerStub map[string][]models.Enrollment

func (s enrollmentListerStub) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	return s[studentID], nil
}

type guardianStub struct {
	children map[string][]models.Child
}

func (s guardianStub) ListChildren(ctx context.Context, parentID string) ([]models.Child, error) {
	return s.children[parentID], nil
}

func (s guardianStub) IsGuardian(ctx context.Context, parentID, studentID string) (bool, error) {
	for _, child := range s.children[parentID] {
		if child.ID == studentID {
			return true, nil
		}
	}
	return false, nil
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) Enqueue(job jobs.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func newDirectoryFixture() (*DirectoryService, *classListerStub, *memoryCache) {
	classes := &classListerStub{classes: []models.Class{
		{ID: "c-art", Name: "Art"},
		{ID: "c-bio", Name: "Biology", TeacherID: strPtr("t-2")},
		{ID: "c-math", Name: "Math", TeacherID: strPtr("t-1")},
	}}
	store := newMemoryCache()
	cache := NewCacheService(store, NewMetricsService(), time.Minute, nil, true)
	svc := NewDirectoryService(DirectoryRepositories{
		Classes:     classes,
		Classrooms:  classroomListerStub{rooms: []models.Classroom{{ID: "r-1", Name: "101"}}},
		Teachers:    teacherListerStub{teachers: []models.Teacher{{ID: "t-1", FullName: "Ada", ClassIDs: []string{"c-math"}}}},
		Enrollments: enrollmentListerStub{"s-1": {{StudentID: "s-1", ClassID: "c-math"}}},
		Guardians:   guardianStub{children: map[string][]models.Child{"p-1": {{ID: "s-1", FullName: "Sam"}}}},
	}, cache, nil, time.Minute, nil)
	return svc, classes, store
}

func TestDirectoryListClassesCachesFullListing(t *testing.T) {
	svc, repo, store := newDirectoryFixture()
	ctx := context.Background()

	all, err := svc.ListClasses(ctx, models.ClassScope{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, store.has(classesCacheKey))

	mine, err := svc.ListClasses(ctx, models.ClassScope{TeacherID: "t-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "c-math", mine[0].ID)

	picked, err := svc.ListClasses(ctx, models.ClassScope{ClassIDs: []string{"c-math", "c-art"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c-art", "c-math"}, []string{picked[0].ID, picked[1].ID})

	assert.Equal(t, 1, repo.calls)
}

func TestDirectoryListClassesWithoutCache(t *testing.T) {
	repo := &classListerStub{err: errors.New("db down")}
	svc := NewDirectoryService(DirectoryRepositories{Classes: repo}, nil, nil, 0, nil)

	_, err := svc.ListClasses(context.Background(), models.ClassScope{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	repo.err = nil
	classes, err := svc.ListClasses(context.Background(), models.ClassScope{TeacherID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, classes)
	assert.Empty(t, classes)
}

func TestDirectoryEnrollmentAccess(t *testing.T) {
	svc, _, _ := newDirectoryFixture()
	ctx := context.Background()

	allowed := []models.Viewer{
		{ID: "a", Role: models.RoleAdmin},
		{ID: "t-1", Role: models.RoleTeacher},
		{ID: "s-1", Role: models.RoleStudent},
		{ID: "p-1", Role: models.RoleParent},
	}
	for _, actor := range allowed {
		enrollments, err := svc.ListEnrollments(ctx, actor, "s-1")
		require.NoError(t, err, string(actor.Role))
		assert.Len(t, enrollments, 1)
	}

	denied := []models.Viewer{
		{ID: "s-2", Role: models.RoleStudent},
		{ID: "p-2", Role: models.RoleParent},
	}
	for _, actor := range denied {
		_, err := svc.ListEnrollments(ctx, actor, "s-1")
		assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code, string(actor.Role))
	}
}

func TestDirectoryChildrenAccess(t *testing.T) {
	svc, _, _ := newDirectoryFixture()
	ctx := context.Background()

	children, err := svc.ListChildren(ctx, models.Viewer{ID: "p-1", Role: models.RoleParent}, "p-1")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Sam", children[0].FullName)

	_, err = svc.ListChildren(ctx, models.Viewer{ID: "p-2", Role: models.RoleParent}, "p-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	none, err := svc.ListChildren(ctx, models.Viewer{ID: "a", Role: models.RoleAdmin}, "p-9")
	require.NoError(t, err)
	assert.NotNil(t, none)
}

func TestDirectoryInvalidateCacheInline(t *testing.T) {
	svc, _, store := newDirectoryFixture()
	ctx := context.Background()
	_, err := svc.ListClasses(ctx, models.ClassScope{})
	require.NoError(t, err)
	_, err = svc.ListClassrooms(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateCache(ctx, CacheScopeClasses))
	assert.False(t, store.has(classesCacheKey))
	assert.True(t, store.has(classroomsCacheKey))

	err = svc.InvalidateCache(ctx, "grades")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDirectoryInvalidateCacheThroughQueue(t *testing.T) {
	svc, _, store := newDirectoryFixture()
	queue := &enqueuerStub{}
	svc.UseQueue(queue)
	ctx := context.Background()
	_, err := svc.ListTeachers(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateCache(ctx, CacheScopeAll))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, invalidateCacheKind, queue.jobs[0].Kind)
	assert.True(t, store.has(teachersCacheKey))

	require.NoError(t, svc.HandleJob(ctx, queue.jobs[0]))
	assert.False(t, store.has(teachersCacheKey))

	store.deleteErr = errors.New("redis down")
	assert.Error(t, svc.HandleJob(ctx, queue.jobs[0]))
	assert.NoError(t, svc.HandleJob(ctx, jobs.Job{Kind: "unknown"}))

	queue.err = jobs.ErrQueueClosed
	err = svc.InvalidateCache(ctx, CacheScopeAll)
	assert.Equal(t, appErrors.ErrServiceUnavailable.Code, appErrors.FromError(err).Code)
}
