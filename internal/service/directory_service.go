package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
	"github.com/noah-isme/sma-adp-scheduler/pkg/jobs"
)

const (
	directoryPrefix     = "directory:"
	classesCacheKey     = directoryPrefix + "classes"
	teachersCacheKey    = directoryPrefix + "teachers"
	classroomsCacheKey  = directoryPrefix + "classrooms"
	invalidateCacheKind = "cache.invalidate"
)

// Cache scopes accepted by InvalidateCache.
const (
	CacheScopeAll        = "all"
	CacheScopeClasses    = "classes"
	CacheScopeTeachers   = "teachers"
	CacheScopeClassrooms = "classrooms"
)

type classLister interface {
	List(ctx context.Context, scope models.ClassScope) ([]models.Class, error)
}

type classroomLister interface {
	List(ctx context.Context) ([]models.Classroom, error)
}

type teacherLister interface {
	List(ctx context.Context) ([]models.Teacher, error)
}

type enrollmentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

type guardianRepository interface {
	ListChildren(ctx context.Context, parentID string) ([]models.Child, error)
	IsGuardian(ctx context.Context, parentID, studentID string) (bool, error)
}

// JobEnqueuer hands work to a background queue.
type JobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// DirectoryRepositories groups the read models behind the directory.
type DirectoryRepositories struct {
	Classes     classLister
	Classrooms  classroomLister
	Teachers    teacherLister
	Enrollments enrollmentLister
	Guardians   guardianRepository
}

// DirectoryService serves the class, teacher and classroom lookups the calendar needs, caching
// the unscoped listings.
type DirectoryService struct {
	repos   DirectoryRepositories
	cache   *CacheService
	metrics *MetricsService
	queue   JobEnqueuer
	ttl     time.Duration
	logger  *zap.Logger
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(repos DirectoryRepositories, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{repos: repos, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// UseQueue routes cache invalidation through a background queue.
func (s *DirectoryService) UseQueue(queue JobEnqueuer) {
	s.queue = queue
}

// ListClasses returns classes in scope ordered by name.
func (s *DirectoryService) ListClasses(ctx context.Context, scope models.ClassScope) ([]models.Class, error) {
	var classes []models.Class
	err := s.cache.Remember(ctx, classesCacheKey, &classes, s.ttl, func() error {
		var err error
		classes, err = s.repos.Classes.List(ctx, models.ClassScope{})
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return scopeClasses(classes, scope), nil
}

// ListTeachers returns active teachers with the classes they teach.
func (s *DirectoryService) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	err := s.cache.Remember(ctx, teachersCacheKey, &teachers, s.ttl, func() error {
		var err error
		teachers, err = s.repos.Teachers.List(ctx)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	return teachers, nil
}

// ListClassrooms returns every classroom.
func (s *DirectoryService) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	var rooms []models.Classroom
	err := s.cache.Remember(ctx, classroomsCacheKey, &rooms, s.ttl, func() error {
		var err error
		rooms, err = s.repos.Classrooms.List(ctx)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	if rooms == nil {
		rooms = []models.Classroom{}
	}
	return rooms, nil
}

// ListEnrollments returns a student's active enrollments. Students see their own, parents
// their children's, staff everyone's.
func (s *DirectoryService) ListEnrollments(ctx context.Context, actor models.Viewer, studentID string) ([]models.Enrollment, error) {
	if err := s.authorizeStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}
	enrollments, err := s.repos.Enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.Enrollment{}
	}
	return enrollments, nil
}

// ListChildren returns the students linked to a parent.
func (s *DirectoryService) ListChildren(ctx context.Context, actor models.Viewer, parentID string) ([]models.Child, error) {
	if actor.Role != models.RoleAdmin && !(actor.Role == models.RoleParent && actor.ID == parentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another parent's children")
	}
	children, err := s.repos.Guardians.ListChildren(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	if children == nil {
		children = []models.Child{}
	}
	return children, nil
}

// InvalidateCache drops cached directory listings for scope. With a queue configured the
// work is done in the background and retried on failure.
func (s *DirectoryService) InvalidateCache(ctx context.Context, scope string) error {
	prefix, err := cachePrefix(scope)
	if err != nil {
		return err
	}
	if s.queue == nil {
		return s.invalidate(ctx, prefix)
	}
	if err := s.queue.Enqueue(jobs.Job{Kind: invalidateCacheKind, Payload: prefix}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to schedule cache invalidation")
	}
	return nil
}

// HandleJob processes background jobs produced by the directory.
func (s *DirectoryService) HandleJob(ctx context.Context, job jobs.Job) error {
	var err error
	switch job.Kind {
	case invalidateCacheKind:
		err = s.invalidate(ctx, job.Payload)
	default:
		s.logger.Warn("unknown job kind", zap.String("kind", job.Kind), zap.String("job_id", job.ID))
		return nil
	}
	s.metrics.RecordJob(job.Kind, err)
	return err
}

func (s *DirectoryService) invalidate(ctx context.Context, prefix string) error {
	if err := s.cache.Invalidate(ctx, prefix); err != nil {
		return fmt.Errorf("invalidate %s: %w", prefix, err)
	}
	return nil
}

func (s *DirectoryService) authorizeStudent(ctx context.Context, actor models.Viewer, studentID string) error {
	switch actor.Role {
	case models.RoleAdmin, models.RoleTeacher:
		return nil
	case models.RoleStudent:
		if actor.ID == studentID {
			return nil
		}
	case models.RoleParent:
		linked, err := s.repos.Guardians.IsGuardian(ctx, actor.ID, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check guardian link")
		}
		if linked {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "cannot view this student's enrollments")
}

func cachePrefix(scope string) (string, error) {
	switch scope {
	case "", CacheScopeAll:
		return directoryPrefix, nil
	case CacheScopeClasses:
		return classesCacheKey, nil
	case CacheScopeTeachers:
		return teachersCacheKey, nil
	case CacheScopeClassrooms:
		return classroomsCacheKey, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown cache scope")
	}
}

// scopeClasses keeps the classes matching every restriction in scope, preserving order.
func scopeClasses(classes []models.Class, scope models.ClassScope) []models.Class {
	var ids map[string]struct{}
	if len(scope.ClassIDs) > 0 {
		ids = make(map[string]struct{}, len(scope.ClassIDs))
		for _, id := range scope.ClassIDs {
			ids[id] = struct{}{}
		}
	}
	out := make([]models.Class, 0, len(classes))
	for _, class := range classes {
		if scope.TeacherID != "" && class.TeacherIDValue() != scope.TeacherID {
			continue
		}
		if ids != nil {
			if _, ok := ids[class.ID]; !ok {
				continue
			}
		}
		out = append(out, class)
	}
	return out
}
