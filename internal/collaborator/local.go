// Package collaborator provides the scheduler.Collaborator implementations used by calendar
// sessions: an in-process adapter over the service layer and an HTTP client for a remote API.
package collaborator

import (
	"context"
	"net/http"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/scheduler"
	"github.com/noah-isme/sma-adp-scheduler/internal/service"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
)

type scheduleBackend interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEvent, error)
	Create(ctx context.Context, actor models.Viewer, req service.CreateScheduleRequest) (*models.ScheduleEvent, error)
	Patch(ctx context.Context, actor models.Viewer, id string, req service.PatchScheduleRequest) (*models.ScheduleEvent, error)
	Delete(ctx context.Context, actor models.Viewer, id string) error
}

type directoryBackend interface {
	ListClasses(ctx context.Context, scope models.ClassScope) ([]models.Class, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListClassrooms(ctx context.Context) ([]models.Classroom, error)
	ListEnrollments(ctx context.Context, actor models.Viewer, studentID string) ([]models.Enrollment, error)
	ListChildren(ctx context.Context, actor models.Viewer, parentID string) ([]models.Child, error)
}

// Local serves calendar sessions from the service layer of the same process. The acting
// viewer is read from the context.
type Local struct {
	schedules scheduleBackend
	directory directoryBackend
}

var _ scheduler.Collaborator = (*Local)(nil)

// NewLocal constructs a Local collaborator.
func NewLocal(schedules scheduleBackend, directory directoryBackend) *Local {
	return &Local{schedules: schedules, directory: directory}
}

// ListSchedules returns every schedule event.
func (l *Local) ListSchedules(ctx context.Context) ([]models.ScheduleEvent, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	events, err := l.schedules.List(ctx, models.ScheduleFilter{})
	return events, statusError(err)
}

// ListClasses returns classes matching scope.
func (l *Local) ListClasses(ctx context.Context, scope models.ClassScope) ([]models.Class, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	classes, err := l.directory.ListClasses(ctx, scope)
	return classes, statusError(err)
}

// ListTeachers returns the teacher directory.
func (l *Local) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	teachers, err := l.directory.ListTeachers(ctx)
	return teachers, statusError(err)
}

// ListClassrooms returns the classroom directory.
func (l *Local) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	rooms, err := l.directory.ListClassrooms(ctx)
	return rooms, statusError(err)
}

// ListEnrollments returns a student's enrollments as the context viewer.
func (l *Local) ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	viewer, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	enrollments, err := l.directory.ListEnrollments(ctx, viewer, studentID)
	return enrollments, statusError(err)
}

// ListChildren returns a parent's children as the context viewer.
func (l *Local) ListChildren(ctx context.Context, parentID string) ([]models.Child, error) {
	viewer, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	children, err := l.directory.ListChildren(ctx, viewer, parentID)
	return children, statusError(err)
}

// CreateSchedule stores a new event on behalf of the context viewer.
func (l *Local) CreateSchedule(ctx context.Context, event models.ScheduleEvent) (*models.ScheduleEvent, error) {
	viewer, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	created, err := l.schedules.Create(ctx, viewer, service.CreateScheduleRequest{
		ClassID:     event.ClassID,
		ClassroomID: event.ClassroomID,
		DayOfWeek:   event.DayOfWeek,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
	})
	if err != nil {
		return nil, statusError(err)
	}
	return created, nil
}

// PatchSchedule applies patch on behalf of the context viewer.
func (l *Local) PatchSchedule(ctx context.Context, id string, patch models.SchedulePatch) (*models.ScheduleEvent, error) {
	viewer, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := l.schedules.Patch(ctx, viewer, id, service.PatchScheduleRequest{
		ClassID:     patch.ClassID,
		ClassroomID: patch.ClassroomID,
		DayOfWeek:   patch.DayOfWeek,
		StartTime:   patch.StartTime,
		EndTime:     patch.EndTime,
	})
	if err != nil {
		return nil, statusError(err)
	}
	return updated, nil
}

// DeleteSchedule removes an event on behalf of the context viewer.
func (l *Local) DeleteSchedule(ctx context.Context, id string) error {
	viewer, err := actor(ctx)
	if err != nil {
		return err
	}
	return statusError(l.schedules.Delete(ctx, viewer, id))
}

func actor(ctx context.Context) (models.Viewer, error) {
	viewer, ok := scheduler.ViewerFromContext(ctx)
	if !ok || viewer.ID == "" {
		return models.Viewer{}, &scheduler.StatusError{Status: http.StatusUnauthorized, Code: appErrors.ErrUnauthorized.Code, Message: "no authenticated viewer"}
	}
	return viewer, nil
}

// statusError converts a service error into the collaborator failure shape.
func statusError(err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := contextError(err); ctxErr != nil {
		return ctxErr
	}
	appErr := appErrors.FromError(err)
	return &scheduler.StatusError{Status: appErr.Status, Code: appErr.Code, Message: appErr.Message}
}
