package scheduler

import (
	"context"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

// Collaborator is the request/response API the calendar reads from and writes to.
// Failures must be *StatusError values (or wrap one) so they can be classified.
type Collaborator interface {
	ListSchedules(ctx context.Context) ([]models.ScheduleEvent, error)
	ListClasses(ctx context.Context, scope models.ClassScope) ([]models.Class, error)
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListClassrooms(ctx context.Context) ([]models.Classroom, error)
	ListEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error)
	ListChildren(ctx context.Context, parentID string) ([]models.Child, error)
	CreateSchedule(ctx context.Context, event models.ScheduleEvent) (*models.ScheduleEvent, error)
	PatchSchedule(ctx context.Context, id string, patch models.SchedulePatch) (*models.ScheduleEvent, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// MutationRecorder observes repository writes.
type MutationRecorder interface {
	RecordScheduleMutation(op string, err error)
	RecordScheduleLoad(role string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordScheduleMutation(string, error) {}
func (nopRecorder) RecordScheduleLoad(string, error)     {}
