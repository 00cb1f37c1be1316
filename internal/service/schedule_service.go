package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-adp-scheduler/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEvent, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleEvent, error)
	Create(ctx context.Context, event *models.ScheduleEvent) error
	Update(ctx context.Context, event *models.ScheduleEvent) error
	Delete(ctx context.Context, id string) error
}

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type classroomLookup interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

// CreateScheduleRequest describes payload for creating a schedule event.
type CreateScheduleRequest struct {
	ClassID     string           `json:"class_id" validate:"required"`
	ClassroomID string           `json:"classroom_id" validate:"required"`
	DayOfWeek   int              `json:"day_of_week" validate:"min=0,max=6"`
	StartTime   models.ClockTime `json:"start_time"`
	EndTime     models.ClockTime `json:"end_time"`
}

// PatchScheduleRequest carries a partial update. Omitted fields are left untouched.
type PatchScheduleRequest struct {
	ClassID     *string           `json:"class_id,omitempty" validate:"omitempty,min=1"`
	ClassroomID *string           `json:"classroom_id,omitempty" validate:"omitempty,min=1"`
	DayOfWeek   *int              `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	StartTime   *models.ClockTime `json:"start_time,omitempty"`
	EndTime     *models.ClockTime `json:"end_time,omitempty"`
}

// Patch converts the request into a model patch.
func (r PatchScheduleRequest) Patch() models.SchedulePatch {
	return models.SchedulePatch{
		ClassID:     r.ClassID,
		ClassroomID: r.ClassroomID,
		DayOfWeek:   r.DayOfWeek,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
	}
}

// ScheduleService coordinates weekly schedule persistence.
type ScheduleService struct {
	repo       scheduleRepository
	classes    classLookup
	classrooms classroomLookup
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleRepository, classes classLookup, classrooms classroomLookup, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, classes: classes, classrooms: classrooms, validator: validate, logger: logger}
}

// List returns schedule events matching filter.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEvent, error) {
	if filter.DayOfWeek != nil && (*filter.DayOfWeek < 0 || *filter.DayOfWeek > 6) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day_of_week must be between 0 and 6")
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	if events == nil {
		events = []models.ScheduleEvent{}
	}
	return events, nil
}

// Get returns a single schedule event.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleEvent, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return event, nil
}

// Create persists a new schedule event. The teacher is taken from the class.
func (s *ScheduleService) Create(ctx context.Context, actor models.Viewer, req CreateScheduleRequest) (*models.ScheduleEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	event := models.ScheduleEvent{
		ClassID:     req.ClassID,
		ClassroomID: req.ClassroomID,
		DayOfWeek:   req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if err := validateTimes(event); err != nil {
		return nil, err
	}
	class, err := s.resolveClass(ctx, event.ClassID)
	if err != nil {
		return nil, err
	}
	if err := authorizeClass(actor, class); err != nil {
		return nil, err
	}
	if err := s.ensureClassroom(ctx, event.ClassroomID); err != nil {
		return nil, err
	}
	event.TeacherID = class.TeacherIDValue()

	if err := s.repo.Create(ctx, &event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	s.logger.Info("schedule created", zap.String("schedule_id", event.ID), zap.String("actor_id", actor.ID))
	return &event, nil
}

// Patch applies a partial change to an existing schedule event.
func (s *ScheduleService) Patch(ctx context.Context, actor models.Viewer, id string, req PatchScheduleRequest) (*models.ScheduleEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	currentClass, err := s.resolveClass(ctx, current.ClassID)
	if err != nil {
		return nil, err
	}
	if err := authorizeClass(actor, currentClass); err != nil {
		return nil, err
	}

	patch := req.Patch()
	if patch.Empty() {
		return current, nil
	}
	updated := patch.Apply(*current)
	if err := validateTimes(updated); err != nil {
		return nil, err
	}

	class := currentClass
	if updated.ClassID != current.ClassID {
		if class, err = s.resolveClass(ctx, updated.ClassID); err != nil {
			return nil, err
		}
		if err := authorizeClass(actor, class); err != nil {
			return nil, err
		}
	}
	if updated.ClassroomID != current.ClassroomID {
		if err := s.ensureClassroom(ctx, updated.ClassroomID); err != nil {
			return nil, err
		}
	}
	updated.TeacherID = class.TeacherIDValue()

	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	s.logger.Info("schedule updated", zap.String("schedule_id", id), zap.String("actor_id", actor.ID))
	return &updated, nil
}

// Delete removes a schedule event.
func (s *ScheduleService) Delete(ctx context.Context, actor models.Viewer, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	class, err := s.resolveClass(ctx, current.ClassID)
	if err != nil {
		return err
	}
	if err := authorizeClass(actor, class); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.logger.Info("schedule deleted", zap.String("schedule_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (s *ScheduleService) resolveClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *ScheduleService) ensureClassroom(ctx context.Context, id string) error {
	if _, err := s.classrooms.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "classroom does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return nil
}

func validateTimes(event models.ScheduleEvent) error {
	if !event.StartTime.Valid() || !event.EndTime.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "start_time and end_time must be valid times of day")
	}
	if event.StartTime >= event.EndTime {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}

// authorizeClass allows admins everywhere and teachers on their own classes only.
func authorizeClass(actor models.Viewer, class *models.Class) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if teacherID := class.TeacherIDValue(); teacherID != "" && teacherID == actor.ID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "teachers may only schedule their own classes")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "role cannot modify schedules")
	}
}
