package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

const scheduleColumns = "id, class_id, classroom_id, COALESCE(teacher_id, '') AS teacher_id, day_of_week, start_time, end_time, created_at, updated_at"

// ScheduleRepository provides persistence for weekly schedule events.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedule events matching the filter ordered by day and start time.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEvent, error) {
	base := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if len(filter.ClassIDs) > 0 {
		placeholders := make([]string, 0, len(filter.ClassIDs))
		for _, id := range filter.ClassIDs {
			args = append(args, id)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("class_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, fmt.Sprintf("classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DayOfWeek != nil {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, *filter.DayOfWeek)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY day_of_week ASC, start_time ASC, id ASC", scheduleColumns, base)
	var events []models.ScheduleEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return events, nil
}

// FindByID loads a schedule event by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = $1", scheduleColumns)
	var event models.ScheduleEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create stores a new schedule event.
func (r *ScheduleRepository) Create(ctx context.Context, event *models.ScheduleEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	const query = `INSERT INTO schedules (id, class_id, classroom_id, teacher_id, day_of_week, start_time, end_time, created_at, updated_at) VALUES (:id, :class_id, :classroom_id, NULLIF(:teacher_id, ''), :day_of_week, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update rewrites a schedule event.
func (r *ScheduleRepository) Update(ctx context.Context, event *models.ScheduleEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET class_id = :class_id, classroom_id = :classroom_id, teacher_id = NULLIF(:teacher_id, ''), day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return expectOneRow(res, "update schedule")
}

// Delete removes a schedule event by id.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return expectOneRow(res, "delete schedule")
}

// expectOneRow maps a write that touched nothing to sql.ErrNoRows.
func expectOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
