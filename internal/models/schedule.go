package models

import "time"

// ScheduleEvent is one recurring weekly class meeting in a classroom.
type ScheduleEvent struct {
	ID          string    `db:"id" json:"id,omitempty"`
	ClassID     string    `db:"class_id" json:"class_id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id,omitempty"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartTime   ClockTime `db:"start_time" json:"start_time"`
	EndTime     ClockTime `db:"end_time" json:"end_time"`
	CreatedAt   time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Duration returns the meeting length.
func (e ScheduleEvent) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// Persisted reports whether the event has been saved.
func (e ScheduleEvent) Persisted() bool {
	return e.ID != ""
}

// SchedulePatch is a partial change to a schedule event. Nil fields are left untouched.
type SchedulePatch struct {
	ClassID     *string    `json:"class_id,omitempty"`
	ClassroomID *string    `json:"classroom_id,omitempty"`
	DayOfWeek   *int       `json:"day_of_week,omitempty"`
	StartTime   *ClockTime `json:"start_time,omitempty"`
	EndTime     *ClockTime `json:"end_time,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SchedulePatch) Empty() bool {
	return p.ClassID == nil && p.ClassroomID == nil && p.DayOfWeek == nil && p.StartTime == nil && p.EndTime == nil
}

// Apply returns a copy of the event with the patch applied.
func (p SchedulePatch) Apply(e ScheduleEvent) ScheduleEvent {
	if p.ClassID != nil {
		e.ClassID = *p.ClassID
	}
	if p.ClassroomID != nil {
		e.ClassroomID = *p.ClassroomID
	}
	if p.DayOfWeek != nil {
		e.DayOfWeek = *p.DayOfWeek
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	return e
}

// ScheduleFilter narrows schedule listings.
type ScheduleFilter struct {
	ClassIDs    []string
	ClassroomID string
	TeacherID   string
	DayOfWeek   *int
}
