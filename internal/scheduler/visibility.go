package scheduler

import "github.com/noah-isme/sma-adp-scheduler/internal/models"

// Filter narrows the visible events. Empty fields are inactive.
type Filter struct {
	TeacherID string `json:"teacher_id,omitempty"`
	ClassID   string `json:"class_id,omitempty"`
}

// Active reports whether any criterion is set.
func (f Filter) Active() bool {
	return f.TeacherID != "" || f.ClassID != ""
}

// Match reports whether an event passes every active criterion.
func (f Filter) Match(e models.ScheduleEvent) bool {
	if f.TeacherID != "" && e.TeacherID != f.TeacherID {
		return false
	}
	if f.ClassID != "" && e.ClassID != f.ClassID {
		return false
	}
	return true
}

// FilterEvents returns the events the viewer sees under filter. Viewers without a
// known role see nothing.
func FilterEvents(events []models.ScheduleEvent, viewer models.Viewer, filter Filter) []models.ScheduleEvent {
	if _, ok := models.ParseRole(string(viewer.Role)); !ok {
		return nil
	}
	visible := make([]models.ScheduleEvent, 0, len(events))
	for _, e := range events {
		if filter.Match(e) {
			visible = append(visible, e)
		}
	}
	return visible
}

// CanEdit reports whether the viewer's role may write schedules at all.
func CanEdit(viewer models.Viewer) bool {
	return viewer.Role == models.RoleAdmin || viewer.Role == models.RoleTeacher
}

// CanEditEvent reports whether the viewer may edit this particular event.
func CanEditEvent(viewer models.Viewer, event models.ScheduleEvent) bool {
	switch viewer.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return event.TeacherID != "" && event.TeacherID == viewer.ID
	default:
		return false
	}
}

// ChildrenInClass lists the viewer's children enrolled in classID.
func ChildrenInClass(state State, classID string) []models.Child {
	ids := state.ChildClasses[classID]
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	children := make([]models.Child, 0, len(ids))
	for _, child := range state.Children {
		if _, ok := wanted[child.ID]; ok {
			children = append(children, child)
		}
	}
	return children
}
