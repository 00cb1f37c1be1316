package scheduler

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
	"github.com/noah-isme/sma-adp-scheduler/internal/timegrid"
)

const dateLayout = "2006-01-02"

// Mode selects how many day columns are rendered.
type Mode string

const (
	ModeWeek Mode = "week"
	ModeDay  Mode = "day"
)

// ParseMode accepts "week" or "day"; anything else is week.
func ParseMode(raw string) Mode {
	if Mode(raw) == ModeDay {
		return ModeDay
	}
	return ModeWeek
}

// NavAction moves the reference date.
type NavAction string

const (
	NavNextWeek NavAction = "next_week"
	NavPrevWeek NavAction = "prev_week"
	NavNextDay  NavAction = "next_day"
	NavPrevDay  NavAction = "prev_day"
	NavToday    NavAction = "today"
)

var palette = []string{
	"#2563eb", "#16a34a", "#d97706", "#dc2626", "#7c3aed",
	"#0891b2", "#db2777", "#65a30d", "#ea580c", "#4f46e5",
}

// View holds navigation state and lays loaded data out on the grid.
type View struct {
	grid    timegrid.Grid
	now     func() time.Time
	refDate time.Time
	mode    Mode
}

// NewView starts at today in week mode.
func NewView(grid timegrid.Grid, now func() time.Time) *View {
	if now == nil {
		now = time.Now
	}
	return &View{grid: grid, now: now, refDate: now(), mode: ModeWeek}
}

// Grid returns the grid geometry.
func (v *View) Grid() timegrid.Grid { return v.grid }

// SetMode switches between week and day rendering.
func (v *View) SetMode(mode Mode) { v.mode = mode }

// Mode returns the current mode.
func (v *View) Mode() Mode { return v.mode }

// ReferenceDate returns the date navigation is anchored to.
func (v *View) ReferenceDate() time.Time { return v.refDate }

// WeekStart returns the Sunday of the reference week.
func (v *View) WeekStart() time.Time { return timegrid.WeekStart(v.refDate) }

// Navigate shifts the reference date.
func (v *View) Navigate(action NavAction) error {
	switch action {
	case NavNextWeek:
		v.refDate = v.refDate.AddDate(0, 0, 7)
	case NavPrevWeek:
		v.refDate = v.refDate.AddDate(0, 0, -7)
	case NavNextDay:
		v.refDate = v.refDate.AddDate(0, 0, 1)
	case NavPrevDay:
		v.refDate = v.refDate.AddDate(0, 0, -1)
	case NavToday:
		v.refDate = v.now()
	default:
		return invalid("action", fmt.Sprintf("unknown navigation %q", action))
	}
	return nil
}

// DayColumn is one rendered day.
type DayColumn struct {
	DayOfWeek int    `json:"day_of_week"`
	Date      string `json:"date"`
	Label     string `json:"label"`
	IsPast    bool   `json:"is_past"`
	IsToday   bool   `json:"is_today"`
}

// HourRow is one rendered hour band.
type HourRow struct {
	Hour  int     `json:"hour"`
	Label string  `json:"label"`
	TopPx float64 `json:"top_px"`
}

// Cell is one (day, hour) slot.
type Cell struct {
	DayOfWeek   int  `json:"day_of_week"`
	Hour        int  `json:"hour"`
	CanAdd      bool `json:"can_add"`
	Highlighted bool `json:"highlighted"`
}

// EventBlock is one laid-out event.
type EventBlock struct {
	ID            string             `json:"id"`
	ClassID       string             `json:"class_id"`
	ClassroomID   string             `json:"classroom_id"`
	TeacherID     string             `json:"teacher_id,omitempty"`
	Title         string             `json:"title"`
	Subject       string             `json:"subject,omitempty"`
	TeacherName   string             `json:"teacher_name,omitempty"`
	ClassroomName string             `json:"classroom_name,omitempty"`
	Color         string             `json:"color"`
	DayOfWeek     int                `json:"day_of_week"`
	StartTime     models.ClockTime   `json:"start_time"`
	EndTime       models.ClockTime   `json:"end_time"`
	Placement     timegrid.Placement `json:"placement"`
	Editable      bool               `json:"editable"`
	Pending       bool               `json:"pending"`
	Dragging      bool               `json:"dragging"`
}

// CalendarView is the full render model.
type CalendarView struct {
	Mode          Mode           `json:"mode"`
	ReferenceDate string         `json:"reference_date"`
	WeekStart     string         `json:"week_start"`
	Today         string         `json:"today"`
	Viewer        models.Viewer  `json:"viewer"`
	CanEdit       bool           `json:"can_edit"`
	Loaded        bool           `json:"loaded"`
	Loading       bool           `json:"loading"`
	Filter        Filter         `json:"filter"`
	Columns       []DayColumn    `json:"columns"`
	Rows          []HourRow      `json:"rows"`
	Cells         []Cell         `json:"cells"`
	Events        []EventBlock   `json:"events"`
	Drag          DragSnapshot   `json:"drag"`
	Editor        EditorSnapshot `json:"editor"`
	Notifications []Notification `json:"notifications"`
}

// EventDetail is the read-only panel for an event the viewer cannot edit.
type EventDetail struct {
	EventID       string           `json:"event_id"`
	Title         string           `json:"title"`
	Subject       string           `json:"subject,omitempty"`
	TeacherName   string           `json:"teacher_name,omitempty"`
	ClassroomName string           `json:"classroom_name,omitempty"`
	Building      string           `json:"building,omitempty"`
	DayOfWeek     int              `json:"day_of_week"`
	Date          string           `json:"date"`
	StartTime     models.ClockTime `json:"start_time"`
	EndTime       models.ClockTime `json:"end_time"`
	Children      []models.Child   `json:"children,omitempty"`
}

// renderInput gathers everything Render reads. pending may be nil.
type renderInput struct {
	state   State
	loaded  bool
	loading bool
	viewer  models.Viewer
	filter  Filter
	drag    DragSnapshot
	pending func(id string) bool
}

// Columns returns the day columns of the current mode.
func (v *View) Columns() []DayColumn {
	now := v.now()
	weekStart := v.WeekStart()
	days := make([]int, 0, timegrid.DaysPerWeek)
	if v.mode == ModeDay {
		days = append(days, int(v.refDate.Weekday()))
	} else {
		for d := 0; d < timegrid.DaysPerWeek; d++ {
			days = append(days, d)
		}
	}
	columns := make([]DayColumn, 0, len(days))
	for _, day := range days {
		date := timegrid.OccurrenceDate(weekStart, day)
		columns = append(columns, DayColumn{
			DayOfWeek: day,
			Date:      date.Format(dateLayout),
			Label:     date.Format("Mon 02 Jan"),
			IsPast:    timegrid.IsPast(date, now),
			IsToday:   timegrid.IsToday(date, now),
		})
	}
	return columns
}

func (v *View) render(in renderInput) CalendarView {
	canEdit := CanEdit(in.viewer)
	columns := v.Columns()

	out := CalendarView{
		Mode:          v.mode,
		ReferenceDate: v.refDate.Format(dateLayout),
		WeekStart:     v.WeekStart().Format(dateLayout),
		Today:         v.now().Format(dateLayout),
		Viewer:        in.viewer,
		CanEdit:       canEdit,
		Loaded:        in.loaded,
		Loading:       in.loading,
		Filter:        in.filter,
		Columns:       columns,
		Drag:          in.drag,
	}

	for _, hour := range v.grid.Hours() {
		out.Rows = append(out.Rows, HourRow{
			Hour:  hour,
			Label: models.Clock(hour, 0).String(),
			TopPx: float64(hour-v.grid.StartHour) * v.grid.RowHeightPx,
		})
	}

	columnIndex := make(map[int]int, len(columns))
	for i, col := range columns {
		columnIndex[col.DayOfWeek] = i
		for _, hour := range v.grid.Hours() {
			cell := Cell{DayOfWeek: col.DayOfWeek, Hour: hour, CanAdd: canEdit && !col.IsPast}
			if t := in.drag.Target; t != nil && t.DayOfWeek == col.DayOfWeek && t.Hour == hour {
				cell.Highlighted = true
			}
			out.Cells = append(out.Cells, cell)
		}
	}

	out.Events = []EventBlock{}
	for _, event := range FilterEvents(in.state.Events, in.viewer, in.filter) {
		idx, shown := columnIndex[event.DayOfWeek]
		if !shown {
			continue
		}
		placement := v.grid.Place(event)
		if !placement.Visible {
			continue
		}
		placement.Column = idx
		block := describe(in.state, event)
		block.Placement = placement
		block.Editable = CanEditEvent(in.viewer, event)
		block.Dragging = in.drag.State != DragIdle && in.drag.EventID == event.ID
		if in.pending != nil {
			block.Pending = in.pending(event.ID)
		}
		if block.Pending {
			block.Editable = false
		}
		out.Events = append(out.Events, block)
	}
	return out
}

// Detail builds the read-only panel for event.
func (v *View) Detail(state State, event models.ScheduleEvent) EventDetail {
	block := describe(state, event)
	detail := EventDetail{
		EventID:       event.ID,
		Title:         block.Title,
		Subject:       block.Subject,
		TeacherName:   block.TeacherName,
		ClassroomName: block.ClassroomName,
		DayOfWeek:     event.DayOfWeek,
		Date:          timegrid.OccurrenceDate(v.WeekStart(), event.DayOfWeek).Format(dateLayout),
		StartTime:     event.StartTime,
		EndTime:       event.EndTime,
	}
	if room, ok := state.Classrooms[event.ClassroomID]; ok {
		detail.Building = room.Building
	}
	if state.Viewer.Role == models.RoleParent {
		detail.Children = ChildrenInClass(state, event.ClassID)
	}
	return detail
}

func describe(state State, event models.ScheduleEvent) EventBlock {
	block := EventBlock{
		ID:          event.ID,
		ClassID:     event.ClassID,
		ClassroomID: event.ClassroomID,
		TeacherID:   event.TeacherID,
		Title:       event.ClassID,
		Color:       colorFor(event.ClassID),
		DayOfWeek:   event.DayOfWeek,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
	}
	if class, ok := state.Classes[event.ClassID]; ok {
		block.Title = class.Name
		block.Subject = class.Subject
	}
	if teacher, ok := state.Teachers[event.TeacherID]; ok {
		block.TeacherName = teacher.FullName
	}
	if room, ok := state.Classrooms[event.ClassroomID]; ok {
		block.ClassroomName = room.Name
	}
	return block
}

// colorFor picks a stable palette entry per class.
func colorFor(classID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(classID))
	return palette[h.Sum32()%uint32(len(palette))]
}

// ClassOption is a selectable class for the editor and filters.
type ClassOption struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TeacherID string `json:"teacher_id,omitempty"`
}

// ClassOptions lists loaded classes sorted by name.
func ClassOptions(state State) []ClassOption {
	options := make([]ClassOption, 0, len(state.Classes))
	for _, class := range state.Classes {
		options = append(options, ClassOption{ID: class.ID, Name: class.Name, TeacherID: class.TeacherIDValue()})
	}
	sort.Slice(options, func(i, j int) bool {
		if options[i].Name != options[j].Name {
			return options[i].Name < options[j].Name
		}
		return options[i].ID < options[j].ID
	})
	return options
}
