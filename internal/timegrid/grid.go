// Package timegrid maps weekly class meetings onto a fixed day-by-hour grid.
//
// Columns are days of the week (Sunday = 0). Rows are half-open hourly bands
// [StartHour, EndHour). Everything here is pure; no function performs I/O.
package timegrid

import (
	"time"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

// DaysPerWeek is the number of grid columns.
const DaysPerWeek = 7

// Default grid bounds: 14 rows from 07:00 to 21:00.
const (
	DefaultStartHour   = 7
	DefaultEndHour     = 21
	DefaultRowHeightPx = 60
)

// Grid describes the visible window and row geometry.
type Grid struct {
	StartHour   int
	EndHour     int
	RowHeightPx float64
}

// New returns a grid, falling back to the defaults for invalid bounds.
func New(startHour, endHour int, rowHeightPx float64) Grid {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		startHour, endHour = DefaultStartHour, DefaultEndHour
	}
	if rowHeightPx <= 0 {
		rowHeightPx = DefaultRowHeightPx
	}
	return Grid{StartHour: startHour, EndHour: endHour, RowHeightPx: rowHeightPx}
}

// Default returns the 07:00-21:00 grid with 60px rows.
func Default() Grid {
	return New(DefaultStartHour, DefaultEndHour, DefaultRowHeightPx)
}

// Rows returns the number of hourly rows.
func (g Grid) Rows() int {
	return g.EndHour - g.StartHour
}

// Hours lists the starting hour of every row.
func (g Grid) Hours() []int {
	hours := make([]int, 0, g.Rows())
	for h := g.StartHour; h < g.EndHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// GridCell addresses one (day, hour) cell.
type GridCell struct {
	Column int `json:"column"`
	Row    int `json:"row"`

	startHour int
}

// SlotFor maps a day of week and hour onto a cell. It never fails; use Contains to check bounds.
func (g Grid) SlotFor(dayOfWeek, hour int) GridCell {
	return GridCell{Column: dayOfWeek, Row: hour - g.StartHour, startHour: g.StartHour}
}

// Coordinates is the inverse of SlotFor.
func (c GridCell) Coordinates() (dayOfWeek, hour int) {
	return c.Column, c.Row + c.startHour
}

// Contains reports whether a cell lies inside the grid.
func (g Grid) Contains(c GridCell) bool {
	return c.Column >= 0 && c.Column < DaysPerWeek && c.Row >= 0 && c.Row < g.Rows()
}

// Placement is the visual position of an event block.
type Placement struct {
	Column    int     `json:"column"`
	Row       int     `json:"row"`
	TopOffset float64 `json:"top_offset"`
	HeightPx  float64 `json:"height_px"`
	Visible   bool    `json:"visible"`
}

// CellRange places a meeting on the grid. TopOffset is measured from the top of the
// starting row; HeightPx is proportional to the duration.
func (g Grid) CellRange(dayOfWeek int, start, end models.ClockTime) Placement {
	cell := g.SlotFor(dayOfWeek, start.Hour())
	p := Placement{
		Column:    cell.Column,
		Row:       cell.Row,
		TopOffset: float64(start.Minute()) / 60 * g.RowHeightPx,
		HeightPx:  end.Sub(start).Hours() * g.RowHeightPx,
	}
	p.Visible = g.Contains(cell) && p.HeightPx > 0
	return p
}

// Place is CellRange for a stored event.
func (g Grid) Place(e models.ScheduleEvent) Placement {
	return g.CellRange(e.DayOfWeek, e.StartTime, e.EndTime)
}

// IsPast reports whether date falls on a day strictly before now's day.
// Both values are compared as calendar dates in now's location.
func IsPast(date, now time.Time) bool {
	return startOfDay(date.In(now.Location())).Before(startOfDay(now))
}

// IsToday reports whether date and now share a calendar day in now's location.
func IsToday(date, now time.Time) bool {
	return startOfDay(date.In(now.Location())).Equal(startOfDay(now))
}

// WeekStart returns Sunday 00:00 of the week containing date.
func WeekStart(date time.Time) time.Time {
	day := startOfDay(date)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// OccurrenceDate returns the date of dayOfWeek within the week starting at weekStart.
func OccurrenceDate(weekStart time.Time, dayOfWeek int) time.Time {
	return startOfDay(weekStart).AddDate(0, 0, dayOfWeek)
}

// ValidDay reports whether dayOfWeek is in [0,6].
func ValidDay(dayOfWeek int) bool {
	return dayOfWeek >= 0 && dayOfWeek < DaysPerWeek
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
