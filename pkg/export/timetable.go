// Package export renders weekly timetables as downloadable CSV and PDF documents.
package export

import "sort"

// Column is one day of the timetable.
type Column struct {
	DayOfWeek int
	Date      string
	Label     string
}

// Entry is one class meeting placed on the timetable.
type Entry struct {
	DayOfWeek int
	Start     string
	End       string
	StartHour int
	Title     string
	Subject   string
	Teacher   string
	Classroom string
}

// Timetable is the export input: the visible days, hour bands and meetings.
type Timetable struct {
	Title   string
	Columns []Column
	Hours   []int
	Entries []Entry
}

// sortedEntries orders entries by column position, then start time and title.
func (t Timetable) sortedEntries() []Entry {
	position := make(map[int]int, len(t.Columns))
	for i, col := range t.Columns {
		position[col.DayOfWeek] = i
	}
	entries := append([]Entry(nil), t.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := position[entries[i].DayOfWeek], position[entries[j].DayOfWeek]
		if pi != pj {
			return pi < pj
		}
		if entries[i].Start != entries[j].Start {
			return entries[i].Start < entries[j].Start
		}
		return entries[i].Title < entries[j].Title
	})
	return entries
}

func (t Timetable) column(day int) (Column, bool) {
	for _, col := range t.Columns {
		if col.DayOfWeek == day {
			return col, true
		}
	}
	return Column{}, false
}
