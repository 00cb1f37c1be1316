package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

var csvHeaders = []string{"Day", "Date", "Start", "End", "Class", "Subject", "Teacher", "Classroom"}

// CSVExporter renders a timetable as one CSV row per meeting.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the timetable. Entries on days outside the
// timetable's columns are skipped.
func (e *CSVExporter) Render(data Timetable) ([]byte, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one day column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, entry := range data.sortedEntries() {
		col, ok := data.column(entry.DayOfWeek)
		if !ok {
			continue
		}
		record := []string{col.Label, col.Date, entry.Start, entry.End, entry.Title, entry.Subject, entry.Teacher, entry.Classroom}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
