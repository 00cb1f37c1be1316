package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth    = 277.0
	hourColWidth = 17.0
	lineHeight   = 4.0
	minRowHeight = 10.0
)

// PDFExporter renders a timetable as a day-by-hour grid on a landscape A4 page.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws one column per day and one row per hour band. A meeting is written into the
// cell of the hour it starts in; meetings starting outside the bands are omitted.
func (e *PDFExporter) Render(data Timetable) ([]byte, error) {
	if len(data.Columns) == 0 || len(data.Hours) == 0 {
		return nil, fmt.Errorf("pdf requires at least one day and one hour")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	colWidth := (pageWidth - hourColWidth) / float64(len(data.Columns))
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 236, 245)
	pdf.CellFormat(hourColWidth, 8, "", "1", 0, "C", true, 0, "")
	for _, col := range data.Columns {
		pdf.CellFormat(colWidth, 8, tr(col.Label), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	cells := make(map[[2]int][]string)
	for _, entry := range data.sortedEntries() {
		key := [2]int{entry.DayOfWeek, entry.StartHour}
		cells[key] = append(cells[key], describeEntry(entry))
	}

	pdf.SetFont("Arial", "", 7)
	for _, hour := range data.Hours {
		var columns [][]string
		height := minRowHeight
		for _, col := range data.Columns {
			var lines [][]byte
			for _, text := range cells[[2]int{col.DayOfWeek, hour}] {
				lines = append(lines, pdf.SplitLines([]byte(tr(text)), colWidth-2)...)
			}
			columns = append(columns, stringLines(lines))
			if h := float64(len(lines))*lineHeight + 2; h > height {
				height = h
			}
		}
		if pdf.GetY()+height > 200 {
			pdf.AddPage()
		}
		x, y := pdf.GetXY()
		pdf.SetFont("Arial", "B", 8)
		pdf.CellFormat(hourColWidth, height, fmt.Sprintf("%02d:00", hour), "1", 0, "C", false, 0, "")
		pdf.SetFont("Arial", "", 7)
		for i, lines := range columns {
			cx := x + hourColWidth + float64(i)*colWidth
			pdf.Rect(cx, y, colWidth, height, "D")
			for j, line := range lines {
				pdf.SetXY(cx+1, y+1+float64(j)*lineHeight)
				pdf.CellFormat(colWidth-2, lineHeight, line, "", 0, "L", false, 0, "")
			}
		}
		pdf.SetXY(x, y+height)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func describeEntry(entry Entry) string {
	parts := []string{fmt.Sprintf("%s-%s %s", entry.Start, entry.End, entry.Title)}
	if entry.Classroom != "" {
		parts = append(parts, entry.Classroom)
	}
	if entry.Teacher != "" {
		parts = append(parts, entry.Teacher)
	}
	return strings.Join(parts, " / ")
}

func stringLines(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = string(line)
	}
	return out
}
