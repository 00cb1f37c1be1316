package timegrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-scheduler/internal/models"
)

func TestSlotForRoundTrip(t *testing.T) {
	g := Default()
	for day := 0; day < DaysPerWeek; day++ {
		for _, hour := range g.Hours() {
			cell := g.SlotFor(day, hour)
			require.True(t, g.Contains(cell))
			gotDay, gotHour := cell.Coordinates()
			assert.Equal(t, day, gotDay)
			assert.Equal(t, hour, gotHour)
		}
	}
}

func TestSlotForOutsideWindow(t *testing.T) {
	g := Default()
	assert.False(t, g.Contains(g.SlotFor(1, 6)))
	assert.False(t, g.Contains(g.SlotFor(1, 21)))
	assert.False(t, g.Contains(g.SlotFor(7, 9)))
	assert.Equal(t, 14, g.Rows())
}

func TestCellRangeProportional(t *testing.T) {
	g := Default()
	p := g.CellRange(1, models.Clock(9, 30), models.Clock(11, 0))
	assert.Equal(t, 1, p.Column)
	assert.Equal(t, 2, p.Row)
	assert.InDelta(t, 30.0, p.TopOffset, 0.001)
	assert.InDelta(t, 90.0, p.HeightPx, 0.001)
	assert.True(t, p.Visible)
}

func TestCellRangeBounds(t *testing.T) {
	g := New(7, 21, 48)
	for start := models.Clock(7, 0); start < models.Clock(21, 0); start += 7 {
		for _, length := range []time.Duration{time.Minute, 45 * time.Minute, 2 * time.Hour} {
			p := g.CellRange(3, start, start.Add(length))
			assert.Greater(t, p.HeightPx, 0.0)
			assert.GreaterOrEqual(t, p.TopOffset, 0.0)
			assert.Less(t, p.TopOffset, g.RowHeightPx)
		}
	}
}

func TestCellRangeHiddenOutsideWindow(t *testing.T) {
	g := Default()
	assert.False(t, g.CellRange(2, models.Clock(6, 0), models.Clock(6, 45)).Visible)
	assert.False(t, g.CellRange(2, models.Clock(10, 0), models.Clock(10, 0)).Visible)
}

func TestNewFallsBackToDefaults(t *testing.T) {
	g := New(20, 8, 0)
	assert.Equal(t, Default(), g)
}

func TestIsPastDayGranularity(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, loc)

	assert.False(t, IsPast(time.Date(2026, 10, 19, 0, 0, 0, 0, loc), now))
	assert.False(t, IsPast(time.Date(2026, 10, 19, 23, 59, 0, 0, loc), now))
	assert.False(t, IsPast(time.Date(2026, 10, 25, 0, 0, 0, 0, loc), now))
	assert.True(t, IsPast(time.Date(2026, 10, 18, 23, 59, 59, 0, loc), now))
	assert.True(t, IsPast(time.Date(2025, 1, 1, 12, 0, 0, 0, loc), now))
}

func TestWeekStartAndOccurrence(t *testing.T) {
	wednesday := time.Date(2026, 10, 21, 15, 4, 0, 0, time.UTC)
	start := WeekStart(wednesday)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Sunday, start.Weekday())
	assert.Equal(t, time.Tuesday, OccurrenceDate(start, 2).Weekday())
	assert.True(t, IsToday(wednesday, time.Date(2026, 10, 21, 1, 0, 0, 0, time.UTC)))
}
