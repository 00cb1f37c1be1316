package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, c.Hour())
	assert.Equal(t, 30, c.Minute())

	c, err = ParseClock("14:00:00.000000")
	require.NoError(t, err)
	assert.Equal(t, Clock(14, 0), c)

	for _, bad := range []string{"", "9", "25:00", "10:75", "ab:cd", "24:30"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestClockTimeJSON(t *testing.T) {
	var payload struct {
		Start ClockTime `json:"start"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"07:05"}`), &payload))
	assert.Equal(t, Clock(7, 5), payload.Start)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"07:05"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"start":705}`), &payload))
}

func TestClockTimeScan(t *testing.T) {
	var c ClockTime
	require.NoError(t, c.Scan([]byte("08:15:00")))
	assert.Equal(t, Clock(8, 15), c)
	require.NoError(t, c.Scan(time.Date(0, 1, 1, 13, 45, 0, 0, time.UTC)))
	assert.Equal(t, Clock(13, 45), c)
	assert.Error(t, c.Scan(42))

	v, err := Clock(9, 0).Value()
	require.NoError(t, err)
	assert.Equal(t, "09:00:00", v)
}

func TestClockArithmetic(t *testing.T) {
	start := Clock(9, 0)
	end := start.Add(90 * time.Minute)
	assert.Equal(t, Clock(10, 30), end)
	assert.Equal(t, 90*time.Minute, end.Sub(start))

	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 19, 10, 30, 0, 0, time.UTC), end.On(day))
}

func TestSchedulePatchApply(t *testing.T) {
	event := ScheduleEvent{ID: "e1", ClassID: "c1", ClassroomID: "r1", DayOfWeek: 1, StartTime: Clock(9, 0), EndTime: Clock(10, 0)}
	day := 2
	start := Clock(14, 0)
	patched := SchedulePatch{DayOfWeek: &day, StartTime: &start}.Apply(event)

	assert.Equal(t, 2, patched.DayOfWeek)
	assert.Equal(t, Clock(14, 0), patched.StartTime)
	assert.Equal(t, "r1", patched.ClassroomID)
	assert.Equal(t, 1, event.DayOfWeek)
	assert.True(t, SchedulePatch{}.Empty())
}
