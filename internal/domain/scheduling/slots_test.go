package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestSlotIndex(t *testing.T) {
	loc := time.UTC
	assert.Equal(t, 0, SlotIndex(time.Date(2024, 3, 5, 0, 0, 0, 0, loc)))
	assert.Equal(t, 28, SlotIndex(time.Date(2024, 3, 5, 14, 5, 0, 0, loc)))
	assert.Equal(t, 29, SlotIndex(time.Date(2024, 3, 5, 14, 30, 0, 0, loc)))
	assert.Equal(t, 47, SlotIndex(time.Date(2024, 3, 5, 23, 59, 0, 0, loc)))
}

func TestBuildDayView_FullDay(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	a := &Appointment{ScheduledAt: time.Date(2024, 3, 5, 14, 5, 0, 0, loc), Duration: 30}

	view := BuildDayView(day, loc, []*Appointment{a}, false)
	require.Len(t, view.Slots, 48)
	assert.Equal(t, "2024-03-05", view.Date)
	assert.Equal(t, 1, view.Total)

	found := 0
	for i, s := range view.Slots {
		if len(s.Appointments) > 0 {
			found++
			assert.Equal(t, 28, i)
			assert.Equal(t, "14:00", s.Label)
		}
	}
	assert.Equal(t, 1, found, "appointment must occupy exactly one slot")
	assert.Empty(t, view.Unslotted)
}

func TestBuildDayView_UsesClinicTimezone(t *testing.T) {
	loc := mustLoc(t, "Asia/Kolkata")
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	// 08:35 UTC is 14:05 in Kolkata.
	a := &Appointment{ScheduledAt: time.Date(2024, 3, 5, 8, 35, 0, 0, time.UTC)}

	view := BuildDayView(day, loc, []*Appointment{a}, false)
	assert.Len(t, view.Slots[28].Appointments, 1)
}

func TestBuildDayView_WorkingHours(t *testing.T) {
	loc := time.UTC
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
	early := &Appointment{ScheduledAt: time.Date(2024, 3, 5, 7, 45, 0, 0, loc)}
	first := &Appointment{ScheduledAt: time.Date(2024, 3, 5, 8, 0, 0, 0, loc)}
	last := &Appointment{ScheduledAt: time.Date(2024, 3, 5, 19, 30, 0, 0, loc)}
	late := &Appointment{ScheduledAt: time.Date(2024, 3, 5, 20, 0, 0, 0, loc)}

	view := BuildDayView(day, loc, []*Appointment{early, first, last, late}, true)
	require.Len(t, view.Slots, 24)
	assert.Equal(t, "08:00", view.Slots[0].Label)
	assert.Equal(t, "19:30", view.Slots[23].Label)
	assert.Equal(t, []*Appointment{first}, view.Slots[0].Appointments)
	assert.Equal(t, []*Appointment{last}, view.Slots[23].Appointments)
	assert.Equal(t, []*Appointment{early, late}, view.Unslotted)
	assert.Equal(t, 4, view.Total)
}

func TestBuildDayView_Empty(t *testing.T) {
	view := BuildDayView(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), time.UTC, nil, false)
	assert.Len(t, view.Slots, 48)
	assert.NotNil(t, view.Unslotted)
	assert.NotNil(t, view.Slots[0].Appointments)
}

func TestStartOfWeek(t *testing.T) {
	loc := time.UTC
	tests := map[string]string{
		"2024-03-04": "2024-03-04", // Monday
		"2024-03-06": "2024-03-04",
		"2024-03-10": "2024-03-04", // Sunday
		"2024-03-11": "2024-03-11",
	}
	for in, want := range tests {
		d, err := time.ParseInLocation("2006-01-02", in, loc)
		require.NoError(t, err)
		assert.Equal(t, want, StartOfWeek(d.Add(15*time.Hour), loc).Format("2006-01-02"), in)
	}
}
