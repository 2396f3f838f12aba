package scheduling

import (
	"fmt"
	"time"
)

const (
	SlotMinutes     = 30
	SlotsPerDay     = 24 * 60 / SlotMinutes
	WorkdayStartsAt = 8
	WorkdayEndsAt   = 20
)

type Slot struct {
	Start        time.Time      `json:"start"`
	Label        string         `json:"label"`
	Appointments []*Appointment `json:"appointments"`
}

// DayView is the schedule grid for one local day. Unslotted holds
// appointments whose slot is hidden by the working-hours filter.
type DayView struct {
	Date      string         `json:"date"`
	Slots     []Slot         `json:"slots"`
	Unslotted []*Appointment `json:"unslotted"`
	Total     int            `json:"total"`
}

type WeekView struct {
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Days      []DayView `json:"days"`
}

// SlotIndex is the half-hour slot of t's local time of day.
func SlotIndex(t time.Time) int {
	return (t.Hour()*60 + t.Minute()) / SlotMinutes
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// StartOfWeek returns local midnight of the Monday on or before t.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// BuildDayView places each appointment in exactly one slot. appts must fall
// on day (local midnight in loc).
func BuildDayView(day time.Time, loc *time.Location, appts []*Appointment, workingHoursOnly bool) DayView {
	first, last := 0, SlotsPerDay
	if workingHoursOnly {
		first = WorkdayStartsAt * 60 / SlotMinutes
		last = WorkdayEndsAt * 60 / SlotMinutes
	}

	view := DayView{
		Date:      day.Format("2006-01-02"),
		Slots:     make([]Slot, 0, last-first),
		Unslotted: []*Appointment{},
		Total:     len(appts),
	}
	for i := first; i < last; i++ {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, i*SlotMinutes, 0, 0, loc)
		view.Slots = append(view.Slots, Slot{
			Start:        start,
			Label:        fmt.Sprintf("%02d:%02d", i*SlotMinutes/60, i*SlotMinutes%60),
			Appointments: []*Appointment{},
		})
	}

	for _, a := range appts {
		idx := SlotIndex(a.ScheduledAt.In(loc))
		if idx < first || idx >= last {
			view.Unslotted = append(view.Unslotted, a)
			continue
		}
		view.Slots[idx-first].Appointments = append(view.Slots[idx-first].Appointments, a)
	}
	return view
}
