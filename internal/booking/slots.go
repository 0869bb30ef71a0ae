package booking

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Schedule describes the clinic's bookable day.
type Schedule struct {
	StartHour int
	EndHour   int
	Interval  int // minutes
	Location  *time.Location
}

// DefaultSchedule is 09:00–20:00 in half-hour steps, Moscow time.
func DefaultSchedule() Schedule {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return Schedule{StartHour: 9, EndHour: 20, Interval: 30, Location: loc}
}

// Slots returns the schedule's time slots.
func (s Schedule) Slots() []string {
	return GenerateTimeSlots(s.StartHour, s.EndHour, s.Interval)
}

// GenerateTimeSlots lists "HH:MM" slots from start (inclusive) to end
// (exclusive). Slots are not checked against existing bookings.
func GenerateTimeSlots(startHour, endHour, intervalMinutes int) []string {
	if intervalMinutes <= 0 || endHour <= startHour {
		return nil
	}
	var slots []string
	for m := startHour * 60; m < endHour*60; m += intervalMinutes {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}

// IsSelectableDate reports whether d can be booked as seen at now: past
// dates, today, Saturdays and Sundays are excluded. Both are compared as
// calendar dates in now's location.
func IsSelectableDate(d, now time.Time) bool {
	loc := now.Location()
	day := truncateDay(d.In(loc))
	today := truncateDay(now)
	if !day.After(today) {
		return false
	}
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// SelectableDates returns up to days consecutive calendar days starting at
// from that pass IsSelectableDate.
func SelectableDates(from time.Time, days int, now time.Time) []string {
	if days <= 0 {
		return nil
	}
	if days > 90 {
		days = 90
	}
	out := make([]string, 0, days)
	start := truncateDay(from.In(now.Location()))
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		if IsSelectableDate(d, now) {
			out = append(out, d.Format(DateLayout))
		}
	}
	return out
}

// ParseDate parses a DateLayout date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func containsSlot(slots []string, t string) bool {
	for _, s := range slots {
		if s == t {
			return true
		}
	}
	return false
}
