package calendar

import (
	"fmt"
	"time"
)

// Slot generation is pure: business hours in, flagged candidates out. All
// comparisons run on integer epoch seconds; the tenant timezone is applied
// once when the day window is resolved, never per candidate.

// parseHHMM returns minutes since midnight for a "HH:MM" string. Longer
// strings ("09:00:00") are truncated to the first five characters.
func parseHHMM(s string) (int, error) {
	if len(s) < 5 {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	s = s[:5]
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// dayWindow resolves the open/close bounds for date in loc. ok is false when
// the weekday is closed or unconfigured.
func dayWindow(hours BusinessHours, date string, loc *time.Location) (start, end time.Time, ok bool, err error) {
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("invalid date %q: %w", date, err)
	}
	w, open := hours.Window(day.Weekday())
	if !open {
		return time.Time{}, time.Time{}, false, nil
	}
	openMins, err := parseHHMM(w.Open)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	closeMins, err := parseHHMM(w.Close)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if closeMins <= openMins {
		return time.Time{}, time.Time{}, false, fmt.Errorf("close %s must be after open %s", w.Close, w.Open)
	}
	y, m, d := day.Date()
	start = time.Date(y, m, d, openMins/60, openMins%60, 0, 0, loc)
	end = time.Date(y, m, d, closeMins/60, closeMins%60, 0, 0, loc)
	return start, end, true, nil
}

// conflicts applies the shared overlap predicate: a candidate is blocked when
// it intersects a busy interval widened by buffer on both sides. A candidate
// whose end exactly touches a busy start (or vice versa, with zero buffer) is
// not a conflict.
func conflicts(start, end time.Time, busy []BusyInterval, buffer time.Duration) bool {
	s, e := start.Unix(), end.Unix()
	buf := int64(buffer / time.Second)
	for _, b := range busy {
		if e+buf > b.Start.Unix() && s-buf < b.End.Unix() {
			return true
		}
	}
	return false
}

// GenerateSlots produces the candidate slots for one calendar day. Candidates
// step by slotLen with no overlap; any candidate that already started
// relative to now is dropped, so a slot in progress is never offered. Busy-
// conflicting candidates are flagged unavailable. Returned times are UTC. A
// closed day yields nil.
func GenerateSlots(hours BusinessHours, slotLen, buffer time.Duration, busy []BusyInterval, date string, loc *time.Location, now time.Time) ([]Slot, error) {
	winStart, winEnd, open, err := dayWindow(hours, date, loc)
	if err != nil || !open {
		return nil, err
	}
	nowSec := now.Unix()
	var slots []Slot
	for s := winStart; s.Add(slotLen).Unix() <= winEnd.Unix(); s = s.Add(slotLen) {
		if s.Unix() < nowSec {
			continue
		}
		e := s.Add(slotLen)
		slots = append(slots, Slot{
			Start:     s.UTC(),
			End:       e.UTC(),
			Available: !conflicts(s, e, busy, buffer),
		})
	}
	return slots, nil
}

// CheckSlotAvailability tests the single candidate at date+timeStr with the
// same predicate GenerateSlots uses, so the read path and the booking path
// can never disagree. The candidate must also fit inside the day's window
// and must not have started yet.
func CheckSlotAvailability(hours BusinessHours, slotLen, buffer time.Duration, busy []BusyInterval, date, timeStr string, loc *time.Location, now time.Time) (bool, error) {
	winStart, winEnd, open, err := dayWindow(hours, date, loc)
	if err != nil {
		return false, err
	}
	if !open {
		return false, nil
	}
	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+timeStr, loc)
	if err != nil {
		return false, fmt.Errorf("invalid time %q: %w", timeStr, err)
	}
	end := start.Add(slotLen)
	if start.Unix() < winStart.Unix() || end.Unix() > winEnd.Unix() {
		return false, nil
	}
	if start.Unix() < now.Unix() {
		return false, nil
	}
	return !conflicts(start, end, busy, buffer), nil
}

// FirstAvailable returns the earliest available slot, or false when every
// candidate is taken.
func FirstAvailable(slots []Slot) (Slot, bool) {
	for _, s := range slots {
		if s.Available {
			return s, true
		}
	}
	return Slot{}, false
}

// NearestAvailable returns up to max available slots ordered by distance from
// want, for suggesting alternatives when a requested slot is taken.
func NearestAvailable(slots []Slot, want time.Time, max int) []Slot {
	free := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			free = append(free, s)
		}
	}
	// selection by distance; slot counts per day are small
	var out []Slot
	for len(free) > 0 && len(out) < max {
		best := 0
		for i := 1; i < len(free); i++ {
			if absDelta(free[i].Start, want) < absDelta(free[best].Start, want) {
				best = i
			}
		}
		out = append(out, free[best])
		free = append(free[:best], free[best+1:]...)
	}
	return out
}

func absDelta(a, b time.Time) int64 {
	d := a.Unix() - b.Unix()
	if d < 0 {
		return -d
	}
	return d
}
