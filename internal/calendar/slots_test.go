package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// 2026-03-02 is a Monday
	tzMinus5 = time.FixedZone("UTC-5", -5*3600)
	monday   = "2026-03-02"

	weekHours = BusinessHours{
		"monday": {Open: "09:00", Close: "17:00"},
	}
)

// farPast keeps "now" out of the way when only overlap logic is under test.
var farPast = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func localTime(t *testing.T, hhmm string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(DateLayout+" "+TimeLayout, monday+" "+hhmm, tzMinus5)
	require.NoError(t, err)
	return ts
}

func TestGenerateSlots_BusinessHoursOnly(t *testing.T) {
	slots, err := GenerateSlots(weekHours, 30*time.Minute, 0, nil, monday, tzMinus5, farPast)
	require.NoError(t, err)

	// 09:00 through 16:30 starts
	require.Len(t, slots, 16)
	assert.Equal(t, localTime(t, "09:00").UTC(), slots[0].Start)
	assert.Equal(t, localTime(t, "09:30").UTC(), slots[0].End)
	assert.Equal(t, localTime(t, "16:30").UTC(), slots[15].Start)
	for _, s := range slots {
		assert.True(t, s.Available)
	}
}

func TestGenerateSlots_ClosedDayEmpty(t *testing.T) {
	hours := BusinessHours{
		"monday": {Closed: true},
	}
	slots, err := GenerateSlots(hours, 30*time.Minute, 0, nil, monday, tzMinus5, farPast)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// unconfigured weekday is also closed
	slots, err = GenerateSlots(BusinessHours{"tuesday": {Open: "09:00", Close: "17:00"}},
		30*time.Minute, 0, nil, monday, tzMinus5, farPast)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

// The worked example: Mon 09:00-17:00 in UTC-5, 30 minute slots, 10 minute
// buffer, one meeting 13:00-13:30 local. The buffer zone blocks candidates
// from 12:30 through 13:30.
func TestGenerateSlots_BufferAroundBusy(t *testing.T) {
	busy := []BusyInterval{{
		Start:   localTime(t, "13:00").UTC(),
		End:     localTime(t, "13:30").UTC(),
		EventID: "evt_mtg",
	}}
	slots, err := GenerateSlots(weekHours, 30*time.Minute, 10*time.Minute, busy, monday, tzMinus5, farPast)
	require.NoError(t, err)
	require.Len(t, slots, 16)

	blocked := map[string]bool{"12:30": true, "13:00": true, "13:30": true}
	for _, s := range slots {
		start := s.Start.In(tzMinus5).Format(TimeLayout)
		assert.Equal(t, !blocked[start], s.Available, "slot starting %s", start)
	}
}

func TestGenerateSlots_BoundaryTouchIsAvailable(t *testing.T) {
	// busy 13:00-13:30, zero buffer: the 12:30-13:00 candidate touches the
	// busy start exactly and must stay available
	busy := []BusyInterval{{Start: localTime(t, "13:00").UTC(), End: localTime(t, "13:30").UTC()}}
	slots, err := GenerateSlots(weekHours, 30*time.Minute, 0, busy, monday, tzMinus5, farPast)
	require.NoError(t, err)

	for _, s := range slots {
		start := s.Start.In(tzMinus5).Format(TimeLayout)
		switch start {
		case "13:00":
			assert.False(t, s.Available, "13:00 overlaps the meeting")
		default:
			assert.True(t, s.Available, "slot starting %s", start)
		}
	}
}

func TestGenerateSlots_PastSlotsExcluded(t *testing.T) {
	now := localTime(t, "12:10")
	slots, err := GenerateSlots(weekHours, 30*time.Minute, 0, nil, monday, tzMinus5, now)
	require.NoError(t, err)

	// first remaining candidate is 12:30; 09:00-12:00 starts are gone
	require.NotEmpty(t, slots)
	assert.Equal(t, localTime(t, "12:30").UTC(), slots[0].Start)
	require.Len(t, slots, 9)
}

func TestCheckSlotAvailability_MatchesGeneratePredicate(t *testing.T) {
	busy := []BusyInterval{{Start: localTime(t, "13:00").UTC(), End: localTime(t, "13:30").UTC()}}

	cases := []struct {
		name string
		time string
		want bool
	}{
		{"well before meeting", "10:00", true},
		{"buffer collision before", "12:40", false},
		{"direct overlap", "13:00", false},
		{"buffer collision after", "13:20", false},
		{"exactly buffer after meeting end", "13:40", true},
		{"after meeting", "14:00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CheckSlotAvailability(weekHours, 30*time.Minute, 10*time.Minute,
				busy, monday, tc.time, tzMinus5, farPast)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCheckSlotAvailability_OutsideWindow(t *testing.T) {
	got, err := CheckSlotAvailability(weekHours, 30*time.Minute, 0, nil, monday, "08:00", tzMinus5, farPast)
	require.NoError(t, err)
	assert.False(t, got)

	// 16:45 ends at 17:15, past close
	got, err = CheckSlotAvailability(weekHours, 30*time.Minute, 0, nil, monday, "16:45", tzMinus5, farPast)
	require.NoError(t, err)
	assert.False(t, got)

	// closed day
	got, err = CheckSlotAvailability(weekHours, 30*time.Minute, 0, nil, "2026-03-03", "10:00", tzMinus5, farPast)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCheckSlotAvailability_PastSlot(t *testing.T) {
	now := localTime(t, "12:00")
	got, err := CheckSlotAvailability(weekHours, 30*time.Minute, 0, nil, monday, "10:00", tzMinus5, now)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestGenerateSlots_InvalidWindow(t *testing.T) {
	hours := BusinessHours{"monday": {Open: "17:00", Close: "09:00"}}
	_, err := GenerateSlots(hours, 30*time.Minute, 0, nil, monday, tzMinus5, farPast)
	assert.Error(t, err)
}

func TestNearestAvailable(t *testing.T) {
	mk := func(hhmm string, avail bool) Slot {
		start := localTime(t, hhmm).UTC()
		return Slot{Start: start, End: start.Add(30 * time.Minute), Available: avail}
	}
	slots := []Slot{
		mk("09:00", true),
		mk("12:30", false),
		mk("13:00", true),
		mk("14:00", true),
		mk("16:00", true),
	}
	want := localTime(t, "13:30").UTC()

	alts := NearestAvailable(slots, want, 3)
	require.Len(t, alts, 3)
	assert.Equal(t, localTime(t, "13:00").UTC(), alts[0].Start)
	assert.Equal(t, localTime(t, "14:00").UTC(), alts[1].Start)
	assert.Equal(t, localTime(t, "16:00").UTC(), alts[2].Start)
}

func TestBusinessHoursValidate(t *testing.T) {
	assert.NoError(t, BusinessHours{"monday": {Open: "09:00", Close: "17:00"}}.Validate())
	assert.NoError(t, BusinessHours{"sunday": {Closed: true}}.Validate())
	assert.Error(t, BusinessHours{"monday": {Open: "17:00", Close: "09:00"}}.Validate())
	assert.Error(t, BusinessHours{"moonday": {Open: "09:00", Close: "17:00"}}.Validate())
	assert.Error(t, BusinessHours{"monday": {Open: "9am", Close: "17:00"}}.Validate())
}
