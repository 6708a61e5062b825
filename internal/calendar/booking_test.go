package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testBooking(t *testing.T, prov *fakeProvider, now time.Time) (*BookingService, *fakeAppts) {
	t.Helper()
	svc, _ := testService(t, testConfig(allWeekHours), prov, now)
	appts := newFakeAppts()
	b := NewBookingService(svc, appts, zap.NewNop().Sugar())
	b.now = func() time.Time { return now }
	return b, appts
}

func TestCreateAppointment_HappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, appts := testBooking(t, prov, now)

	att := Attendee{Email: "jo@example.com", Name: "Jo"}
	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", att, "2026-03-02", "13:00")
	require.NoError(t, err)

	assert.Equal(t, "appt_1", appt.ID)
	assert.Equal(t, "evt_1", appt.ExternalEventID)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), appt.StartAt)
	assert.Equal(t, time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC), appt.EndAt)

	require.Len(t, prov.created, 1)
	assert.Equal(t, "jo@example.com", prov.created[0].AttendeeEmail)
	assert.Contains(t, prov.created[0].Summary, "Jo")
	require.Len(t, appts.byID, 1)
}

func TestCreateAppointment_ConflictRejectedBeforeEventCreation(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	busyStart := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	prov := &fakeProvider{busy: []BusyInterval{
		{Start: busyStart, End: busyStart.Add(30 * time.Minute), EventID: "evt_x"},
	}}
	b, appts := testBooking(t, prov, now)

	_, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	var unavail *SlotUnavailableError
	require.ErrorAs(t, err, &unavail)
	assert.Empty(t, prov.created, "no external event on conflict")
	assert.Empty(t, appts.byID)
}

func TestCreateAppointment_ProviderFailureLeavesNoLocalRow(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{createErr: &ProviderError{Kind: ProviderRetryable, StatusCode: 502, Err: assert.AnError}}
	b, appts := testBooking(t, prov, now)

	_, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.Error(t, err)
	assert.Empty(t, appts.byID, "external mutation happens before the local one")
}

func TestCreateAppointment_InsertFailureSurfaces(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, appts := testBooking(t, prov, now)
	appts.insertErr = assert.AnError

	_, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.Error(t, err)
	assert.Len(t, prov.created, 1, "event creation already happened")
}

func TestReschedule_MovesEventAndRow(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, appts := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)

	moved, err := b.RescheduleAppointment(context.Background(), "t1", appt.ID, "2026-03-03", "10:00")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), moved.StartAt)
	assert.Equal(t, "evt_2", moved.ExternalEventID)
	assert.Equal(t, []string{"evt_1"}, prov.deleted, "superseded event removed")

	stored, err := appts.AppointmentByID(context.Background(), "t1", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.StartAt, stored.StartAt)
	assert.Equal(t, "evt_2", stored.ExternalEventID)
}

// Rebooking the exact same slot must not collide with the appointment's own
// event, and still produces a fresh event.
func TestReschedule_SameSlotExcludesOwnEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, _ := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)

	moved, err := b.RescheduleAppointment(context.Background(), "t1", appt.ID, "2026-03-02", "13:00")
	require.NoError(t, err)
	assert.Equal(t, "evt_2", moved.ExternalEventID)
	assert.Equal(t, []string{"evt_1"}, prov.deleted)
}

func TestReschedule_ConflictCarriesAlternatives(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	busyStart := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	prov := &fakeProvider{busy: []BusyInterval{
		{Start: busyStart, End: busyStart.Add(30 * time.Minute), EventID: "evt_other"},
	}}
	b, appts := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)

	_, err = b.RescheduleAppointment(context.Background(), "t1", appt.ID, "2026-03-03", "10:00")
	var unavail *SlotUnavailableError
	require.ErrorAs(t, err, &unavail)
	require.NotEmpty(t, unavail.Alternatives)
	assert.LessOrEqual(t, len(unavail.Alternatives), maxAlternatives)
	for _, alt := range unavail.Alternatives {
		assert.True(t, alt.Available)
		assert.NotEqual(t, busyStart, alt.Start)
	}

	stored, err := appts.AppointmentByID(context.Background(), "t1", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", stored.ExternalEventID, "row untouched on conflict")
	assert.Equal(t, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), stored.StartAt)
}

func TestReschedule_DeleteOldEventFailureStillMoves(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, appts := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)

	prov.deleteErr = &ProviderError{Kind: ProviderRetryable, StatusCode: 502, Err: assert.AnError}
	moved, err := b.RescheduleAppointment(context.Background(), "t1", appt.ID, "2026-03-03", "10:00")
	require.NoError(t, err)
	assert.Equal(t, "evt_2", moved.ExternalEventID)
	assert.Equal(t, 1, appts.scheduleUpdates)
}

func TestReschedule_CancelledAppointmentRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, _ := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)
	_, err = b.CancelAppointment(context.Background(), "t1", appt.ID, "changed plans")
	require.NoError(t, err)

	_, err = b.RescheduleAppointment(context.Background(), "t1", appt.ID, "2026-03-03", "10:00")
	assert.ErrorContains(t, err, "cancelled")
}

func TestRescheduleByAttendee_PicksNextUpcoming(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, _ := testBooking(t, prov, now)

	later, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-04", "11:00")
	require.NoError(t, err)
	sooner, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)

	moved, err := b.RescheduleByAttendee(context.Background(), "t1", "agent_1", "jo@example.com", "2026-03-03", "10:00")
	require.NoError(t, err)
	assert.Equal(t, sooner.ID, moved.ID, "the soonest scheduled appointment moves")
	assert.NotEqual(t, later.ID, moved.ID)
}

func TestCancelAppointment_DeletesEventAndMarksRow(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, appts := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)

	cancelled, err := b.CancelAppointment(context.Background(), "t1", appt.ID, "changed plans")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "changed plans", cancelled.CancellationReason)
	assert.Equal(t, []string{"evt_1"}, prov.deleted)

	stored, err := appts.AppointmentByID(context.Background(), "t1", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
}

func TestCancelAppointment_AlreadyCancelledIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, appts := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)
	_, err = b.CancelAppointment(context.Background(), "t1", appt.ID, "changed plans")
	require.NoError(t, err)

	again, err := b.CancelAppointment(context.Background(), "t1", appt.ID, "again")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)
	assert.Len(t, prov.deleted, 1, "no second provider delete")
	assert.Equal(t, 1, appts.statusUpdates)
}

func TestCancelAppointment_FreesTheSlot(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, _ := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)

	// slot is now taken
	_, err = b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "sam@example.com"}, "2026-03-02", "13:00")
	var unavail *SlotUnavailableError
	require.ErrorAs(t, err, &unavail)

	_, err = b.CancelAppointment(context.Background(), "t1", appt.ID, "")
	require.NoError(t, err)

	_, err = b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "sam@example.com"}, "2026-03-02", "13:00")
	assert.NoError(t, err)
}

func TestCompleteAppointment(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prov := &fakeProvider{}
	b, _ := testBooking(t, prov, now)

	appt, err := b.CreateAppointment(context.Background(), "t1", "agent_1", Attendee{Email: "jo@example.com"}, "2026-03-02", "13:00")
	require.NoError(t, err)

	done, err := b.CompleteAppointment(context.Background(), "t1", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Empty(t, prov.deleted, "completion leaves the event in place")

	_, err = b.CompleteAppointment(context.Background(), "t1", appt.ID)
	assert.ErrorContains(t, err, "completed")
}

func TestCancelByAttendee_NotFound(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	b, _ := testBooking(t, &fakeProvider{}, now)

	_, err := b.CancelByAttendee(context.Background(), "t1", "agent_1", "nobody@example.com", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
