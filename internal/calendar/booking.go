package calendar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// maxAlternatives caps the suggestions attached to a SlotUnavailableError.
const maxAlternatives = 3

// BookingService creates, reschedules and cancels appointments. Ordering is
// always validate, then mutate the external calendar, then mutate the local
// row, so a provider failure never leaves local state pointing at an event
// that does not exist.
type BookingService struct {
	avail *AvailabilityService
	appts AppointmentStore
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewBookingService(avail *AvailabilityService, appts AppointmentStore, log *zap.SugaredLogger) *BookingService {
	return &BookingService{
		avail: avail,
		appts: appts,
		log:   log,
		now:   time.Now,
	}
}

// slotBounds parses the local date+time for cfg's timezone and returns the
// candidate bounds.
func slotBounds(cfg *CalendarConfig, loc *time.Location, date, timeStr string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid slot time %q %q: %w", date, timeStr, err)
	}
	return start, start.Add(cfg.SlotDuration()), nil
}

// CreateAppointment books the requested slot: re-validates availability
// against live busy data, creates the external event, then inserts the local
// record.
func (b *BookingService) CreateAppointment(ctx context.Context, tenantID, agentID string, att Attendee, date, timeStr string) (*Appointment, error) {
	cfg, cred, err := b.avail.resolve(ctx, tenantID, agentID)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	start, end, err := slotBounds(cfg, loc, date, timeStr)
	if err != nil {
		return nil, err
	}

	pad := fetchPad(cfg)
	busy, err := b.avail.busyWindow(ctx, cred, start.Add(-pad), end.Add(pad))
	if err != nil {
		return nil, err
	}
	free, err := CheckSlotAvailability(cfg.BusinessHours, cfg.SlotDuration(), cfg.Buffer(), busy, date, timeStr, loc, b.now())
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, &SlotUnavailableError{Start: start.UTC(), End: end.UTC()}
	}

	token, err := b.avail.accessToken(ctx, cred)
	if err != nil {
		return nil, err
	}
	eventID, err := b.avail.provider.CreateEvent(ctx, token, DefaultCalendarID, EventInput{
		Summary:       fmt.Sprintf("Appointment: %s", displayName(att)),
		Description:   fmt.Sprintf("Booked via agent %s", agentID),
		Start:         start,
		End:           end,
		AttendeeEmail: att.Email,
		AttendeeName:  att.Name,
	})
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		TenantID:        tenantID,
		AgentID:         agentID,
		ExternalEventID: eventID,
		AttendeeEmail:   att.Email,
		AttendeeName:    att.Name,
		StartAt:         start.UTC(),
		EndAt:           end.UTC(),
		Status:          StatusScheduled,
	}
	if err := b.appts.InsertAppointment(ctx, appt); err != nil {
		// the external event exists but has no local record; the read path
		// treats the provider as ground truth for busy, so nothing is
		// double-bookable, but flag it loudly
		b.log.Errorw("appointment insert failed after external event creation",
			"tenant_id", tenantID, "agent_id", agentID, "external_event_id", eventID, "error", err)
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return appt, nil
}

// RescheduleAppointment moves an appointment to a new slot. The new slot is
// re-validated with the appointment's own event excluded from the conflict
// set, so rebooking the same time succeeds. On conflict the error carries
// nearby alternatives. The stored row is untouched unless everything before
// it succeeded.
func (b *BookingService) RescheduleAppointment(ctx context.Context, tenantID, appointmentID, newDate, newTime string) (*Appointment, error) {
	appt, err := b.appts.AppointmentByID(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}
	return b.reschedule(ctx, appt, newDate, newTime)
}

// RescheduleByAttendee finds the attendee's next scheduled appointment with
// the agent and moves it.
func (b *BookingService) RescheduleByAttendee(ctx context.Context, tenantID, agentID, attendeeEmail, newDate, newTime string) (*Appointment, error) {
	appt, err := b.appts.UpcomingAppointmentByAttendee(ctx, tenantID, agentID, attendeeEmail, b.now())
	if err != nil {
		return nil, err
	}
	return b.reschedule(ctx, appt, newDate, newTime)
}

func (b *BookingService) reschedule(ctx context.Context, appt *Appointment, newDate, newTime string) (*Appointment, error) {
	if appt.Status != StatusScheduled {
		return nil, fmt.Errorf("appointment %s is %s and cannot be rescheduled", appt.ID, appt.Status)
	}
	cfg, cred, err := b.avail.resolve(ctx, appt.TenantID, appt.AgentID)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	start, end, err := slotBounds(cfg, loc, newDate, newTime)
	if err != nil {
		return nil, err
	}

	pad := fetchPad(cfg)
	busy, err := b.avail.busyWindow(ctx, cred, start.Add(-pad), end.Add(pad))
	if err != nil {
		return nil, err
	}
	busy = withoutEvent(busy, appt.ExternalEventID)
	free, err := CheckSlotAvailability(cfg.BusinessHours, cfg.SlotDuration(), cfg.Buffer(), busy, newDate, newTime, loc, b.now())
	if err != nil {
		return nil, err
	}
	if !free {
		alts, aerr := b.alternatives(ctx, cfg, cred, loc, newDate, appt.ExternalEventID, start)
		if aerr != nil {
			b.log.Warnw("failed to compute alternative slots", "appointment_id", appt.ID, "error", aerr)
		}
		return nil, &SlotUnavailableError{Start: start.UTC(), End: end.UTC(), Alternatives: alts}
	}

	token, err := b.avail.accessToken(ctx, cred)
	if err != nil {
		return nil, err
	}
	newEventID, err := b.avail.provider.CreateEvent(ctx, token, DefaultCalendarID, EventInput{
		Summary:       fmt.Sprintf("Appointment: %s", displayName(Attendee{Email: appt.AttendeeEmail, Name: appt.AttendeeName})),
		Description:   fmt.Sprintf("Rescheduled via agent %s", appt.AgentID),
		Start:         start,
		End:           end,
		AttendeeEmail: appt.AttendeeEmail,
		AttendeeName:  appt.AttendeeName,
	})
	if err != nil {
		return nil, err
	}
	if err := b.avail.provider.DeleteEvent(ctx, token, DefaultCalendarID, appt.ExternalEventID); err != nil {
		// the stale event stays on the calendar until removed by hand; the
		// booking itself already moved
		b.log.Warnw("failed to remove superseded event",
			"appointment_id", appt.ID, "external_event_id", appt.ExternalEventID, "error", err)
	}

	appt.StartAt = start.UTC()
	appt.EndAt = end.UTC()
	appt.ExternalEventID = newEventID
	if err := b.appts.UpdateAppointmentSchedule(ctx, appt); err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return appt, nil
}

// alternatives suggests free slots near want on the same day, with the
// appointment's own event excluded.
func (b *BookingService) alternatives(ctx context.Context, cfg *CalendarConfig, cred *CalendarCredential, loc *time.Location, date, excludeEventID string, want time.Time) ([]Slot, error) {
	winStart, winEnd, open, err := dayWindow(cfg.BusinessHours, date, loc)
	if err != nil || !open {
		return nil, err
	}
	pad := fetchPad(cfg)
	busy, err := b.avail.busyWindow(ctx, cred, winStart.Add(-pad), winEnd.Add(pad))
	if err != nil {
		return nil, err
	}
	busy = withoutEvent(busy, excludeEventID)
	slots, err := GenerateSlots(cfg.BusinessHours, cfg.SlotDuration(), cfg.Buffer(), busy, date, loc, b.now())
	if err != nil {
		return nil, err
	}
	return NearestAvailable(slots, want, maxAlternatives), nil
}

// CancelAppointment cancels the external event and marks the local record
// cancelled. Cancelling an already-cancelled appointment is a no-op success.
func (b *BookingService) CancelAppointment(ctx context.Context, tenantID, appointmentID, reason string) (*Appointment, error) {
	appt, err := b.appts.AppointmentByID(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}
	return b.cancel(ctx, appt, reason)
}

// CancelByAttendee cancels the attendee's next scheduled appointment with
// the agent.
func (b *BookingService) CancelByAttendee(ctx context.Context, tenantID, agentID, attendeeEmail, reason string) (*Appointment, error) {
	appt, err := b.appts.UpcomingAppointmentByAttendee(ctx, tenantID, agentID, attendeeEmail, b.now())
	if err != nil {
		return nil, err
	}
	return b.cancel(ctx, appt, reason)
}

func (b *BookingService) cancel(ctx context.Context, appt *Appointment, reason string) (*Appointment, error) {
	if appt.Status == StatusCancelled {
		return appt, nil
	}
	_, cred, err := b.avail.resolve(ctx, appt.TenantID, appt.AgentID)
	if err != nil {
		return nil, err
	}
	token, err := b.avail.accessToken(ctx, cred)
	if err != nil {
		return nil, err
	}
	if err := b.avail.provider.DeleteEvent(ctx, token, DefaultCalendarID, appt.ExternalEventID); err != nil {
		return nil, err
	}
	if err := b.appts.UpdateAppointmentStatus(ctx, appt.TenantID, appt.ID, StatusCancelled, reason); err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	appt.Status = StatusCancelled
	appt.CancellationReason = reason
	return appt, nil
}

// CompleteAppointment marks a scheduled appointment completed. Terminal; the
// external event is left in place.
func (b *BookingService) CompleteAppointment(ctx context.Context, tenantID, appointmentID string) (*Appointment, error) {
	appt, err := b.appts.AppointmentByID(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled {
		return nil, fmt.Errorf("appointment %s is %s and cannot be completed", appt.ID, appt.Status)
	}
	if err := b.appts.UpdateAppointmentStatus(ctx, tenantID, appointmentID, StatusCompleted, ""); err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	appt.Status = StatusCompleted
	return appt, nil
}

func withoutEvent(busy []BusyInterval, eventID string) []BusyInterval {
	if eventID == "" {
		return busy
	}
	out := busy[:0:0]
	for _, b := range busy {
		if b.EventID != eventID {
			out = append(out, b)
		}
	}
	return out
}

func displayName(att Attendee) string {
	if att.Name != "" {
		return att.Name
	}
	return att.Email
}
