package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// In-memory fakes for the repo and provider interfaces.

type fakeConfigs struct {
	cfg *CalendarConfig
}

func (f *fakeConfigs) ActiveConfigByAgent(ctx context.Context, tenantID, agentID string) (*CalendarConfig, error) {
	if f.cfg == nil || f.cfg.TenantID != tenantID || f.cfg.AgentID != agentID {
		return nil, ErrNotConfigured
	}
	cp := *f.cfg
	return &cp, nil
}

type fakeCreds struct {
	cred      *CalendarCredential
	updates   []TokenUpdate
	touched   int
	touchErr  error
	updateErr error
}

func (f *fakeCreds) CredentialByID(ctx context.Context, id string) (*CalendarCredential, error) {
	if f.cred == nil || f.cred.ID != id {
		return nil, fmt.Errorf("credential %s not found", id)
	}
	cp := *f.cred
	return &cp, nil
}

func (f *fakeCreds) UpdateCredentialToken(ctx context.Context, id string, upd TokenUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, upd)
	f.cred.AccessToken = upd.AccessToken
	f.cred.TokenExpiry = upd.Expiry
	if upd.RefreshToken != "" {
		f.cred.RefreshToken = upd.RefreshToken
	}
	return nil
}

func (f *fakeCreds) TouchCredentialUsed(ctx context.Context, id string) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched++
	return nil
}

type fakeProvider struct {
	busy      []BusyInterval
	busyErrs  []error // popped per BusyIntervals call; nil entry means success
	listCalls int

	created    []EventInput
	createErr  error
	nextEvent  int
	deleted    []string
	deleteErr  error
	account    string
	accountErr error
}

func (f *fakeProvider) BusyIntervals(ctx context.Context, accessToken, calendarID string, from, to time.Time) ([]BusyInterval, error) {
	f.listCalls++
	if len(f.busyErrs) > 0 {
		err := f.busyErrs[0]
		f.busyErrs = f.busyErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	var out []BusyInterval
	for _, b := range f.busy {
		if b.End.After(from) && b.Start.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeProvider) CreateEvent(ctx context.Context, accessToken, calendarID string, ev EventInput) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextEvent++
	id := fmt.Sprintf("evt_%d", f.nextEvent)
	f.created = append(f.created, ev)
	f.busy = append(f.busy, BusyInterval{Start: ev.Start.UTC(), End: ev.End.UTC(), EventID: id})
	return id, nil
}

func (f *fakeProvider) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, eventID)
	kept := f.busy[:0]
	for _, b := range f.busy {
		if b.EventID != eventID {
			kept = append(kept, b)
		}
	}
	f.busy = kept
	return nil
}

func (f *fakeProvider) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	if f.accountErr != nil {
		return "", f.accountErr
	}
	return f.account, nil
}

type fakeAppts struct {
	byID map[string]*Appointment

	scheduleUpdates int
	statusUpdates   int
	insertErr       error
}

func newFakeAppts() *fakeAppts {
	return &fakeAppts{byID: map[string]*Appointment{}}
}

func (f *fakeAppts) InsertAppointment(ctx context.Context, a *Appointment) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	a.ID = fmt.Sprintf("appt_%d", len(f.byID)+1)
	cp := *a
	f.byID[a.ID] = &cp
	return nil
}

func (f *fakeAppts) AppointmentByID(ctx context.Context, tenantID, id string) (*Appointment, error) {
	a, ok := f.byID[id]
	if !ok || a.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppts) UpcomingAppointmentByAttendee(ctx context.Context, tenantID, agentID, attendeeEmail string, after time.Time) (*Appointment, error) {
	var best *Appointment
	for _, a := range f.byID {
		if a.TenantID != tenantID || a.AgentID != agentID || a.AttendeeEmail != attendeeEmail {
			continue
		}
		if a.Status != StatusScheduled || a.StartAt.Before(after) {
			continue
		}
		if best == nil || a.StartAt.Before(best.StartAt) {
			best = a
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeAppts) UpdateAppointmentSchedule(ctx context.Context, a *Appointment) error {
	stored, ok := f.byID[a.ID]
	if !ok {
		return ErrNotFound
	}
	f.scheduleUpdates++
	stored.StartAt = a.StartAt
	stored.EndAt = a.EndAt
	stored.ExternalEventID = a.ExternalEventID
	return nil
}

func (f *fakeAppts) UpdateAppointmentStatus(ctx context.Context, tenantID, id string, status AppointmentStatus, reason string) error {
	stored, ok := f.byID[id]
	if !ok || stored.TenantID != tenantID {
		return ErrNotFound
	}
	f.statusUpdates++
	stored.Status = status
	if reason != "" {
		stored.CancellationReason = reason
	}
	return nil
}

type fakeReconcileStore struct {
	configs []*CalendarConfig
	txCount int
	txErr   error
}

func (f *fakeReconcileStore) InTx(ctx context.Context, fn func(ops ReconcileOps) error) error {
	f.txCount++
	if f.txErr != nil {
		return f.txErr
	}
	return fn(&fakeReconcileOps{store: f})
}

type fakeReconcileOps struct {
	store *fakeReconcileStore
}

func (o *fakeReconcileOps) BackfillCreatedWith(ctx context.Context, credentialID, account string) (int, error) {
	n := 0
	for _, c := range o.store.configs {
		if c.CredentialID == credentialID && c.CreatedWithAccount == "" {
			c.CreatedWithAccount = account
			n++
		}
	}
	return n, nil
}

func (o *fakeReconcileOps) DeactivateConfigs(ctx context.Context, credentialID string) (int, error) {
	n := 0
	for _, c := range o.store.configs {
		if c.CredentialID == credentialID && c.Active {
			c.Active = false
			n++
		}
	}
	return n, nil
}

func (o *fakeReconcileOps) ReactivateConfigs(ctx context.Context, credentialID, account string) (int, error) {
	n := 0
	for _, c := range o.store.configs {
		if c.CredentialID == credentialID && !c.Active && strings.EqualFold(c.CreatedWithAccount, account) {
			c.Active = true
			n++
		}
	}
	return n, nil
}
