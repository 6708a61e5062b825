package calendar

import (
	"context"
	"time"
)

// The engine sees persistence only through these narrow interfaces; the
// store package implements them over Postgres with tokens encrypted at the
// repository boundary, so everything in this package handles plaintext.

// ConfigResolver looks up the active configuration for an agent.
// Implementations return ErrNotConfigured when none exists.
type ConfigResolver interface {
	ActiveConfigByAgent(ctx context.Context, tenantID, agentID string) (*CalendarConfig, error)
}

// CredentialStore reads and mutates stored OAuth credentials.
type CredentialStore interface {
	CredentialByID(ctx context.Context, id string) (*CalendarCredential, error)
	UpdateCredentialToken(ctx context.Context, id string, upd TokenUpdate) error
	TouchCredentialUsed(ctx context.Context, id string) error
}

// AppointmentStore persists booked slots.
type AppointmentStore interface {
	InsertAppointment(ctx context.Context, a *Appointment) error
	AppointmentByID(ctx context.Context, tenantID, id string) (*Appointment, error)
	// UpcomingAppointmentByAttendee finds the next scheduled appointment for
	// an attendee with this agent, or ErrNotFound.
	UpcomingAppointmentByAttendee(ctx context.Context, tenantID, agentID, attendeeEmail string, after time.Time) (*Appointment, error)
	UpdateAppointmentSchedule(ctx context.Context, a *Appointment) error
	UpdateAppointmentStatus(ctx context.Context, tenantID, id string, status AppointmentStatus, reason string) error
}

// ReconcileOps are the three account-switch passes, run inside one
// transaction. Each returns the number of rows it touched.
type ReconcileOps interface {
	BackfillCreatedWith(ctx context.Context, credentialID, account string) (int, error)
	DeactivateConfigs(ctx context.Context, credentialID string) (int, error)
	ReactivateConfigs(ctx context.Context, credentialID, account string) (int, error)
}

// ReconcileStore runs fn within a single transaction.
type ReconcileStore interface {
	InTx(ctx context.Context, fn func(ops ReconcileOps) error) error
}
