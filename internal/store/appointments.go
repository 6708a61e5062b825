package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"calendar-service/internal/calendar"
)

const appointmentColumns = `id, tenant_id, agent_id, external_event_id, attendee_email, attendee_name,
       start_at_utc, end_at_utc, status, cancellation_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*calendar.Appointment, error) {
	var a calendar.Appointment
	var reason *string
	if err := row.Scan(&a.ID, &a.TenantID, &a.AgentID, &a.ExternalEventID, &a.AttendeeEmail,
		&a.AttendeeName, &a.StartAt, &a.EndAt, &a.Status, &reason, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if reason != nil {
		a.CancellationReason = *reason
	}
	return &a, nil
}

func (s *Store) InsertAppointment(ctx context.Context, a *calendar.Appointment) error {
	q := `INSERT INTO appointments
	      (id, tenant_id, agent_id, external_event_id, attendee_email, attendee_name,
	       start_at_utc, end_at_utc, status, created_at, updated_at)
	      VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	      RETURNING id, created_at, updated_at`
	return s.db.QueryRow(ctx, q, a.TenantID, a.AgentID, a.ExternalEventID, a.AttendeeEmail,
		a.AttendeeName, a.StartAt.UTC(), a.EndAt.UTC(), a.Status).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) AppointmentByID(ctx context.Context, tenantID, id string) (*calendar.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id=$1 AND id=$2`
	a, err := scanAppointment(s.db.QueryRow(ctx, q, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, calendar.ErrNotFound
	}
	return a, err
}

func (s *Store) UpcomingAppointmentByAttendee(ctx context.Context, tenantID, agentID, attendeeEmail string, after time.Time) (*calendar.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments
	      WHERE tenant_id=$1 AND agent_id=$2 AND LOWER(attendee_email)=LOWER($3)
	        AND status='scheduled' AND start_at_utc >= $4
	      ORDER BY start_at_utc LIMIT 1`
	a, err := scanAppointment(s.db.QueryRow(ctx, q, tenantID, agentID, attendeeEmail, after.UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, calendar.ErrNotFound
	}
	return a, err
}

func (s *Store) UpdateAppointmentSchedule(ctx context.Context, a *calendar.Appointment) error {
	q := `UPDATE appointments
	      SET start_at_utc=$1, end_at_utc=$2, external_event_id=$3, updated_at=now()
	      WHERE tenant_id=$4 AND id=$5`
	res, err := s.db.Exec(ctx, q, a.StartAt.UTC(), a.EndAt.UTC(), a.ExternalEventID, a.TenantID, a.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return calendar.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, tenantID, id string, status calendar.AppointmentStatus, reason string) error {
	var reasonVal *string
	if reason != "" {
		reasonVal = &reason
	}
	q := `UPDATE appointments SET status=$1, cancellation_reason=$2, updated_at=now()
	      WHERE tenant_id=$3 AND id=$4`
	res, err := s.db.Exec(ctx, q, status, reasonVal, tenantID, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return calendar.ErrNotFound
	}
	return nil
}

// ListAppointments returns the agent's appointments, optionally bounded to
// [from, to).
func (s *Store) ListAppointments(ctx context.Context, tenantID, agentID string, from, to time.Time, filtered bool) ([]calendar.Appointment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filtered {
		q := `SELECT ` + appointmentColumns + ` FROM appointments
		      WHERE tenant_id=$1 AND agent_id=$2 AND start_at_utc >= $3 AND start_at_utc < $4
		      ORDER BY start_at_utc`
		rows, err = s.db.Query(ctx, q, tenantID, agentID, from.UTC(), to.UTC())
	} else {
		q := `SELECT ` + appointmentColumns + ` FROM appointments
		      WHERE tenant_id=$1 AND agent_id=$2
		      ORDER BY start_at_utc`
		rows, err = s.db.Query(ctx, q, tenantID, agentID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
