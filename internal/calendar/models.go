package calendar

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// CalendarCredential is the OAuth grant for one tenant's external calendar
// account. Token fields are plaintext here; the store encrypts them at rest.
type CalendarCredential struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"-"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  time.Time  `json:"token_expiry"`
	AccountEmail string     `json:"account_email"`
	Active       bool       `json:"active"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at,omitempty"`
}

// DayWindow is the bookable window for one weekday, "15:04" local times.
type DayWindow struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed,omitempty"`
}

// BusinessHours maps lowercase weekday names ("monday".."sunday") to windows.
// A missing day counts as closed.
type BusinessHours map[string]DayWindow

func (h BusinessHours) Window(d time.Weekday) (DayWindow, bool) {
	w, ok := h[strings.ToLower(d.String())]
	if !ok || w.Closed {
		return DayWindow{}, false
	}
	return w, true
}

// Validate checks every configured window parses and opens before it closes.
func (h BusinessHours) Validate() error {
	for day, w := range h {
		if _, ok := weekdayNames[day]; !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}
		if w.Closed {
			continue
		}
		open, err := parseHHMM(w.Open)
		if err != nil {
			return fmt.Errorf("%s open: %w", day, err)
		}
		close, err := parseHHMM(w.Close)
		if err != nil {
			return fmt.Errorf("%s close: %w", day, err)
		}
		if close <= open {
			return fmt.Errorf("%s: close %s must be after open %s", day, w.Close, w.Open)
		}
	}
	return nil
}

var weekdayNames = map[string]struct{}{
	"sunday": {}, "monday": {}, "tuesday": {}, "wednesday": {},
	"thursday": {}, "friday": {}, "saturday": {},
}

// CalendarConfig is an agent's booking configuration, tied to the tenant
// credential that was active when it was created.
type CalendarConfig struct {
	ID                 string        `json:"id"`
	TenantID           string        `json:"tenant_id"`
	AgentID            string        `json:"agent_id"`
	CredentialID       string        `json:"credential_id"`
	BusinessHours      BusinessHours `json:"business_hours"`
	SlotDurationMins   int           `json:"slot_duration_minutes"`
	BufferMins         int           `json:"buffer_minutes"`
	Timezone           string        `json:"timezone"`
	LookaheadDays      int           `json:"lookahead_days"`
	Active             bool          `json:"active"`
	CreatedWithAccount string        `json:"created_with_account,omitempty"`
	CreatedAt          time.Time     `json:"created_at,omitempty"`
	UpdatedAt          time.Time     `json:"updated_at,omitempty"`
}

func (c *CalendarConfig) SlotDuration() time.Duration {
	return time.Duration(c.SlotDurationMins) * time.Minute
}

func (c *CalendarConfig) Buffer() time.Duration {
	return time.Duration(c.BufferMins) * time.Minute
}

func (c *CalendarConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *CalendarConfig) Validate() error {
	if c.SlotDurationMins <= 0 {
		return fmt.Errorf("slot_duration_minutes must be positive")
	}
	if c.BufferMins < 0 {
		return fmt.Errorf("buffer_minutes must not be negative")
	}
	if c.LookaheadDays <= 0 {
		return fmt.Errorf("lookahead_days must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if len(c.BusinessHours) == 0 {
		return fmt.Errorf("business_hours required")
	}
	return c.BusinessHours.Validate()
}

// BusyInterval is one blocked range on the external calendar, UTC. Fetched
// per request, never persisted.
type BusyInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	EventID string    `json:"event_id,omitempty"`
}

// Slot is a candidate bookable range, UTC.
type Slot struct {
	Start     time.Time `json:"start_utc"`
	End       time.Time `json:"end_utc"`
	Available bool      `json:"available"`
}

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is the persisted record of a booked slot. external_event_id is
// unique per tenant.
type Appointment struct {
	ID                 string            `json:"id"`
	TenantID           string            `json:"tenant_id"`
	AgentID            string            `json:"agent_id"`
	ExternalEventID    string            `json:"external_event_id"`
	AttendeeEmail      string            `json:"attendee_email"`
	AttendeeName       string            `json:"attendee_name,omitempty"`
	StartAt            time.Time         `json:"start_at_utc"`
	EndAt              time.Time         `json:"end_at_utc"`
	Status             AppointmentStatus `json:"status"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at,omitempty"`
	UpdatedAt          time.Time         `json:"updated_at,omitempty"`
}

// Attendee identifies who a booking is for.
type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
