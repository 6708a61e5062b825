package calendar

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConfigured means the agent has no active calendar configuration.
	ErrNotConfigured = errors.New("no active calendar configuration for agent")

	// ErrNotFound means the appointment does not exist for this tenant.
	ErrNotFound = errors.New("appointment not found")
)

// AuthError means the stored credential cannot produce a valid access token.
// The tenant must re-authorize; retrying will not help.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calendar auth: %s: %v", e.Reason, e.Err)
	}
	return "calendar auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

type ProviderErrorKind string

const (
	// ProviderReauthorize covers 401/403 responses. The caller may attempt
	// one token refresh and retry before surfacing the error.
	ProviderReauthorize ProviderErrorKind = "reauthorize"
	// ProviderRetryable covers 5xx and transport failures.
	ProviderRetryable ProviderErrorKind = "retryable"
	// ProviderRateLimited covers 429 responses.
	ProviderRateLimited ProviderErrorKind = "rate_limited"
)

// ProviderError is a failure talking to the external calendar.
type ProviderError struct {
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar provider (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsReauthorize reports whether err is a ProviderError asking for new
// credentials.
func IsReauthorize(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Kind == ProviderReauthorize
}

// SlotUnavailableError means the requested slot is no longer free.
// Alternatives, when present, are nearby free slots on the same day.
type SlotUnavailableError struct {
	Start        time.Time
	End          time.Time
	Alternatives []Slot
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot %s is not available", e.Start.Format(time.RFC3339))
}
