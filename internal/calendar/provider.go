package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultCalendarID is the authorized account's own calendar.
const DefaultCalendarID = "primary"

// EventInput describes an event to create on the external calendar.
type EventInput struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	AttendeeName  string
}

// Provider is the strategy interface for one external calendar backend.
// Implementations are selected once at service construction, never by
// runtime string comparison in handlers.
type Provider interface {
	// BusyIntervals lists blocked ranges between from and to, UTC-normalized
	// and concatenated across result pages.
	BusyIntervals(ctx context.Context, accessToken, calendarID string, from, to time.Time) ([]BusyInterval, error)
	// CreateEvent returns the new external event id.
	CreateEvent(ctx context.Context, accessToken, calendarID string, ev EventInput) (string, error)
	// DeleteEvent is idempotent: deleting an already-gone event succeeds.
	DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error
	// AccountEmail reports which account the token is authorized for.
	AccountEmail(ctx context.Context, accessToken string) (string, error)
}

// GoogleProvider talks to the Google Calendar v3 API.
type GoogleProvider struct {
	// Timeout bounds each API call. Defaults to 15s.
	Timeout time.Duration
	// Options are extra client options, used by tests to point at a fake
	// server.
	Options []option.ClientOption
}

func NewGoogleProvider() *GoogleProvider {
	return &GoogleProvider{Timeout: 15 * time.Second}
}

func (g *GoogleProvider) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.Options...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, &ProviderError{Kind: ProviderRetryable, Err: fmt.Errorf("create calendar service: %w", err)}
	}
	return srv, nil
}

func (g *GoogleProvider) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (g *GoogleProvider) BusyIntervals(ctx context.Context, accessToken, calendarID string, from, to time.Time) ([]BusyInterval, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var busy []BusyInterval
	pageToken := ""
	for {
		call := srv.Events.List(calendarID).
			SingleEvents(true).
			OrderBy("startTime").
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			MaxResults(250)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Context(ctx).Do()
		if err != nil {
			return nil, mapGoogleError("list events", err)
		}
		for _, item := range events.Items {
			if item.Status == "cancelled" || item.Transparency == "transparent" {
				continue
			}
			start, end, ok := eventBounds(item)
			if !ok {
				continue
			}
			busy = append(busy, BusyInterval{Start: start, End: end, EventID: item.Id})
		}
		if events.NextPageToken == "" {
			return busy, nil
		}
		pageToken = events.NextPageToken
	}
}

// eventBounds extracts UTC start/end, handling both timed (DateTime) and
// all-day (Date) events.
func eventBounds(item *calendar.Event) (time.Time, time.Time, bool) {
	if item.Start == nil || item.End == nil {
		return time.Time{}, time.Time{}, false
	}
	start, ok := parseEventTime(item.Start)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := parseEventTime(item.End)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseEventTime(t *calendar.EventDateTime) (time.Time, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	}
	if t.Date != "" {
		parsed, err := time.Parse(DateLayout, t.Date)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

func (g *GoogleProvider) CreateEvent(ctx context.Context, accessToken, calendarID string, ev EventInput) (string, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	event := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	if ev.AttendeeEmail != "" {
		event.Attendees = []*calendar.EventAttendee{
			{Email: ev.AttendeeEmail, DisplayName: ev.AttendeeName},
		}
	}

	created, err := srv.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", mapGoogleError("insert event", err)
	}
	return created.Id, nil
}

func (g *GoogleProvider) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := srv.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		// already deleted or cancelled on the provider side counts as done
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
			return nil
		}
		return mapGoogleError("delete event", err)
	}
	return nil
}

func (g *GoogleProvider) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	// the primary calendar's id is the account email
	cal, err := srv.Calendars.Get(DefaultCalendarID).Context(ctx).Do()
	if err != nil {
		return "", mapGoogleError("get primary calendar", err)
	}
	return cal.Id, nil
}

func mapGoogleError(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := ProviderRetryable
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			kind = ProviderReauthorize
		case gerr.Code == http.StatusTooManyRequests:
			kind = ProviderRateLimited
		}
		return &ProviderError{Kind: kind, StatusCode: gerr.Code, Err: wrapped}
	}
	return &ProviderError{Kind: ProviderRetryable, Err: wrapped}
}
