package calendar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// busyFetchPad widens the busy-interval query window so events just outside
// the day's business hours still count against buffer rules.
const busyFetchPad = time.Hour

// fetchPad is the full widening for a config: the conflict predicate reaches
// cfg.Buffer() beyond each candidate, so the fetch window must too or edge
// events would be invisible to it.
func fetchPad(cfg *CalendarConfig) time.Duration {
	return busyFetchPad + cfg.Buffer()
}

// AvailabilityService answers "what's free" questions by chaining
// TokenVault -> Provider -> slot generation.
type AvailabilityService struct {
	configs  ConfigResolver
	creds    CredentialStore
	vault    *TokenVault
	provider Provider
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewAvailabilityService(configs ConfigResolver, creds CredentialStore, vault *TokenVault, provider Provider, log *zap.SugaredLogger) *AvailabilityService {
	return &AvailabilityService{
		configs:  configs,
		creds:    creds,
		vault:    vault,
		provider: provider,
		log:      log,
		now:      time.Now,
	}
}

// resolve loads the agent's active config and its credential.
func (s *AvailabilityService) resolve(ctx context.Context, tenantID, agentID string) (*CalendarConfig, *CalendarCredential, error) {
	cfg, err := s.configs.ActiveConfigByAgent(ctx, tenantID, agentID)
	if err != nil {
		return nil, nil, err
	}
	cred, err := s.creds.CredentialByID(ctx, cfg.CredentialID)
	if err != nil {
		return nil, nil, fmt.Errorf("load credential %s: %w", cfg.CredentialID, err)
	}
	return cfg, cred, nil
}

func (s *AvailabilityService) persistFor(cred *CalendarCredential) PersistTokenFunc {
	return func(ctx context.Context, upd TokenUpdate) error {
		return s.creds.UpdateCredentialToken(ctx, cred.ID, upd)
	}
}

// accessToken ensures a valid token for cred, refreshing through the vault
// when stale.
func (s *AvailabilityService) accessToken(ctx context.Context, cred *CalendarCredential) (string, error) {
	return s.vault.EnsureValidAccessToken(ctx, cred, s.persistFor(cred))
}

// busyWindow fetches busy intervals for cred between from and to. On a
// reauthorize signal from the provider it forces one token refresh and
// retries exactly once. Last-used bookkeeping is best effort.
func (s *AvailabilityService) busyWindow(ctx context.Context, cred *CalendarCredential, from, to time.Time) ([]BusyInterval, error) {
	token, err := s.accessToken(ctx, cred)
	if err != nil {
		return nil, err
	}
	busy, err := s.provider.BusyIntervals(ctx, token, DefaultCalendarID, from, to)
	if err != nil {
		if !IsReauthorize(err) {
			return nil, err
		}
		token, rerr := s.vault.RefreshAccessToken(ctx, cred, s.persistFor(cred))
		if rerr != nil {
			return nil, rerr
		}
		busy, err = s.provider.BusyIntervals(ctx, token, DefaultCalendarID, from, to)
		if err != nil {
			return nil, err
		}
	}
	if terr := s.creds.TouchCredentialUsed(ctx, cred.ID); terr != nil {
		s.log.Warnw("failed to update credential last_used_at", "credential_id", cred.ID, "error", terr)
	}
	return busy, nil
}

// slotsForDay runs one busy fetch plus one slot generation for date, using
// cfg's timezone and rules. Closed days skip the provider call.
func (s *AvailabilityService) slotsForDay(ctx context.Context, cfg *CalendarConfig, cred *CalendarCredential, loc *time.Location, date string) ([]Slot, error) {
	winStart, winEnd, open, err := dayWindow(cfg.BusinessHours, date, loc)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, nil
	}
	pad := fetchPad(cfg)
	busy, err := s.busyWindow(ctx, cred, winStart.Add(-pad), winEnd.Add(pad))
	if err != nil {
		return nil, err
	}
	return GenerateSlots(cfg.BusinessHours, cfg.SlotDuration(), cfg.Buffer(), busy, date, loc, s.now())
}

// AvailableSlots lists the flagged candidate slots for one date.
func (s *AvailabilityService) AvailableSlots(ctx context.Context, tenantID, agentID, date string) ([]Slot, error) {
	cfg, cred, err := s.resolve(ctx, tenantID, agentID)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return s.slotsForDay(ctx, cfg, cred, loc, date)
}

// AvailableSlotsRange maps each date in [start, start+days) to its slots.
// Every day is an independent provider query so each reflects the moment it
// was fetched.
func (s *AvailabilityService) AvailableSlotsRange(ctx context.Context, tenantID, agentID, start string, days int) (map[string][]Slot, error) {
	cfg, cred, err := s.resolve(ctx, tenantID, agentID)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	first, err := time.ParseInLocation(DateLayout, start, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	if days <= 0 {
		days = 1
	}
	if days > cfg.LookaheadDays {
		days = cfg.LookaheadDays
	}

	out := make(map[string][]Slot, days)
	for i := 0; i < days; i++ {
		date := first.AddDate(0, 0, i).Format(DateLayout)
		slots, err := s.slotsForDay(ctx, cfg, cred, loc, date)
		if err != nil {
			return nil, err
		}
		out[date] = slots
	}
	return out, nil
}

// NextAvailableSlot scans forward day by day from fromDate (today when
// empty) up to the config's lookahead and returns the first available slot.
// A nil slot with nil error means nothing is free inside the lookahead.
func (s *AvailabilityService) NextAvailableSlot(ctx context.Context, tenantID, agentID, fromDate string) (*Slot, error) {
	cfg, cred, err := s.resolve(ctx, tenantID, agentID)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	start := s.now().In(loc)
	if fromDate != "" {
		start, err = time.ParseInLocation(DateLayout, fromDate, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid from date %q: %w", fromDate, err)
		}
	}

	for i := 0; i < cfg.LookaheadDays; i++ {
		date := start.AddDate(0, 0, i).Format(DateLayout)
		slots, err := s.slotsForDay(ctx, cfg, cred, loc, date)
		if err != nil {
			return nil, err
		}
		if slot, ok := FirstAvailable(slots); ok {
			return &slot, nil
		}
	}
	return nil, nil
}

// CheckSlot tests one exact candidate with the same predicate the listings
// use.
func (s *AvailabilityService) CheckSlot(ctx context.Context, tenantID, agentID, date, timeStr string) (bool, error) {
	cfg, cred, err := s.resolve(ctx, tenantID, agentID)
	if err != nil {
		return false, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return false, err
	}
	winStart, winEnd, open, err := dayWindow(cfg.BusinessHours, date, loc)
	if err != nil {
		return false, err
	}
	if !open {
		return false, nil
	}
	pad := fetchPad(cfg)
	busy, err := s.busyWindow(ctx, cred, winStart.Add(-pad), winEnd.Add(pad))
	if err != nil {
		return false, err
	}
	return CheckSlotAvailability(cfg.BusinessHours, cfg.SlotDuration(), cfg.Buffer(), busy, date, timeStr, loc, s.now())
}
