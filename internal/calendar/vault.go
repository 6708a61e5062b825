package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// tokenExpiryMargin is how long before actual expiry a stored access token is
// already treated as stale.
const tokenExpiryMargin = 60 * time.Second

// TokenUpdate carries the result of a refresh for persistence. RefreshToken
// is empty unless the provider rotated it.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// PersistTokenFunc writes a refreshed token back to storage. The vault never
// touches the storage layer directly.
type PersistTokenFunc func(ctx context.Context, upd TokenUpdate) error

// TokenVault hands out currently-valid access tokens for stored credentials,
// refreshing against the provider's token endpoint when needed.
type TokenVault struct {
	// Endpoint is the OAuth token endpoint. Defaults to Google's; tests point
	// it at a local server.
	Endpoint oauth2.Endpoint
	// Timeout bounds the refresh exchange.
	Timeout time.Duration
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func NewTokenVault() *TokenVault {
	return &TokenVault{
		Endpoint: google.Endpoint,
		Timeout:  15 * time.Second,
		Now:      time.Now,
	}
}

// EnsureValidAccessToken returns the stored access token when it is still
// comfortably inside its expiry, otherwise refreshes and persists.
func (v *TokenVault) EnsureValidAccessToken(ctx context.Context, cred *CalendarCredential, persist PersistTokenFunc) (string, error) {
	if cred.AccessToken != "" && cred.TokenExpiry.After(v.Now().Add(tokenExpiryMargin)) {
		return cred.AccessToken, nil
	}
	return v.RefreshAccessToken(ctx, cred, persist)
}

// RefreshAccessToken performs the refresh-token exchange unconditionally,
// persists the result through persist, and updates cred in place. Every
// failure mode here means the tenant has to re-authorize, so it surfaces as
// AuthError; callers must not retry it in a loop.
func (v *TokenVault) RefreshAccessToken(ctx context.Context, cred *CalendarCredential, persist PersistTokenFunc) (string, error) {
	if cred.RefreshToken == "" {
		return "", &AuthError{Reason: "no refresh token stored"}
	}

	timeout := v.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conf := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     v.Endpoint,
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return "", &AuthError{Reason: "refresh token exchange failed", Err: err}
	}

	upd := TokenUpdate{AccessToken: tok.AccessToken, Expiry: tok.Expiry.UTC()}
	if tok.RefreshToken != "" && tok.RefreshToken != cred.RefreshToken {
		upd.RefreshToken = tok.RefreshToken
	}
	if persist != nil {
		if err := persist(ctx, upd); err != nil {
			return "", fmt.Errorf("persist refreshed token: %w", err)
		}
	}

	cred.AccessToken = tok.AccessToken
	cred.TokenExpiry = tok.Expiry.UTC()
	if upd.RefreshToken != "" {
		cred.RefreshToken = upd.RefreshToken
	}
	return tok.AccessToken, nil
}
