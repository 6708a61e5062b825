package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"calendar-service/internal/calendar"
)

var ErrCredentialNotFound = errors.New("calendar credential not found")

const credentialColumns = `id, tenant_id, client_id, client_secret_enc, access_token_enc,
       refresh_token_enc, token_expiry, account_email, active, last_used_at, created_at, updated_at`

func (s *Store) scanCredential(row pgx.Row) (*calendar.CalendarCredential, error) {
	var c calendar.CalendarCredential
	var secretEnc, accessEnc string
	var refreshEnc *string
	if err := row.Scan(&c.ID, &c.TenantID, &c.ClientID, &secretEnc, &accessEnc,
		&refreshEnc, &c.TokenExpiry, &c.AccountEmail, &c.Active, &c.LastUsedAt,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if c.ClientSecret, err = s.cipher.Decrypt(secretEnc); err != nil {
		return nil, fmt.Errorf("decrypt client secret: %w", err)
	}
	if c.AccessToken, err = s.cipher.Decrypt(accessEnc); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if refreshEnc != nil && *refreshEnc != "" {
		if c.RefreshToken, err = s.cipher.Decrypt(*refreshEnc); err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}
	return &c, nil
}

func (s *Store) CredentialByID(ctx context.Context, id string) (*calendar.CalendarCredential, error) {
	q := `SELECT ` + credentialColumns + ` FROM calendar_credentials WHERE id=$1`
	cred, err := s.scanCredential(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	return cred, err
}

// ActiveCredentialByTenant returns the tenant's single active credential.
func (s *Store) ActiveCredentialByTenant(ctx context.Context, tenantID string) (*calendar.CalendarCredential, error) {
	q := `SELECT ` + credentialColumns + ` FROM calendar_credentials WHERE tenant_id=$1 AND active LIMIT 1`
	cred, err := s.scanCredential(s.db.QueryRow(ctx, q, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	return cred, err
}

// UpsertCredential replaces the tenant's credential on OAuth (re-)callback.
// An existing active row is overwritten in place, keeping its id so configs
// that reference it survive; otherwise a new row is inserted. Rows are never
// deleted. cred.ID is populated on return.
func (s *Store) UpsertCredential(ctx context.Context, cred *calendar.CalendarCredential) error {
	secretEnc, err := s.cipher.Encrypt(cred.ClientSecret)
	if err != nil {
		return fmt.Errorf("encrypt client secret: %w", err)
	}
	accessEnc, err := s.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	var refreshEnc *string
	if cred.RefreshToken != "" {
		enc, err := s.cipher.Encrypt(cred.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		refreshEnc = &enc
	}

	now := time.Now().UTC()

	var existingID string
	checkQ := `SELECT id FROM calendar_credentials WHERE tenant_id=$1 AND active LIMIT 1`
	err = s.db.QueryRow(ctx, checkQ, cred.TenantID).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if existingID != "" {
		q := `UPDATE calendar_credentials
		      SET client_id=$1, client_secret_enc=$2, access_token_enc=$3, refresh_token_enc=$4,
		          token_expiry=$5, account_email=$6, updated_at=$7
		      WHERE id=$8`
		if _, err := s.db.Exec(ctx, q, cred.ClientID, secretEnc, accessEnc, refreshEnc,
			cred.TokenExpiry.UTC(), cred.AccountEmail, now, existingID); err != nil {
			return err
		}
		cred.ID = existingID
		return nil
	}

	q := `INSERT INTO calendar_credentials
	      (id, tenant_id, client_id, client_secret_enc, access_token_enc, refresh_token_enc,
	       token_expiry, account_email, active, created_at, updated_at)
	      VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, true, $8, $8)
	      RETURNING id`
	return s.db.QueryRow(ctx, q, cred.TenantID, cred.ClientID, secretEnc, accessEnc, refreshEnc,
		cred.TokenExpiry.UTC(), cred.AccountEmail, now).Scan(&cred.ID)
}

// UpdateCredentialToken persists a refreshed access token (and rotated
// refresh token, when present).
func (s *Store) UpdateCredentialToken(ctx context.Context, id string, upd calendar.TokenUpdate) error {
	accessEnc, err := s.cipher.Encrypt(upd.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	now := time.Now().UTC()
	if upd.RefreshToken != "" {
		refreshEnc, err := s.cipher.Encrypt(upd.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		q := `UPDATE calendar_credentials
		      SET access_token_enc=$1, refresh_token_enc=$2, token_expiry=$3, updated_at=$4 WHERE id=$5`
		_, err = s.db.Exec(ctx, q, accessEnc, refreshEnc, upd.Expiry.UTC(), now, id)
		return err
	}
	q := `UPDATE calendar_credentials
	      SET access_token_enc=$1, token_expiry=$2, updated_at=$3 WHERE id=$4`
	_, err = s.db.Exec(ctx, q, accessEnc, upd.Expiry.UTC(), now, id)
	return err
}

func (s *Store) TouchCredentialUsed(ctx context.Context, id string) error {
	q := `UPDATE calendar_credentials SET last_used_at=now() WHERE id=$1`
	_, err := s.db.Exec(ctx, q, id)
	return err
}
