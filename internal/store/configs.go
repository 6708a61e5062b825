package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"calendar-service/internal/calendar"
)

const configColumns = `id, tenant_id, agent_id, credential_id, business_hours, slot_duration_minutes,
       buffer_minutes, timezone, lookahead_days, active, created_with_account, created_at, updated_at`

func scanConfig(row pgx.Row) (*calendar.CalendarConfig, error) {
	var c calendar.CalendarConfig
	var hoursJSON []byte
	var createdWith *string
	if err := row.Scan(&c.ID, &c.TenantID, &c.AgentID, &c.CredentialID, &hoursJSON,
		&c.SlotDurationMins, &c.BufferMins, &c.Timezone, &c.LookaheadDays, &c.Active,
		&createdWith, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(hoursJSON, &c.BusinessHours); err != nil {
		return nil, fmt.Errorf("decode business hours: %w", err)
	}
	if createdWith != nil {
		c.CreatedWithAccount = *createdWith
	}
	return &c, nil
}

func (s *Store) ActiveConfigByAgent(ctx context.Context, tenantID, agentID string) (*calendar.CalendarConfig, error) {
	q := `SELECT ` + configColumns + ` FROM calendar_configs
	      WHERE tenant_id=$1 AND agent_id=$2 AND active LIMIT 1`
	cfg, err := scanConfig(s.db.QueryRow(ctx, q, tenantID, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, calendar.ErrNotConfigured
	}
	return cfg, err
}

// InsertConfig creates a new active config for the agent, deactivating any
// current one in the same transaction so exactly one stays active.
func (s *Store) InsertConfig(ctx context.Context, cfg *calendar.CalendarConfig) error {
	hoursJSON, err := json.Marshal(cfg.BusinessHours)
	if err != nil {
		return fmt.Errorf("encode business hours: %w", err)
	}
	now := time.Now().UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	deactivateQ := `UPDATE calendar_configs SET active=false, updated_at=$1
	                WHERE tenant_id=$2 AND agent_id=$3 AND active`
	if _, err := tx.Exec(ctx, deactivateQ, now, cfg.TenantID, cfg.AgentID); err != nil {
		return err
	}

	var createdWith *string
	if cfg.CreatedWithAccount != "" {
		createdWith = &cfg.CreatedWithAccount
	}
	insertQ := `INSERT INTO calendar_configs
	      (id, tenant_id, agent_id, credential_id, business_hours, slot_duration_minutes,
	       buffer_minutes, timezone, lookahead_days, active, created_with_account, created_at, updated_at)
	      VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, true, $9, $10, $10)
	      RETURNING id`
	if err := tx.QueryRow(ctx, insertQ, cfg.TenantID, cfg.AgentID, cfg.CredentialID, hoursJSON,
		cfg.SlotDurationMins, cfg.BufferMins, cfg.Timezone, cfg.LookaheadDays,
		createdWith, now).Scan(&cfg.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// InTx runs the account-switch reconcile passes inside one transaction.
func (s *Store) InTx(ctx context.Context, fn func(ops calendar.ReconcileOps) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&txConfigOps{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txConfigOps struct {
	tx pgx.Tx
}

func (o *txConfigOps) BackfillCreatedWith(ctx context.Context, credentialID, account string) (int, error) {
	q := `UPDATE calendar_configs SET created_with_account=$2, updated_at=now()
	      WHERE credential_id=$1 AND created_with_account IS NULL`
	res, err := o.tx.Exec(ctx, q, credentialID, account)
	if err != nil {
		return 0, err
	}
	return int(res.RowsAffected()), nil
}

func (o *txConfigOps) DeactivateConfigs(ctx context.Context, credentialID string) (int, error) {
	q := `UPDATE calendar_configs SET active=false, updated_at=now()
	      WHERE credential_id=$1 AND active`
	res, err := o.tx.Exec(ctx, q, credentialID)
	if err != nil {
		return 0, err
	}
	return int(res.RowsAffected()), nil
}

func (o *txConfigOps) ReactivateConfigs(ctx context.Context, credentialID, account string) (int, error) {
	q := `UPDATE calendar_configs SET active=true, updated_at=now()
	      WHERE credential_id=$1 AND NOT active AND LOWER(created_with_account)=LOWER($2)`
	res, err := o.tx.Exec(ctx, q, credentialID, account)
	if err != nil {
		return 0, err
	}
	return int(res.RowsAffected()), nil
}
