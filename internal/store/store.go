// Package store implements the calendar repositories over Postgres. Token
// and client-secret columns are encrypted here, at the repository boundary;
// everything above this package handles plaintext only.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"calendar-service/internal/secrets"
)

type Store struct {
	db     *pgxpool.Pool
	cipher *secrets.Cipher
}

func New(db *pgxpool.Pool, cipher *secrets.Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
