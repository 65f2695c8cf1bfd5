package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS credential (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	expiry TIMESTAMPTZ NOT NULL,
	athlete_id BIGINT NOT NULL DEFAULT 0
);`

// PostgresStore keeps the credential as a single row, for deployments
// where the process has no durable local disk.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("%w: applying schema: %w", ErrStorageUnavailable, err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context) (Credential, error) {
	const query = `SELECT access_token, refresh_token, expiry, athlete_id FROM credential WHERE id = 1`

	var cred Credential
	err := s.pool.QueryRow(ctx, query).Scan(&cred.AccessToken, &cred.RefreshToken, &cred.Expiry, &cred.AthleteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, ErrNoCredential
	}
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return cred, nil
}

func (s *PostgresStore) Save(ctx context.Context, cred Credential) error {
	const query = `
INSERT INTO credential (id, access_token, refresh_token, expiry, athlete_id)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	access_token = excluded.access_token,
	refresh_token = excluded.refresh_token,
	expiry = excluded.expiry,
	athlete_id = excluded.athlete_id`

	if _, err := s.pool.Exec(ctx, query, cred.AccessToken, cred.RefreshToken, cred.Expiry, cred.AthleteID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
