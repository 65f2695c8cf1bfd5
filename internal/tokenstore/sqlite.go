package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS credential (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	expiry TIMESTAMP NOT NULL,
	athlete_id INTEGER NOT NULL DEFAULT 0
);`

// SQLiteStore keeps the credential as a single row in a local database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: applying schema: %w", ErrStorageUnavailable, err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Credential, error) {
	const query = `SELECT access_token, refresh_token, expiry, athlete_id FROM credential WHERE id = 1`

	var (
		cred   Credential
		expiry time.Time
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&cred.AccessToken, &cred.RefreshToken, &expiry, &cred.AthleteID)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNoCredential
	}
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	cred.Expiry = expiry
	return cred, nil
}

func (s *SQLiteStore) Save(ctx context.Context, cred Credential) error {
	const query = `
INSERT INTO credential (id, access_token, refresh_token, expiry, athlete_id)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	access_token = excluded.access_token,
	refresh_token = excluded.refresh_token,
	expiry = excluded.expiry,
	athlete_id = excluded.athlete_id`

	if _, err := s.db.ExecContext(ctx, query, cred.AccessToken, cred.RefreshToken, cred.Expiry, cred.AthleteID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
