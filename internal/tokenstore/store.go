// Package tokenstore persists the OAuth credential set for the single
// authenticated athlete.
package tokenstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoCredential is returned when no credential has been stored yet.
	ErrNoCredential = errors.New("no credential found - please authenticate first")

	// ErrStorageUnavailable wraps any failure of the backing medium.
	// Callers treat it as fatal for authenticated operations.
	ErrStorageUnavailable = errors.New("token storage unavailable")
)

// Credential is the complete OAuth credential set. Expiry is authoritative
// for AccessToken. A Save replaces all fields at once; the record is never
// partially updated.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expires_at"`
	AthleteID    int64     `json:"athlete_id,omitempty"`
}

type Store interface {
	// Load returns the stored credential or ErrNoCredential.
	Load(ctx context.Context) (Credential, error)

	// Save durably replaces the stored credential.
	Save(ctx context.Context, cred Credential) error
}
