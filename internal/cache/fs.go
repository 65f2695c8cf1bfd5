package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	go_json "github.com/goccy/go-json"
)

var _ Store = (*FS)(nil)

type fsEnvelope struct {
	Key      string          `json:"key"`
	Value    go_json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
	TTL      time.Duration   `json:"ttl"`
}

// FS stores one JSON envelope per entry under a directory, surviving
// process restarts. Entry freshness is evaluated on read against the
// envelope's stored_at and ttl.
type FS struct {
	dir string
	now func() time.Time
}

type FSOption func(*FS)

func WithFSClock(now func() time.Time) FSOption {
	return func(f *FS) { f.now = now }
}

func NewFS(dir string, opts ...FSOption) (*FS, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	f := &FS{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	path := f.path(key)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	var envelope fsEnvelope
	if err := go_json.Unmarshal(data, &envelope); err != nil {
		// Corrupt entry, drop it.
		_ = os.Remove(path)
		return nil, ErrMiss
	}

	if !f.now().Before(envelope.StoredAt.Add(envelope.TTL)) {
		_ = os.Remove(path)
		return nil, ErrMiss
	}

	return envelope.Value, nil
}

func (f *FS) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	envelope := fsEnvelope{
		Key:      key,
		Value:    value,
		StoredAt: f.now(),
		TTL:      ttl,
	}

	data, err := go_json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (f *FS) Invalidate(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache entry: %w", err)
	}
	return nil
}

func (f *FS) InvalidateAll(_ context.Context) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("listing cache dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing cache entry: %w", err)
		}
	}
	return nil
}

func (f *FS) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}
