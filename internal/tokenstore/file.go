package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	go_json "github.com/goccy/go-json"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the credential as a single JSON file. Saves go through
// a temp file and rename so a crash never leaves a partial record.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credential{}, ErrNoCredential
	}
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	var cred Credential
	if err := go_json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("%w: decoding credential: %w", ErrStorageUnavailable, err)
	}
	return cred, nil
}

func (s *FileStore) Save(_ context.Context, cred Credential) error {
	data, err := go_json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
