package vhx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// StoredToken is a persisted token together with the identity that obtained it.
type StoredToken struct {
	Token
	ClientID string `json:"client_id"`
	Username string `json:"username"`
}

// TokenStore abstracts persistence for bearer tokens.
type TokenStore interface {
	Load() (StoredToken, error)
	Save(StoredToken) error
}

// FileTokenStore writes token state to a JSON file on disk.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore builds a FileTokenStore at the provided path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load reads the token from disk. A missing file resolves to an empty token.
func (s *FileTokenStore) Load() (StoredToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StoredToken{}, nil
		}
		return StoredToken{}, fmt.Errorf("read token cache: %w", err)
	}
	var stored StoredToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return StoredToken{}, fmt.Errorf("decode token cache: %w", err)
	}
	return stored, nil
}

// Save replaces the token file atomically with owner-only permissions.
func (s *FileTokenStore) Save(stored StoredToken) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure token cache directory: %w", err)
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending token cache: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit token cache: %w", err)
	}
	return nil
}
