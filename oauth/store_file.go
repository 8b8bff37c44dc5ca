package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists credentials as JSON files, one per owner, for the
// desktop surface. Files are written 0600 under a 0700 directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-based store. An empty baseDir defaults to
// ~/.config/etsy-manager/tokens.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("oauth: get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".config", "etsy-manager", "tokens")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("oauth: create token dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// path encodes the owner so arbitrary identifiers cannot escape the base
// directory.
func (s *FileStore) path(owner string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(owner))
	return filepath.Join(s.baseDir, name+".json")
}

func (s *FileStore) Put(_ context.Context, owner string, tokens *Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("oauth: marshal tokens: %w", err)
	}
	if err := os.WriteFile(s.path(owner), data, 0o600); err != nil {
		return fmt.Errorf("oauth: write token file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, owner string) (*Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(owner))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("oauth: read token file: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("oauth: parse token file: %w", err)
	}
	return &tokens, nil
}

func (s *FileStore) Delete(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(owner)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("oauth: remove token file: %w", err)
	}
	return nil
}
