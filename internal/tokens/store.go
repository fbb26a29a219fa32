// Package tokens persists OAuth tokens per identity.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNotFound is returned when no token is stored for an identity.
var ErrNotFound = errors.New("token not found")

var validIdentity = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// FileStore keeps one token-<identity>.json file per identity in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("unable to create token directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(identity string) (string, error) {
	if !validIdentity.MatchString(identity) {
		return "", fmt.Errorf("invalid identity %q", identity)
	}
	return filepath.Join(s.dir, "token-"+identity+".json"), nil
}

// Token returns the stored token for identity.
func (s *FileStore) Token(_ context.Context, identity string) (*oauth2.Token, error) {
	p, err := s.path(identity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("unable to open token file: %w", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("unable to decode token file: %w", err)
	}
	return tok, nil
}

// Save writes token for identity, replacing any previous one.
func (s *FileStore) Save(_ context.Context, identity string, token *oauth2.Token) error {
	p, err := s.path(identity)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("unable to write token file: %w", err)
	}
	return os.Rename(tmp, p)
}

// Delete removes the token for identity. Deleting a missing token is not an error.
func (s *FileStore) Delete(_ context.Context, identity string) error {
	p, err := s.path(identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to delete token file: %w", err)
	}
	return nil
}

// Identities lists every identity with a stored token.
func (s *FileStore) Identities() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var identities []string
	for _, file := range files {
		name := file.Name()
		if strings.HasPrefix(name, "token-") && strings.HasSuffix(name, ".json") {
			identities = append(identities, strings.TrimSuffix(strings.TrimPrefix(name, "token-"), ".json"))
		}
	}
	return identities, nil
}
