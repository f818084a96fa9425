// Package session keeps the signed-in user's bearer token and profile.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rayaadinda/kp-inventory/internal/models"
)

// Store persists the token and user between runs of the client, one JSON
// document per file.
type Store struct {
	path string
	mu   sync.Mutex
}

type persisted struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// load returns an empty state when the file does not exist.
func (s *Store) load() (persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p persisted
	if s.path == "" {
		return p, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return persisted{}, fmt.Errorf("decode session %s: %w", s.path, err)
	}
	return p, nil
}

func (s *Store) save(p persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// AuthContext is the in-memory view of the current session. It is safe for
// concurrent use.
type AuthContext struct {
	mu    sync.RWMutex
	token string
	user  *models.User
	store *Store
}

// NewAuthContext restores any session saved in store. A nil store keeps the
// session in memory only.
func NewAuthContext(store *Store) (*AuthContext, error) {
	a := &AuthContext{store: store}
	if store == nil {
		return a, nil
	}
	p, err := store.load()
	if err != nil {
		return a, err
	}
	a.token = p.Token
	a.user = p.User
	return a, nil
}

func (a *AuthContext) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *AuthContext) User() (models.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return models.User{}, false
	}
	return *a.user, true
}

func (a *AuthContext) IsAuthenticated() bool {
	return a.Token() != ""
}

// SignIn replaces the session and persists it.
func (a *AuthContext) SignIn(token string, user *models.User) error {
	a.mu.Lock()
	a.token = token
	a.user = user
	a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	return a.store.save(persisted{Token: token, User: user})
}

// SignOut forgets the session in memory and on disk.
func (a *AuthContext) SignOut() error {
	a.mu.Lock()
	a.token = ""
	a.user = nil
	a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	return a.store.clear()
}
