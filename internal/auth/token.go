package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Credentials is the JWT pair issued by the backend token endpoint.
type Credentials struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// TokenSource holds the session credential for one profile. The login flow
// writes it, every gateway call reads it, and the gateway's 401 path clears
// it. The credential is mirrored to disk so a new process starts logged in.
type TokenSource struct {
	mu    sync.RWMutex
	creds Credentials
	path  string // empty disables persistence (tests)
}

// NewTokenSource creates a token source persisted at path. If the file
// already exists its credential is loaded; a missing file is not an error.
func NewTokenSource(path string) (*TokenSource, error) {
	ts := &TokenSource{path: path}
	if path == "" {
		return ts, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	if err := json.Unmarshal(data, &ts.creds); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return ts, nil
}

// Token returns the current access token, or "" when logged out.
func (ts *TokenSource) Token() string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.creds.Access
}

// Refresh returns the current refresh token, or "" when logged out.
func (ts *TokenSource) Refresh() string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.creds.Refresh
}

// Set stores a new credential pair and persists it.
func (ts *TokenSource) Set(creds Credentials) error {
	ts.mu.Lock()
	ts.creds = creds
	ts.mu.Unlock()
	return ts.persist(creds)
}

// Clear drops the credential and removes the persisted file. Called by the
// gateway when the backend rejects the token.
func (ts *TokenSource) Clear() {
	ts.mu.Lock()
	ts.creds = Credentials{}
	ts.mu.Unlock()
	if ts.path != "" {
		_ = os.Remove(ts.path)
	}
}

func (ts *TokenSource) persist(creds Credentials) error {
	if ts.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(ts.path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(ts.path, data, 0600)
}
