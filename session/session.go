// Package session keeps the signed-in user's tokens as cookies in a small
// JSON file and decodes the access token for display.
package session

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lizet96/frontdesk/auth"
	"github.com/pkg/errors"
)

const (
	AccessCookie  = "frontdesk_token"
	RefreshCookie = "frontdesk_refresh"

	// defaultRefreshLifetime is how long the refresh cookie is kept when the
	// server does not report one
	defaultRefreshLifetime = 7 * 24 * time.Hour
)

// ErrNoSession is returned by Claims when nobody is signed in
var ErrNoSession = errors.New("not logged in")

// Store is a file-backed cookie jar holding the session tokens. It satisfies
// client.TokenSource.
type Store struct {
	path    string
	mu      sync.Mutex
	cookies map[string]*http.Cookie

	Now func() time.Time
}

// DefaultPath is $FRONTDESK_SESSION_FILE or ~/.config/frontdesk/session.json
func DefaultPath() string {
	if p := os.Getenv("FRONTDESK_SESSION_FILE"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "frontdesk", "session.json")
}

// Open loads the cookies stored at path. A missing file is an empty session.
func Open(path string) (*Store, error) {
	s := &Store{path: path, cookies: map[string]*http.Cookie{}, Now: time.Now}

	raw, err := os.ReadFile(filepath.Clean(path))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read session file %s", path)
	}

	var cookies []*http.Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, errors.Wrapf(err, "corrupt session file %s", path)
	}
	now := s.Now()
	for _, c := range cookies {
		if c.Expires.IsZero() || c.Expires.After(now) {
			s.cookies[c.Name] = c
		}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) value(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cookies[name]; ok {
		if c.Expires.IsZero() || c.Expires.After(s.Now()) {
			return c.Value
		}
	}
	return ""
}

func (s *Store) AccessToken() string  { return s.value(AccessCookie) }
func (s *Store) RefreshToken() string { return s.value(RefreshCookie) }

// SetTokens stores both tokens. The access cookie expires with the token and
// the refresh cookie after refreshTTL.
func (s *Store) SetTokens(access, refresh string, refreshTTL time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accessCookie := &http.Cookie{Name: AccessCookie, Value: access, Path: "/", HttpOnly: true, SameSite: http.SameSiteStrictMode}
	if claims, err := decode(access); err == nil && claims.ExpiresAt != nil {
		accessCookie.Expires = claims.ExpiresAt.Time
	}
	s.cookies[AccessCookie] = accessCookie
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshLifetime
	}
	s.cookies[RefreshCookie] = &http.Cookie{
		Name:     RefreshCookie,
		Value:    refresh,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  s.Now().Add(refreshTTL),
	}
	return s.save()
}

// Clear forgets the session and removes the file
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cookies = map[string]*http.Cookie{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove session file")
	}
	return nil
}

// Claims decodes the stored access token without checking its signature.
// Use it for display only; the server verifies every request.
func (s *Store) Claims() (*auth.Claims, error) {
	s.mu.Lock()
	c, ok := s.cookies[AccessCookie]
	s.mu.Unlock()
	if !ok || c.Value == "" {
		return nil, ErrNoSession
	}
	return decode(c.Value)
}

// Expired reports whether the access token is missing or past its expiry
func (s *Store) Expired() bool {
	claims, err := s.Claims()
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.After(s.Now())
}

func decode(token string) (*auth.Claims, error) {
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(err, "malformed access token")
	}
	return claims, nil
}

// save writes the jar atomically with owner-only permissions. Callers hold mu.
func (s *Store) save() error {
	cookies := make([]*http.Cookie, 0, len(s.cookies))
	for _, name := range []string{AccessCookie, RefreshCookie} {
		if c, ok := s.cookies[name]; ok {
			cookies = append(cookies, c)
		}
	}
	raw, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "failed to create session directory")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return errors.Wrap(err, "failed to write session file")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "failed to replace session file")
}
