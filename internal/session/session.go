// Package session provides a minimal login against the users entity.
// Sessions are records of the local-only sessions entity, so a login
// survives restarts on the same machine but is never sent remote.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

// Session errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoSession          = errors.New("no active session")
)

// DefaultTTL is how long a session stays valid.
const DefaultTTL = 12 * time.Hour

// Session is an authenticated login.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager creates and resolves sessions through a repository.
type Manager struct {
	repo   types.Repository
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger for cleanup failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a manager backed by repo.
func NewManager(repo types.Repository, opts ...Option) *Manager {
	m := &Manager{repo: repo, ttl: DefaultTTL, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HashPassword returns the bcrypt hash stored in a user's password_hash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// Login checks the password of the user with email and opens a session.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	users, err := m.repo.Filter(ctx, types.EntityUsers, types.Filter{"email": email}, "")
	if err != nil {
		return Session{}, fmt.Errorf("looking up user: %w", err)
	}
	if len(users) == 0 {
		return Session{}, ErrInvalidCredentials
	}
	user := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.Text("password_hash")), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	expires := m.now().UTC().Add(m.ttl)
	rec, err := m.repo.Create(ctx, types.EntitySessions, map[string]any{
		"user_id":    user.ID,
		"token":      token,
		"expires_at": types.FormatTime(expires),
	})
	if err != nil {
		return Session{}, fmt.Errorf("storing session: %w", err)
	}
	return Session{ID: rec.ID, Token: token, UserID: user.ID, ExpiresAt: expires}, nil
}

// Current returns the session for token. Expired sessions are removed and
// reported as ErrNoSession.
func (m *Manager) Current(ctx context.Context, token string) (Session, error) {
	s, err := m.find(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if !m.now().Before(s.ExpiresAt) {
		if err := m.repo.Delete(ctx, types.EntitySessions, s.ID); err != nil {
			m.logger.Warn("removing expired session", "session", s.ID, "error", err)
		}
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Logout deletes the session for token. Logging out twice succeeds.
func (m *Manager) Logout(ctx context.Context, token string) error {
	s, err := m.find(ctx, token)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.repo.Delete(ctx, types.EntitySessions, s.ID)
}

func (m *Manager) find(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	recs, err := m.repo.Filter(ctx, types.EntitySessions, types.Filter{"token": token}, "")
	if err != nil {
		return Session{}, err
	}
	if len(recs) == 0 {
		return Session{}, ErrNoSession
	}
	rec := recs[0]
	expires, err := time.Parse(time.RFC3339Nano, rec.Text("expires_at"))
	if err != nil {
		return Session{}, fmt.Errorf("session %s: parsing expires_at: %w", rec.ID, err)
	}
	return Session{ID: rec.ID, Token: token, UserID: rec.Text("user_id"), ExpiresAt: expires}, nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
