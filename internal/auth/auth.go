// Package auth implements the optional admin session gate: a single
// bcrypt-hashed password, cookie-backed sessions, and a per-IP login
// rate limiter, mirroring the pack's session/cookie login flow.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	CookieName        = "dsactl_session"
	SessionMaxAge     = 24 * time.Hour
	maxLoginFailures  = 5
	failureWindow     = 10 * time.Minute
)

// ConfigStore persists the single admin password hash, backed by the
// store package's auth_config table.
type ConfigStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

type session struct {
	expiresAt time.Time
}

// Manager guards the admin surface with a single shared password.
type Manager struct {
	mu       sync.Mutex
	cfg      ConfigStore
	sessions map[string]session
	failures map[string][]time.Time
}

func NewManager(cfg ConfigStore) *Manager {
	return &Manager{cfg: cfg, sessions: make(map[string]session), failures: make(map[string][]time.Time)}
}

func (m *Manager) PasswordSet() bool {
	_, ok := m.cfg.Get("password_hash")
	return ok
}

// SetInitialPassword sets the password if none is set yet.
func (m *Manager) SetInitialPassword(password string) error {
	if m.PasswordSet() {
		return errors.New("password already set")
	}
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return m.cfg.Set("password_hash", string(hash))
}

func (m *Manager) VerifyPassword(password string) bool {
	hash, ok := m.cfg.Get("password_hash")
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (m *Manager) ChangePassword(current, next string) error {
	if !m.VerifyPassword(current) {
		return errors.New("current password is incorrect")
	}
	if len(next) < 6 {
		return errors.New("new password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return m.cfg.Set("password_hash", string(hash))
}

// CheckRateLimit returns false when ip has exceeded the failed-login
// budget within the trailing window.
func (m *Manager) CheckRateLimit(ip string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-failureWindow)
	fails := m.failures[ip]
	kept := fails[:0]
	for _, t := range fails {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.failures[ip] = kept
	return len(kept) < maxLoginFailures
}

func (m *Manager) RecordLoginFailure(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[ip] = append(m.failures[ip], time.Now())
}

func (m *Manager) ClearRateLimit(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, ip)
}

// CreateSession mints a new session token valid for SessionMaxAge.
func (m *Manager) CreateSession() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = session{expiresAt: time.Now().Add(SessionMaxAge)}
	return token, nil
}

func (m *Manager) VerifySession(token string) bool {
	if token == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(s.expiresAt) {
		delete(m.sessions, token)
		return false
	}
	return true
}

func (m *Manager) ClearSession(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}
