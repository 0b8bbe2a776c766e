package auth

import "testing"

type memConfigStore struct{ values map[string]string }

func newMemConfigStore() *memConfigStore { return &memConfigStore{values: map[string]string{}} }

func (m *memConfigStore) Get(key string) (string, bool) { v, ok := m.values[key]; return v, ok }
func (m *memConfigStore) Set(key, value string) error   { m.values[key] = value; return nil }

func TestSetInitialPasswordThenVerify(t *testing.T) {
	m := NewManager(newMemConfigStore())
	if m.PasswordSet() {
		t.Fatal("expected no password set initially")
	}
	if err := m.SetInitialPassword("hunter2x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.PasswordSet() {
		t.Fatal("expected password set after SetInitialPassword")
	}
	if !m.VerifyPassword("hunter2x") {
		t.Fatal("expected correct password to verify")
	}
	if m.VerifyPassword("wrong") {
		t.Fatal("expected incorrect password to fail")
	}
}

func TestSetInitialPasswordRejectsSecondCall(t *testing.T) {
	m := NewManager(newMemConfigStore())
	_ = m.SetInitialPassword("hunter2x")
	if err := m.SetInitialPassword("another1"); err == nil {
		t.Fatal("expected an error setting the password twice")
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	m := NewManager(newMemConfigStore())
	_ = m.SetInitialPassword("hunter2x")
	if err := m.ChangePassword("wrong", "newpass1"); err == nil {
		t.Fatal("expected an error with the wrong current password")
	}
	if err := m.ChangePassword("hunter2x", "newpass1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.VerifyPassword("newpass1") {
		t.Fatal("expected new password to verify")
	}
}

func TestSessionLifecycle(t *testing.T) {
	m := NewManager(newMemConfigStore())
	token, err := m.CreateSession()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.VerifySession(token) {
		t.Fatal("expected freshly created session to verify")
	}
	m.ClearSession(token)
	if m.VerifySession(token) {
		t.Fatal("expected cleared session to no longer verify")
	}
}

func TestRateLimitBlocksAfterRepeatedFailures(t *testing.T) {
	m := NewManager(newMemConfigStore())
	ip := "1.2.3.4"
	for i := 0; i < maxLoginFailures; i++ {
		if !m.CheckRateLimit(ip) {
			t.Fatalf("expected rate limit to allow attempt %d", i)
		}
		m.RecordLoginFailure(ip)
	}
	if m.CheckRateLimit(ip) {
		t.Fatal("expected rate limit to block after max failures")
	}
	m.ClearRateLimit(ip)
	if !m.CheckRateLimit(ip) {
		t.Fatal("expected rate limit cleared after ClearRateLimit")
	}
}
