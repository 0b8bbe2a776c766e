package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dsa-core/dsa-core/internal/apperr"
	"github.com/dsa-core/dsa-core/internal/auth"
)

type memConfigStore struct{ values map[string]string }

func newMemConfigStore() *memConfigStore { return &memConfigStore{values: map[string]string{}} }

func (s *memConfigStore) Get(key string) (string, bool) { v, ok := s.values[key]; return v, ok }
func (s *memConfigStore) Set(key, value string) error   { s.values[key] = value; return nil }

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := &Deps{AuthEnabled: false}
	r := New(deps, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthGateBlocksWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := auth.NewManager(newMemConfigStore())
	deps := &Deps{AuthEnabled: true, AuthMgr: mgr}
	r := New(deps, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/tasks", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthGatePassesWithSessionCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := auth.NewManager(newMemConfigStore())
	token, err := mgr.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	deps := &Deps{AuthEnabled: true, AuthMgr: mgr}
	r := New(deps, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/tasks", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	r.ServeHTTP(w, req)

	if w.Code == http.StatusUnauthorized {
		t.Fatalf("expected authenticated request to pass the gate, got 401")
	}
}

func TestAuthGateOpenWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	deps := &Deps{AuthEnabled: false}
	r := New(deps, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/tasks", nil)
	r.ServeHTTP(w, req)

	if w.Code == http.StatusUnauthorized {
		t.Fatalf("expected auth-disabled request to pass the gate, got 401")
	}
}

func TestAuthLoginFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mgr := auth.NewManager(newMemConfigStore())
	deps := &Deps{AuthEnabled: true, AuthMgr: mgr}
	r := New(deps, nil, nil)

	body := `{"password":"hunter22","password_confirm":"hunter22"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on first-time password set, got %d: %s", w.Code, w.Body.String())
	}

	mismatched := `{"password":"hunter22"}`
	mgr2 := auth.NewManager(newMemConfigStore())
	deps2 := &Deps{AuthEnabled: true, AuthMgr: mgr2}
	r2 := New(deps2, nil, nil)
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(mismatched))
	req2.Header.Set("Content-Type", "application/json")
	r2.ServeHTTP(w2, req2)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing confirmation, got %d", w2.Code)
	}
}

func TestStatusForErr(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.DuplicateSubmission("dup"), http.StatusConflict},
		{apperr.MarketUnsupported("bad market", nil), http.StatusBadRequest},
		{apperr.Cancelled("cancelled"), http.StatusGone},
		{apperr.LLMRateLimited("rate limited", nil), http.StatusServiceUnavailable},
		{apperr.CircuitOpen("open"), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForErr(tc.err); got != tc.want {
			t.Errorf("statusForErr(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
