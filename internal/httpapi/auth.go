package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dsa-core/dsa-core/internal/auth"
)

// authGate rejects requests to the protected API group when admin auth
// is enabled and the session cookie is missing or invalid.
func authGate(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !deps.AuthEnabled || deps.AuthMgr == nil {
			c.Next()
			return
		}
		cookie, err := c.Cookie(auth.CookieName)
		if err != nil || !deps.AuthMgr.VerifySession(cookie) {
			errorJSON(c, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		c.Next()
	}
}

type loginRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (h *handlers) authStatus(c *gin.Context) {
	enabled := h.deps.AuthEnabled
	loggedIn := false
	passwordSet := false
	if enabled && h.deps.AuthMgr != nil {
		passwordSet = h.deps.AuthMgr.PasswordSet()
		if cookie, err := c.Cookie(auth.CookieName); err == nil {
			loggedIn = h.deps.AuthMgr.VerifySession(cookie)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"auth_enabled": enabled,
		"logged_in":    loggedIn,
		"password_set": passwordSet,
	})
}

func (h *handlers) authLogin(c *gin.Context) {
	if !h.deps.AuthEnabled || h.deps.AuthMgr == nil {
		errorJSON(c, http.StatusBadRequest, "auth_disabled", "authentication is not configured")
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		errorJSON(c, http.StatusBadRequest, "password_required", "password is required")
		return
	}

	ip := c.ClientIP()
	if !h.deps.AuthMgr.CheckRateLimit(ip) {
		errorJSON(c, http.StatusTooManyRequests, "rate_limited", "too many failed attempts, try again later")
		return
	}

	if !h.deps.AuthMgr.PasswordSet() {
		if req.Password != req.PasswordConfirm {
			h.deps.AuthMgr.RecordLoginFailure(ip)
			errorJSON(c, http.StatusBadRequest, "password_mismatch", "passwords do not match")
			return
		}
		if err := h.deps.AuthMgr.SetInitialPassword(req.Password); err != nil {
			h.deps.AuthMgr.RecordLoginFailure(ip)
			errorJSON(c, http.StatusBadRequest, "invalid_password", err.Error())
			return
		}
	} else if !h.deps.AuthMgr.VerifyPassword(req.Password) {
		h.deps.AuthMgr.RecordLoginFailure(ip)
		errorJSON(c, http.StatusUnauthorized, "invalid_password", "incorrect password")
		return
	}

	h.deps.AuthMgr.ClearRateLimit(ip)
	token, err := h.deps.AuthMgr.CreateSession()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}
	c.SetCookie(auth.CookieName, token, int(auth.SessionMaxAge.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) authLogout(c *gin.Context) {
	if cookie, err := c.Cookie(auth.CookieName); err == nil && h.deps.AuthMgr != nil {
		h.deps.AuthMgr.ClearSession(cookie)
	}
	c.SetCookie(auth.CookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *handlers) authChangePassword(c *gin.Context) {
	if !h.deps.AuthEnabled || h.deps.AuthMgr == nil {
		errorJSON(c, http.StatusBadRequest, "auth_disabled", "authentication is not configured")
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := h.deps.AuthMgr.ChangePassword(req.CurrentPassword, req.NewPassword); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_password", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
