package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dsa-core/dsa-core/internal/apperr"
)

// errorJSON writes the {error, message} shape every handler uses for
// non-2xx responses.
func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": code, "message": message})
}

// statusForErr maps an apperr.Code to the HTTP status a handler should
// return for it, defaulting to 500 for anything unrecognized.
func statusForErr(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeDuplicateSubmission:
		return http.StatusConflict
	case apperr.CodeMarketUnsupported, apperr.CodeParseError, apperr.CodeConfigError:
		return http.StatusBadRequest
	case apperr.CodeCancelled:
		return http.StatusGone
	case apperr.CodeLLMRateLimited, apperr.CodeSourceTransient, apperr.CodeCircuitOpen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeErr resolves err to a status/code/message triple and writes it.
func writeErr(c *gin.Context, err error) {
	code := string(apperr.CodeOf(err))
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	errorJSON(c, statusForErr(err), code, err.Error())
}
