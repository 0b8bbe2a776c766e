// Package apperr defines the provider-agnostic error taxonomy shared by
// every component: transient, degraded, configuration, fatal-for-item,
// and fatal-for-batch failures each get their own sentinel so callers
// can match on error kind instead of on error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies how a caller should react to an error.
type Kind string

const (
	KindTransient     Kind = "transient"
	KindDegraded      Kind = "degraded"
	KindConfiguration Kind = "configuration"
	KindFatalForItem  Kind = "fatal_for_item"
	KindFatalForBatch Kind = "fatal_for_batch"
)

// Code is a stable machine-readable error code surfaced in API responses
// and task events.
type Code string

const (
	CodeConfigError          Code = "CONFIG_ERROR"
	CodeMarketUnsupported    Code = "MARKET_UNSUPPORTED"
	CodeSourceTransient      Code = "SOURCE_TRANSIENT"
	CodeSourceExhausted      Code = "SOURCE_EXHAUSTED"
	CodeCircuitOpen          Code = "CIRCUIT_OPEN"
	CodeLLMRateLimited       Code = "LLM_RATE_LIMITED"
	CodeLLMInvalidResponse   Code = "LLM_INVALID_RESPONSE"
	CodeParseError           Code = "PARSE_ERROR"
	CodeDuplicateSubmission  Code = "DUPLICATE_SUBMISSION"
	CodeCancelled            Code = "CANCELLED"
	CodePersistenceError     Code = "PERSISTENCE_ERROR"
	CodeSkipped              Code = "SKIPPED"
)

// Error is the concrete error type used across the module. Every
// component wraps its underlying cause with one of these so the
// pipeline can match on Code/Kind rather than parsing strings.
type Error struct {
	Code  Code
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(code Code, kind Kind, msg string, cause error) *Error {
	return &Error{Code: code, Kind: kind, Msg: msg, Cause: cause}
}

func ConfigError(msg string, cause error) *Error {
	return new_(CodeConfigError, KindConfiguration, msg, cause)
}

func MarketUnsupported(msg string, cause error) *Error {
	return new_(CodeMarketUnsupported, KindDegraded, msg, cause)
}

func SourceTransient(msg string, cause error) *Error {
	return new_(CodeSourceTransient, KindTransient, msg, cause)
}

func SourceExhausted(msg string, cause error) *Error {
	return new_(CodeSourceExhausted, KindFatalForItem, msg, cause)
}

func CircuitOpen(msg string) *Error {
	return new_(CodeCircuitOpen, KindDegraded, msg, nil)
}

func LLMRateLimited(msg string, cause error) *Error {
	return new_(CodeLLMRateLimited, KindTransient, msg, cause)
}

func LLMInvalidResponse(msg string, cause error) *Error {
	return new_(CodeLLMInvalidResponse, KindFatalForItem, msg, cause)
}

func ParseError(msg string, cause error) *Error {
	return new_(CodeParseError, KindFatalForItem, msg, cause)
}

func DuplicateSubmission(msg string) *Error {
	return new_(CodeDuplicateSubmission, KindDegraded, msg, nil)
}

func Cancelled(msg string) *Error {
	return new_(CodeCancelled, KindFatalForBatch, msg, nil)
}

func PersistenceError(msg string, cause error) *Error {
	return new_(CodePersistenceError, KindFatalForItem, msg, cause)
}

// Skipped marks a run that was deliberately not attempted (e.g. a
// calendar-gate closed market), not a failure.
func Skipped(msg string) *Error {
	return new_(CodeSkipped, KindDegraded, msg, nil)
}

// Is allows errors.Is(err, apperr.SourceExhausted("", nil)) style checks
// by comparing Code only.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// CodeOf extracts the machine code from an error, or "" if it is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf extracts the Kind from an error, or "" if it is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
