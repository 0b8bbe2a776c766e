package llm

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RetryConfig controls exponential backoff on transient errors before
// the router moves on to the next key (a rate-limit error is not
// retried on the same key), adapted from the pack's Gemini retry
// helper and generalized to all three backends.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig allows up to 3 retries per key (4 attempts in
// all), backing off from 1s toward a 10s ceiling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, BackoffMultiplier: 2.0}
}

func (c RetryConfig) Backoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay
	}
	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}
	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}

func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "rate_limit") || strings.Contains(s, "quota")
}

var retryDelayRegex = regexp.MustCompile(`(?i)(?:retry(?:-|\s)after|retryDelay)[:\s]+(\d+(?:\.\d+)?)\s*s?`)

// ExtractRetryDelay parses an API-suggested delay out of an error
// message, when the backend embeds one (Gemini does; others usually don't).
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	secs, parseErr := strconv.ParseFloat(m[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
