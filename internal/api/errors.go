// Package api implements the contents API client: quota probes,
// version-token lookups and compare-and-swap writes, with response
// classification into the upload outcome taxonomy.
package api

import (
	"errors"
	"strings"
)

// ErrQuotaExhausted indicates the credential's rate limit is spent.
var ErrQuotaExhausted = errors.New("quota exhausted")

// ErrAuthFailure indicates the credential was rejected outright.
var ErrAuthFailure = errors.New("authentication failed")

// isQuotaMessage checks whether a 403 response body indicates rate
// limiting rather than a permissions problem.
//
// The API does not use a dedicated status code for quota exhaustion, so
// this falls back to message matching:
//  1. "rate limit exceeded" (primary message)
//  2. "abuse detection" / "secondary rate limit" (burst throttling)
//  3. generic "quota" mentions
func isQuotaMessage(body string) bool {
	lower := strings.ToLower(body)

	quotaIndicators := []string{
		"rate limit exceeded",
		"api rate limit",
		"secondary rate limit",
		"abuse detection",
		"quota",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	return false
}

// IsQuotaError checks if an error indicates quota exhaustion, either a
// wrapped ErrQuotaExhausted or a message matching the quota patterns.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	return isQuotaMessage(err.Error())
}

// IsAuthError checks if an error indicates a rejected credential.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrAuthFailure)
}
