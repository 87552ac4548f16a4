// Package models holds the data types shared between the walker, the
// API client and the scheduler.
package models

import (
	"time"
)

// UploadJob is one unit of work: a single file to be written to the
// remote repository. Immutable once created by the walker.
type UploadJob struct {
	// Path is the repository-relative path, always forward-slashed.
	Path string

	// LocalPath is the absolute path of the file on disk.
	LocalPath string

	// Size is the file size in bytes at enumeration time.
	Size int64
}

// QuotaInfo is a point-in-time view of a credential's remote quota,
// taken from a dedicated probe or opportunistically from the rate-limit
// headers of any response.
type QuotaInfo struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Outcome is the closed set of results of one job-credential attempt.
// All call sites switch over every case.
type Outcome int

const (
	// OutcomeCreated - the write created a new remote resource (2xx, no precondition attached).
	OutcomeCreated Outcome = iota

	// OutcomeUpdated - the write replaced an existing resource (2xx with precondition).
	OutcomeUpdated

	// OutcomeAlreadyCurrent - precondition mismatch or resource already at
	// target state (409). Counted as a skip, not an error; the call still
	// consumed quota.
	OutcomeAlreadyCurrent

	// OutcomeQuotaExhausted - 403 with a quota-related message. The
	// credential must be deactivated and the job retried elsewhere.
	OutcomeQuotaExhausted

	// OutcomeTooLarge - payload exceeds the API size ceiling. Detected
	// locally; no network call is made.
	OutcomeTooLarge

	// OutcomeTransient - network timeout or 5xx. Eligible for bounded
	// retry on the same or a different credential.
	OutcomeTransient

	// OutcomeAuthFailure - the credential itself was rejected (401, or
	// 403 without a quota message). Drop the credential permanently.
	OutcomeAuthFailure

	// OutcomeFatal - unexpected write failure (e.g. 404 on the write
	// call). The job is marked failed; the run continues.
	OutcomeFatal
)

// String returns the human-readable outcome name used in logs and the
// reporter's reason breakdown.
func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeAlreadyCurrent:
		return "already-current"
	case OutcomeQuotaExhausted:
		return "quota-exhausted"
	case OutcomeTooLarge:
		return "too-large"
	case OutcomeTransient:
		return "transient-error"
	case OutcomeAuthFailure:
		return "auth-failure"
	case OutcomeFatal:
		return "fatal-error"
	default:
		return "unknown"
	}
}

// ConsumedQuota reports whether an attempt with this outcome was
// metered by the API. Everything that reached the remote counts,
// success or not; only local skips (TooLarge) and calls the rate
// limiter itself rejected (QuotaExhausted) are free. Transient also
// covers transport failures that may never have arrived; counting
// those keeps the local estimate conservative, and rate-limit header
// corrections rebase it on the next response anyway.
func (o Outcome) ConsumedQuota() bool {
	switch o {
	case OutcomeCreated, OutcomeUpdated, OutcomeAlreadyCurrent,
		OutcomeTransient, OutcomeAuthFailure, OutcomeFatal:
		return true
	default:
		return false
	}
}
