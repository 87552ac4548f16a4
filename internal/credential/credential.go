// Package credential manages the pool of upload credentials: sticky
// selection, quota tracking, deactivation and dedicated probing.
package credential

import (
	"time"

	"github.com/fieldline/bulkpush/internal/models"
)

// Credential is one token in the pool together with its local quota
// view. All fields are guarded by the owning Pool's mutex; callers go
// through Pool methods.
type Credential struct {
	token string
	name  string

	// active means eligible for selection. An exhausted credential is
	// inactive until its quota window resets; a dropped one never
	// comes back.
	active  bool
	dropped bool

	// quota is the local estimate, seeded by probes and corrected
	// opportunistically from response headers.
	quota      models.QuotaInfo
	quotaKnown bool

	uploads      int64
	totalLatency time.Duration
}

// Token returns the raw token for use in API calls. Never log this;
// use Name for anything user-visible.
func (c *Credential) Token() string { return c.token }

// Name returns the redacted identifier used in logs and reports.
func (c *Credential) Name() string { return c.name }

// Redact shortens a token to a loggable prefix.
func Redact(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:6] + "..."
}

// Status is a point-in-time snapshot of one credential for reporting.
type Status struct {
	Name       string
	Active     bool
	Dropped    bool
	Remaining  int
	Limit      int
	ResetAt    time.Time
	QuotaKnown bool
	Uploads    int64
	AvgLatency time.Duration
}
