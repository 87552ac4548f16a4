package credential

import (
	"sync"
	"time"

	"github.com/fieldline/bulkpush/internal/models"
)

// Pool holds the credentials and the sticky selection cursor.
//
// Selection is sticky round-robin: the cursor stays on the current
// credential across successful uploads and only advances when that
// credential is exhausted, dropped or explicitly advanced past. This
// drains one credential's quota before touching the next, keeping the
// number of account switches near the theoretical minimum.
type Pool struct {
	mu       sync.Mutex
	creds    []*Credential
	cursor   int
	lowWater int

	// lastSelected is the credential the previous Select returned.
	// A switch is counted when Select returns a different one, so each
	// rotation counts exactly once no matter how the cursor got there.
	lastSelected *Credential
	switches     int64
}

// NewPool builds a pool from raw tokens. All credentials start active
// with unknown quota; Verify or the prober fills the quota view in.
func NewPool(tokens []string, lowWater int) *Pool {
	creds := make([]*Credential, 0, len(tokens))
	for _, tok := range tokens {
		creds = append(creds, &Credential{
			token:  tok,
			name:   Redact(tok),
			active: true,
		})
	}
	return &Pool{
		creds:    creds,
		lowWater: lowWater,
	}
}

// Select returns the credential under the cursor, advancing past
// inactive ones. Returns false when no credential is currently active.
// The cursor does not move when the current credential is still active,
// so repeated calls between uploads are stable.
func (p *Pool) Select() (*Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.creds) == 0 {
		return nil, false
	}

	for i := 0; i < len(p.creds); i++ {
		idx := (p.cursor + i) % len(p.creds)
		c := p.creds[idx]
		if c.active && !c.dropped {
			p.cursor = idx
			if p.lastSelected != nil && p.lastSelected != c {
				p.switches++
			}
			p.lastSelected = c
			return c, true
		}
	}
	return nil, false
}

// Advance moves the cursor off the given credential if it still points
// there. Called after exhaustion so the next Select starts elsewhere;
// the switch is counted by the Select that lands on a new credential,
// never here, so a rotation counts exactly once.
func (p *Pool) Advance(c *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.creds[p.cursor] == c {
		p.cursor = (p.cursor + 1) % len(p.creds)
	}
}

// Deactivate takes a credential out of rotation until resetAt. A zero
// resetAt means the reset time is unknown; the prober rechecks it.
func (p *Pool) Deactivate(c *Credential, resetAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.active = false
	if !resetAt.IsZero() {
		c.quota.ResetAt = resetAt
	}
}

// Drop removes a credential permanently, for rejected tokens. It never
// returns to rotation.
func (p *Pool) Drop(c *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.active = false
	c.dropped = true
}

// ApplyQuota merges a fresh quota view into the credential. Eligibility
// follows the view in both directions: above the low-water mark the
// credential is (re)activated, at or below it parks. This is also how an
// exhausted credential returns to rotation after its window resets, even
// when the reset time was never known. Dropped credentials stay dropped.
func (p *Pool) ApplyQuota(c *Credential, q models.QuotaInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.quota = q
	c.quotaKnown = true
	if c.dropped {
		return
	}
	c.active = q.Remaining > p.lowWater
}

// RecordConsumed decrements the local quota estimate after an attempt
// that was metered by the API, and parks the credential once the
// estimate falls to the low-water mark. Header corrections via
// ApplyQuota override the estimate.
func (p *Pool) RecordConsumed(c *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.quotaKnown && c.quota.Remaining > 0 {
		c.quota.Remaining--
		if c.quota.Remaining <= p.lowWater && !c.dropped {
			c.active = false
		}
	}
}

// RecordUpload credits a completed upload and its latency to the
// credential, for the per-credential report.
func (p *Pool) RecordUpload(c *Credential, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.uploads++
	c.totalLatency += latency
}

// Reactivate re-enables exhausted credentials whose quota window has
// reset. Returns the number brought back. Dropped credentials and
// those with unknown reset times are left alone.
func (p *Pool) Reactivate(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.creds {
		if c.active || c.dropped {
			continue
		}
		if !c.quota.ResetAt.IsZero() && now.After(c.quota.ResetAt) {
			c.active = true
			c.quotaKnown = false
			n++
		}
	}
	return n
}

// ActiveCount returns the number of selectable credentials.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.creds {
		if c.active && !c.dropped {
			n++
		}
	}
	return n
}

// Len returns the total pool size including inactive and dropped.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Switches returns how many times selection moved to a different
// credential since the pool was created.
func (p *Pool) Switches() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.switches
}

// Credentials returns the pool members in order. The slice is a copy;
// the members are shared.
func (p *Pool) Credentials() []*Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Credential, len(p.creds))
	copy(out, p.creds)
	return out
}

// Snapshot returns per-credential status for the reporter.
func (p *Pool) Snapshot() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.creds))
	for _, c := range p.creds {
		s := Status{
			Name:       c.name,
			Active:     c.active && !c.dropped,
			Dropped:    c.dropped,
			Remaining:  c.quota.Remaining,
			Limit:      c.quota.Limit,
			ResetAt:    c.quota.ResetAt,
			QuotaKnown: c.quotaKnown,
			Uploads:    c.uploads,
		}
		if c.uploads > 0 {
			s.AvgLatency = c.totalLatency / time.Duration(c.uploads)
		}
		out = append(out, s)
	}
	return out
}
