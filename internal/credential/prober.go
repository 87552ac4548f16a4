package credential

import (
	"context"
	"sync"
	"time"

	"github.com/fieldline/bulkpush/internal/api"
	"github.com/fieldline/bulkpush/internal/logging"
	"github.com/fieldline/bulkpush/internal/models"
)

// QuotaReader is the API surface the prober needs.
type QuotaReader interface {
	ReadQuota(ctx context.Context, token string) (models.QuotaInfo, error)
}

// Prober refreshes the pool's quota view with dedicated probe calls.
//
// Probes are cheap (they do not consume quota) but still rate limited
// here with a backoff so a fully exhausted pool does not hammer the
// endpoint in a tight loop.
type Prober struct {
	api     QuotaReader
	pool    *Pool
	log     *logging.Logger
	backoff time.Duration

	mu        sync.Mutex
	lastProbe time.Time
}

// NewProber creates a prober over the given pool.
func NewProber(apiClient QuotaReader, pool *Pool, log *logging.Logger, backoff time.Duration) *Prober {
	return &Prober{
		api:     apiClient,
		pool:    pool,
		log:     log,
		backoff: backoff,
	}
}

// Refresh probes a single credential and applies the result. An auth
// failure drops the credential; any other probe failure is logged and
// leaves the previous view in place.
func (p *Prober) Refresh(ctx context.Context, c *Credential) error {
	quota, err := p.api.ReadQuota(ctx, c.Token())
	if err != nil {
		if api.IsAuthError(err) {
			p.log.Warn().Str("credential", c.Name()).Msg("credential rejected during probe, dropping")
			p.pool.Drop(c)
			return err
		}
		p.log.Debug().Str("credential", c.Name()).Err(err).Msg("quota probe failed")
		return err
	}

	p.pool.ApplyQuota(c, quota)
	p.log.Debug().
		Str("credential", c.Name()).
		Int("remaining", quota.Remaining).
		Time("reset", quota.ResetAt).
		Msg("quota probed")
	return nil
}

// RefreshAll probes every non-dropped credential. Individual probe
// failures are not fatal; the pool keeps whatever view it had.
func (p *Prober) RefreshAll(ctx context.Context) {
	for _, c := range p.pool.Credentials() {
		if ctx.Err() != nil {
			return
		}
		_ = p.Refresh(ctx, c)
	}
}

// WaitForCredential is called when Select finds no active credential.
// It reactivates any credentials whose reset time has passed, probes
// the pool, and sleeps the backoff when that still yields nothing.
// Returns false when every credential is dropped or the context ends.
func (p *Prober) WaitForCredential(ctx context.Context) bool {
	for {
		if p.pool.Reactivate(time.Now()) > 0 {
			p.RefreshAll(ctx)
		}
		if p.pool.ActiveCount() > 0 {
			return true
		}

		// All remaining credentials dropped: no reset will help.
		allDropped := true
		for _, s := range p.pool.Snapshot() {
			if !s.Dropped {
				allDropped = false
				break
			}
		}
		if allDropped {
			return false
		}

		p.mu.Lock()
		sinceProbe := time.Since(p.lastProbe)
		p.mu.Unlock()
		if sinceProbe >= p.backoff {
			p.RefreshAll(ctx)
			p.mu.Lock()
			p.lastProbe = time.Now()
			p.mu.Unlock()
			if p.pool.ActiveCount() > 0 {
				return true
			}
		}

		p.log.Info().
			Dur("backoff", p.backoff).
			Msg("all credentials exhausted, waiting for quota reset")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.backoff):
		}
	}
}
