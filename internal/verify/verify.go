// Package verify runs the pre-flight credential checks. A credential
// enters the active pool only after it has authenticated, shown
// non-trivial quota and proven push access to the target repository.
package verify

import (
	"context"
	"fmt"

	"github.com/fieldline/bulkpush/internal/api"
	"github.com/fieldline/bulkpush/internal/credential"
	"github.com/fieldline/bulkpush/internal/logging"
	"github.com/fieldline/bulkpush/internal/models"
)

// API is the client surface verification needs.
type API interface {
	ReadQuota(ctx context.Context, token string) (models.QuotaInfo, error)
	ReadRepository(ctx context.Context, token string) (api.Repository, error)
}

// Result is the verification outcome for one credential.
type Result struct {
	Name  string
	OK    bool
	Err   error
	Quota models.QuotaInfo
}

// Credentials checks every credential in the pool against the remote.
// Failing credentials are removed from rotation before the run starts:
// rejected tokens are dropped, tokens without push access are dropped,
// and tokens with trivial quota are deactivated until their reset.
func Credentials(ctx context.Context, client API, pool *credential.Pool, log *logging.Logger, lowWater int) []Result {
	creds := pool.Credentials()
	results := make([]Result, 0, len(creds))

	for _, c := range creds {
		res := verifyOne(ctx, client, pool, c, lowWater)
		if res.OK {
			log.Info().
				Str("credential", c.Name()).
				Int("remaining", res.Quota.Remaining).
				Msg("credential verified")
		} else {
			log.Warn().
				Str("credential", c.Name()).
				Err(res.Err).
				Msg("credential failed verification")
		}
		results = append(results, res)
	}
	return results
}

func verifyOne(ctx context.Context, client API, pool *credential.Pool, c *credential.Credential, lowWater int) Result {
	res := Result{Name: c.Name()}

	quota, err := client.ReadQuota(ctx, c.Token())
	if err != nil {
		if api.IsAuthError(err) {
			pool.Drop(c)
		} else {
			pool.Deactivate(c, quota.ResetAt)
		}
		res.Err = fmt.Errorf("quota check: %w", err)
		return res
	}
	res.Quota = quota

	repo, err := client.ReadRepository(ctx, c.Token())
	if err != nil {
		if api.IsAuthError(err) {
			pool.Drop(c)
		} else {
			pool.Deactivate(c, quota.ResetAt)
		}
		res.Err = fmt.Errorf("repository check: %w", err)
		return res
	}
	if !repo.Permissions.Push {
		pool.Drop(c)
		res.Err = fmt.Errorf("no push access to %s", repo.FullName)
		return res
	}

	// ApplyQuota also handles the trivial-quota case: at or below the
	// low-water mark the credential parks until its window resets.
	pool.ApplyQuota(c, quota)
	if quota.Remaining <= lowWater {
		res.Err = fmt.Errorf("quota too low: %d remaining", quota.Remaining)
		return res
	}

	res.OK = true
	return res
}
