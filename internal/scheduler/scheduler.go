// Package scheduler distributes upload jobs across the credential pool.
//
// Workers pull jobs from a shared channel; credential selection is
// sticky, so the pool drains one credential before moving to the next.
// With a single worker the scheduler degenerates to a strictly
// sequential run, which is also the reference behavior the concurrency
// tests compare against.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fieldline/bulkpush/internal/api"
	"github.com/fieldline/bulkpush/internal/credential"
	"github.com/fieldline/bulkpush/internal/logging"
	"github.com/fieldline/bulkpush/internal/models"
	"github.com/fieldline/bulkpush/internal/stats"
)

// ErrNoCredentials is returned when every credential has been dropped
// and no quota reset can bring one back.
var ErrNoCredentials = errors.New("no usable credentials remain")

// Uploader is the API surface the scheduler drives.
type Uploader interface {
	Upload(ctx context.Context, job models.UploadJob, token string) api.Result
}

// CredentialWaiter blocks until a credential becomes usable again.
// Implemented by the prober.
type CredentialWaiter interface {
	WaitForCredential(ctx context.Context) bool
}

// Scheduler runs upload jobs to completion against the pool.
type Scheduler struct {
	api     Uploader
	pool    *credential.Pool
	waiter  CredentialWaiter
	stats   *stats.RunStatistics
	log     *logging.Logger
	retry   *RetryPolicy
	workers int
	locks   *pathLocks
}

// New creates a scheduler. workers <= 0 means one worker per
// credential, the default lane layout.
func New(uploader Uploader, pool *credential.Pool, waiter CredentialWaiter,
	st *stats.RunStatistics, log *logging.Logger, retry *RetryPolicy, workers int) *Scheduler {

	if workers <= 0 {
		workers = pool.Len()
	}
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		api:     uploader,
		pool:    pool,
		waiter:  waiter,
		stats:   st,
		log:     log,
		retry:   retry,
		workers: workers,
		locks:   newPathLocks(),
	}
}

// Run consumes jobs until the channel closes or the context ends.
// In-flight jobs finish; queued ones are abandoned on cancellation.
// Returns ErrNoCredentials when the pool dies mid-run, or the context
// error on cancellation.
func (s *Scheduler) Run(ctx context.Context, jobs <-chan models.UploadJob) error {
	var wg sync.WaitGroup
	var once sync.Once
	var runErr error

	fail := func(err error) {
		once.Do(func() { runErr = err })
	}

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(lane int) {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					fail(ctx.Err())
					return
				}
				if err := s.process(ctx, job); err != nil {
					fail(err)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	return runErr
}

// process drives one job to a terminal state. Statistics are updated
// exactly once, on the terminal outcome.
func (s *Scheduler) process(ctx context.Context, job models.UploadJob) error {
	transientFailures := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		cred, ok := s.pool.Select()
		if !ok {
			if !s.waiter.WaitForCredential(ctx) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.stats.Record(models.OutcomeFatal, 0)
				s.log.Error().Str("path", job.Path).Msg("job failed, no usable credentials")
				return ErrNoCredentials
			}
			continue
		}

		unlock := s.locks.acquire(job.Path)
		start := time.Now()
		res := s.api.Upload(ctx, job, cred.Token())
		latency := time.Since(start)
		unlock()

		if res.Quota != nil {
			s.pool.ApplyQuota(cred, *res.Quota)
		}
		if res.Outcome.ConsumedQuota() {
			s.pool.RecordConsumed(cred)
		}

		switch res.Outcome {
		case models.OutcomeCreated, models.OutcomeUpdated:
			s.pool.RecordUpload(cred, latency)
			s.stats.Record(res.Outcome, job.Size)
			s.log.Debug().
				Str("path", job.Path).
				Str("credential", cred.Name()).
				Str("outcome", res.Outcome.String()).
				Msg("uploaded")
			return nil

		case models.OutcomeAlreadyCurrent:
			s.stats.Record(res.Outcome, job.Size)
			s.log.Debug().Str("path", job.Path).Msg("already current, skipped")
			return nil

		case models.OutcomeTooLarge:
			s.stats.Record(res.Outcome, job.Size)
			s.log.Warn().
				Str("path", job.Path).
				Int64("size", job.Size).
				Msg("payload exceeds size ceiling, skipped")
			return nil

		case models.OutcomeFatal:
			s.stats.Record(res.Outcome, job.Size)
			s.log.Error().Str("path", job.Path).Err(res.Err).Msg("upload failed permanently")
			return nil

		case models.OutcomeQuotaExhausted:
			// The credential is spent, not the job. Rotate and retry
			// without touching the transient budget.
			s.stats.RecordQuotaExhaustion()
			resetAt := time.Time{}
			if res.Quota != nil {
				resetAt = res.Quota.ResetAt
			}
			s.pool.Deactivate(cred, resetAt)
			s.pool.Advance(cred)
			s.log.Info().
				Str("credential", cred.Name()).
				Time("reset", resetAt).
				Msg("credential exhausted, rotating")
			continue

		case models.OutcomeAuthFailure:
			// Bad token, good job. Drop the credential for the rest of
			// the run and retry elsewhere.
			s.pool.Drop(cred)
			s.log.Warn().
				Str("credential", cred.Name()).
				Err(res.Err).
				Msg("credential rejected, dropped from pool")
			continue

		case models.OutcomeTransient:
			transientFailures++
			if s.retry.Exhausted(transientFailures) {
				s.stats.Record(res.Outcome, job.Size)
				s.log.Error().
					Str("path", job.Path).
					Int("attempts", transientFailures).
					Err(res.Err).
					Msg("retry budget exhausted")
				return nil
			}
			s.log.Debug().
				Str("path", job.Path).
				Int("attempt", transientFailures).
				Err(res.Err).
				Msg("transient failure, backing off")
			if err := s.retry.Wait(ctx, transientFailures); err != nil {
				return err
			}
			continue

		default:
			s.stats.Record(models.OutcomeFatal, job.Size)
			s.log.Error().
				Str("path", job.Path).
				Str("outcome", res.Outcome.String()).
				Msg("unexpected outcome")
			return nil
		}
	}
}
