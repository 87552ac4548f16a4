// Package stats tracks run statistics and reports them periodically.
package stats

import (
	"sync"
	"time"

	"github.com/fieldline/bulkpush/internal/models"
)

// RunStatistics accumulates counters over one run. Each job contributes
// to exactly one terminal counter; the scheduler records a job once,
// when it reaches a terminal state.
type RunStatistics struct {
	mu sync.Mutex

	started time.Time
	total   int

	uploaded int64
	failed   int64
	skipped  int64
	bytes    int64

	quotaExhaustions int64

	// reasons breaks skipped and failed jobs down by outcome name.
	reasons map[string]int64
}

// New creates statistics with the clock started now.
func New() *RunStatistics {
	return &RunStatistics{
		started: time.Now(),
		reasons: make(map[string]int64),
	}
}

// SetTotal records the planned job count, for progress percentages.
func (s *RunStatistics) SetTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = n
}

// Record registers a job's terminal outcome. Uploaded bytes are only
// counted for outcomes that actually wrote.
func (s *RunStatistics) Record(outcome models.Outcome, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch outcome {
	case models.OutcomeCreated, models.OutcomeUpdated:
		s.uploaded++
		s.bytes += size
	case models.OutcomeAlreadyCurrent, models.OutcomeTooLarge:
		s.skipped++
		s.reasons[outcome.String()]++
	case models.OutcomeTransient, models.OutcomeAuthFailure, models.OutcomeFatal, models.OutcomeQuotaExhausted:
		s.failed++
		s.reasons[outcome.String()]++
	}
}

// RecordQuotaExhaustion counts one credential hitting its limit. This
// is an event counter, not a job counter; the job itself is retried.
func (s *RunStatistics) RecordQuotaExhaustion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotaExhaustions++
}

// Snapshot is a consistent point-in-time copy of the counters.
type Snapshot struct {
	Total            int
	Uploaded         int64
	Failed           int64
	Skipped          int64
	Bytes            int64
	QuotaExhaustions int64
	Elapsed          time.Duration
	Reasons          map[string]int64
}

// Done returns the number of jobs in a terminal state.
func (sn Snapshot) Done() int64 {
	return sn.Uploaded + sn.Failed + sn.Skipped
}

// Throughput returns uploads per second over the elapsed time.
func (sn Snapshot) Throughput() float64 {
	secs := sn.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(sn.Uploaded) / secs
}

// Snapshot returns a copy of the current counters.
func (s *RunStatistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	reasons := make(map[string]int64, len(s.reasons))
	for k, v := range s.reasons {
		reasons[k] = v
	}
	return Snapshot{
		Total:            s.total,
		Uploaded:         s.uploaded,
		Failed:           s.failed,
		Skipped:          s.skipped,
		Bytes:            s.bytes,
		QuotaExhaustions: s.quotaExhaustions,
		Elapsed:          time.Since(s.started),
		Reasons:          reasons,
	}
}
