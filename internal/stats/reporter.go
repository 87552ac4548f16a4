package stats

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/fieldline/bulkpush/internal/credential"
	"github.com/fieldline/bulkpush/internal/logging"
)

// Reporter emits periodic progress while a run is active and a summary
// at the end. On a terminal it renders a progress bar on stderr; in a
// pipe or CI it falls back to periodic log lines.
type Reporter struct {
	stats    *RunStatistics
	pool     *credential.Pool
	log      *logging.Logger
	interval time.Duration

	bar  *progressbar.ProgressBar
	done chan struct{}
	wg   sync.WaitGroup
}

// NewReporter creates a reporter over the given statistics and pool.
func NewReporter(s *RunStatistics, pool *credential.Pool, log *logging.Logger, interval time.Duration) *Reporter {
	return &Reporter{
		stats:    s,
		pool:     pool,
		log:      log,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins periodic reporting for a run of totalFiles jobs.
func (r *Reporter) Start(totalFiles int) {
	r.stats.SetTotal(totalFiles)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		r.bar = progressbar.NewOptions(totalFiles,
			progressbar.OptionSetDescription("uploading"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.report()
			}
		}
	}()
}

// report emits one progress line (or bar update).
func (r *Reporter) report() {
	snap := r.stats.Snapshot()

	if r.bar != nil {
		_ = r.bar.Set64(snap.Done())
		return
	}

	r.log.Info().
		Int64("done", snap.Done()).
		Int("total", snap.Total).
		Int64("uploaded", snap.Uploaded).
		Int64("skipped", snap.Skipped).
		Int64("failed", snap.Failed).
		Int("active_credentials", r.pool.ActiveCount()).
		Int64("switches", r.pool.Switches()).
		Str("throughput", fmt.Sprintf("%.1f/s", snap.Throughput())).
		Msg("progress")
}

// Stop ends periodic reporting and finishes the bar.
func (r *Reporter) Stop() {
	close(r.done)
	r.wg.Wait()
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// Final logs the end-of-run summary: totals, throughput, quota events
// and the per-credential table.
func (r *Reporter) Final() {
	snap := r.stats.Snapshot()

	r.log.Info().
		Int64("uploaded", snap.Uploaded).
		Int64("skipped", snap.Skipped).
		Int64("failed", snap.Failed).
		Str("bytes", formatBytes(snap.Bytes)).
		Dur("elapsed", snap.Elapsed.Round(time.Second)).
		Str("throughput", fmt.Sprintf("%.1f/s", snap.Throughput())).
		Int64("account_switches", r.pool.Switches()).
		Int64("quota_exhaustions", snap.QuotaExhaustions).
		Msg("run complete")

	for reason, count := range snap.Reasons {
		r.log.Info().Str("reason", reason).Int64("count", count).Msg("non-upload outcome")
	}

	for _, c := range r.pool.Snapshot() {
		ev := r.log.Info().
			Str("credential", c.Name).
			Int64("uploads", c.Uploads).
			Bool("active", c.Active)
		if c.Dropped {
			ev = ev.Bool("dropped", true)
		}
		if c.QuotaKnown {
			ev = ev.Int("remaining", c.Remaining).Int("limit", c.Limit)
		}
		if c.Uploads > 0 {
			ev = ev.Dur("avg_latency", c.AvgLatency)
		}
		ev.Msg("credential summary")
	}
}

// formatBytes renders a byte count in a human unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
