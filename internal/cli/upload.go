package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldline/bulkpush/internal/api"
	"github.com/fieldline/bulkpush/internal/config"
	"github.com/fieldline/bulkpush/internal/constants"
	"github.com/fieldline/bulkpush/internal/credential"
	"github.com/fieldline/bulkpush/internal/models"
	"github.com/fieldline/bulkpush/internal/scheduler"
	"github.com/fieldline/bulkpush/internal/stats"
	"github.com/fieldline/bulkpush/internal/verify"
	"github.com/fieldline/bulkpush/internal/walker"
)

func newUploadCmd() *cobra.Command {
	var (
		dryRun  bool
		workers int
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "upload <directory>",
		Short: "Upload a directory tree to the remote repository",
		Long: `Upload every file under the given directory, distributing the work
across the configured credential pool. Files already current on the
remote are skipped, so interrupted runs can simply be re-run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if len(exclude) > 0 {
				cfg.ExcludePatterns = append(cfg.ExcludePatterns, exclude...)
			}
			return runUpload(cmd.Context(), cfg, args[0], dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be uploaded without calling the API")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent upload lanes (0 = one per credential)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Additional exclude pattern (repeatable)")

	return cmd
}

func runUpload(ctx context.Context, cfg *config.Config, root string, dryRun bool) error {
	w, err := walker.New(root, cfg.ExcludePatterns, logger)
	if err != nil {
		return err
	}

	if dryRun {
		return runDryRun(ctx, w)
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return err
	}

	pool := credential.NewPool(cfg.Tokens, cfg.LowWaterMark)
	results := verify.Credentials(ctx, client, pool, logger, cfg.LowWaterMark)
	usable := 0
	for _, r := range results {
		if r.OK {
			usable++
		}
	}
	if usable == 0 {
		return fmt.Errorf("no credential passed verification (%d checked)", len(results))
	}
	logger.Info().Int("usable", usable).Int("total", len(results)).Msg("credentials verified")

	totalFiles, totalBytes, err := w.Count(ctx)
	if err != nil {
		return fmt.Errorf("enumeration failed: %w", err)
	}
	logger.Info().
		Int("files", totalFiles).
		Int64("bytes", totalBytes).
		Str("root", w.Root()).
		Msg("starting upload")

	st := stats.New()
	prober := credential.NewProber(client, pool, logger, cfg.ProbeBackoff)
	retry := scheduler.NewRetryPolicy(cfg.RetryBudget, constants.RetryInitialDelay, constants.RetryMaxDelay)
	sched := scheduler.New(client, pool, prober, st, logger, retry, cfg.Workers)

	reporter := stats.NewReporter(st, pool, logger, constants.DefaultReportInterval)
	reporter.Start(totalFiles)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan models.UploadJob)
	walkErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		walkErr <- w.Walk(runCtx, func(job models.UploadJob) error {
			select {
			case jobs <- job:
				return nil
			case <-runCtx.Done():
				return runCtx.Err()
			}
		})
	}()

	runErr := sched.Run(runCtx, jobs)
	cancel()
	<-walkErr

	reporter.Stop()
	reporter.Final()

	if runErr != nil {
		return runErr
	}
	if snap := st.Snapshot(); snap.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", snap.Failed, snap.Total)
	}
	return nil
}

func runDryRun(ctx context.Context, w *walker.Walker) error {
	files := 0
	var bytes int64
	err := w.Walk(ctx, func(job models.UploadJob) error {
		logger.Info().Str("path", job.Path).Int64("size", job.Size).Msg("would upload")
		files++
		bytes += job.Size
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info().Int("files", files).Int64("bytes", bytes).Msg("dry run complete")
	return nil
}
