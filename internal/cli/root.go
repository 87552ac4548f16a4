// Package cli provides the bulkpush command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fieldline/bulkpush/internal/config"
	"github.com/fieldline/bulkpush/internal/logging"
	"github.com/fieldline/bulkpush/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiBaseURL string
	repository string
	branch     string
	tokens     []string
	verbose    bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information - mirrors the version package, kept as package
// vars so the main package can override both at startup.
var (
	Version   = version.Version
	BuildTime = version.BuildTime
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bulkpush",
		Short: "Bulk file uploader with multi-credential scheduling",
		Long: `bulkpush ` + Version + ` - Built: ` + BuildTime + `
Uploads large file trees to a remote content repository, spreading the
work across a pool of independently rate-limited credentials.

Uploads are idempotent: re-running after an interruption skips files
that are already current on the remote.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultLogger()
			if verbose {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&repository, "repository", "r", "", "Target repository, owner/name (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&branch, "branch", "b", "", "Target branch (overrides config)")
	rootCmd.PersistentFlags().StringSliceVar(&tokens, "token", nil, "Credential token (repeatable, overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	// An empty path means "default location if present"; Load handles
	// the missing-file case by falling back to defaults plus env/flags.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if apiBaseURL != "" {
		cfg.APIBaseURL = apiBaseURL
	}
	if repository != "" {
		cfg.Repository = repository
	}
	if branch != "" {
		cfg.Branch = branch
	}
	if len(tokens) > 0 {
		cfg.Tokens = tokens
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the CLI with SIGINT/SIGTERM cancelling the root context.
// The first signal requests a graceful stop; the second one aborts.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "interrupted, finishing in-flight uploads (press again to abort)")
		cancelFunc()
		<-sigChan
		os.Exit(130)
	}()

	rootCmd := NewRootCmd()
	return rootCmd.ExecuteContext(rootContext)
}
