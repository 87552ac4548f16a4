package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldline/bulkpush/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the bulkpush configuration file",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}

			cfg := config.Default()
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

			if err := config.Save(cfg, path); err != nil {
				return err
			}
			logger.Info().Str("path", path).Msg("configuration written")
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (tokens redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Printf("api_url:        %s\n", cfg.APIBaseURL)
			fmt.Printf("repository:     %s\n", cfg.Repository)
			fmt.Printf("branch:         %s\n", cfg.Branch)
			fmt.Printf("tokens:         %d configured\n", len(cfg.Tokens))
			fmt.Printf("low_water_mark: %d\n", cfg.LowWaterMark)
			fmt.Printf("retry_budget:   %d\n", cfg.RetryBudget)
			fmt.Printf("probe_backoff:  %s\n", cfg.ProbeBackoff)
			fmt.Printf("workers:        %d\n", cfg.Workers)
			fmt.Printf("max_payload:    %d bytes\n", cfg.MaxPayloadBytes)
			fmt.Printf("exclude:        %v\n", cfg.ExcludePatterns)
			if cfg.ProxyMode != "" {
				fmt.Printf("proxy_mode:     %s\n", cfg.ProxyMode)
			}
			return nil
		},
	})

	return configCmd
}
