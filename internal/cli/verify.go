package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fieldline/bulkpush/internal/api"
	"github.com/fieldline/bulkpush/internal/credential"
	"github.com/fieldline/bulkpush/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every configured credential against the remote",
		Long: `Run the pre-flight checks for each credential: authentication,
remaining quota and push access to the target repository. Exits
non-zero when no credential is usable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, err := api.NewClient(cfg)
			if err != nil {
				return err
			}

			pool := credential.NewPool(cfg.Tokens, cfg.LowWaterMark)
			results := verify.Credentials(cmd.Context(), client, pool, logger, cfg.LowWaterMark)

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREDENTIAL\tSTATUS\tREMAINING\tDETAIL")
			usable := 0
			for _, r := range results {
				status := "ok"
				detail := ""
				if r.OK {
					usable++
				} else {
					status = "failed"
					detail = r.Err.Error()
				}
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", r.Name, status, r.Quota.Remaining, r.Quota.Limit, detail)
			}
			tw.Flush()

			if usable == 0 {
				return fmt.Errorf("no usable credentials")
			}
			logger.Info().Int("usable", usable).Int("total", len(results)).Msg("verification complete")
			return nil
		},
	}
}
