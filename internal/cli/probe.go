package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldline/bulkpush/internal/api"
	"github.com/fieldline/bulkpush/internal/credential"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Show current quota for every configured credential",
		Long: `Query the rate-limit endpoint for each credential and print the
remaining quota and reset time. Probes do not consume quota.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, err := api.NewClient(cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREDENTIAL\tREMAINING\tLIMIT\tRESET")
			for _, token := range cfg.Tokens {
				name := credential.Redact(token)
				quota, err := client.ReadQuota(cmd.Context(), token)
				if err != nil {
					fmt.Fprintf(tw, "%s\terror\t-\t%v\n", name, err)
					continue
				}
				reset := "-"
				if !quota.ResetAt.IsZero() {
					reset = quota.ResetAt.Local().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", name, quota.Remaining, quota.Limit, reset)
			}
			tw.Flush()
			return nil
		},
	}
}
