package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReapCmd() *cobra.Command {
	var (
		age    time.Duration
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Mark stale RUNNING ledger and guard rows as FAILED",
		Long: `A crashed worker leaves its run-ledger and guard rows RUNNING forever,
which misleads audits. Reap transitions rows older than --age to FAILED.`,
		Example: `  tidemark reap --age 6h --dry-run
  tidemark reap --age 6h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if age == 0 {
				age = a.Cfg.ReaperAge
			}
			res, err := a.Reaper.Sweep(cmd.Context(), age, dryRun)
			if err != nil {
				return err
			}

			verb := "reaped"
			if res.DryRun {
				verb = "would reap"
			}
			fmt.Printf("%s %d run-ledger row(s), %d guard record(s)\n",
				verb, len(res.RunLogIDs), len(res.GuardKeys))
			for _, id := range res.RunLogIDs {
				fmt.Printf("  run_log id=%d\n", id)
			}
			for _, k := range res.GuardKeys {
				fmt.Printf("  guard %s/%s\n", k.TaskName, k.IdempotencyKey)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&age, "age", 0, "Age threshold (default from config, 6h)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report affected rows without mutating")

	return cmd
}
