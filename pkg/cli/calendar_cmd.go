package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCalendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Manage the local trading calendar",
	}
	cmd.AddCommand(newCalendarSyncCmd())
	return cmd
}

func newCalendarSyncCmd() *cobra.Command {
	var (
		from string
		to   string
	)

	cmd := &cobra.Command{
		Use:     "sync",
		Short:   "Sync the trading calendar from the upstream source",
		Example: `  tidemark calendar sync --from 20200101 --to 20261231`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			lower, err := parseUnitFlag(from)
			if err != nil {
				return err
			}
			upper, err := parseUnitFlag(to)
			if err != nil {
				return err
			}

			client, err := a.SourceClient()
			if err != nil {
				return err
			}
			days, err := client.TradeCalendar(ctx, lower, upper)
			if err != nil {
				return err
			}
			if err := a.Calendar.ReplaceRange(ctx, days); err != nil {
				return err
			}
			fmt.Printf("synced %d calendar day(s)\n", len(days))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Range start (yyyymmdd)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (yyyymmdd)")

	return cmd
}
