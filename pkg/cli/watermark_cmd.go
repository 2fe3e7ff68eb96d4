package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tidemark/internal/domain"
)

func newWatermarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Inspect and initialize stream watermarks",
	}
	cmd.AddCommand(newWatermarkListCmd(), newWatermarkInitCmd())
	return cmd
}

func newWatermarkListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stream watermarks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			wms, err := a.Watermarks.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(wms) == 0 {
				fmt.Println("no watermarks")
				return nil
			}
			for _, wm := range wms {
				lastErr := ""
				if wm.LastErr != nil {
					lastErr = " err=" + *wm.LastErr
				}
				fmt.Printf("%-16s %s %-8s last_run=%s%s\n",
					wm.StreamName, wm.WaterMark, wm.Status,
					wm.LastRunAt.Format("2006-01-02 15:04:05"), lastErr)
			}
			return nil
		},
	}
}

func newWatermarkInitCmd() *cobra.Command {
	var (
		stream   string
		boundary string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a stream's watermark to an explicit boundary",
		Long: `Creates the watermark for a stream that has never run. The boundary is
the last unit considered done; incremental runs start at the next open date.`,
		Example: `  tidemark watermark init --stream ods_quotes --boundary 20231229`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if stream == "" {
				return domain.ErrConfiguration("--stream is required")
			}
			u, err := domain.ParseUnit(boundary)
			if err != nil {
				return err
			}
			if err := a.Watermarks.Init(cmd.Context(), stream, u); err != nil {
				return err
			}
			fmt.Printf("initialized %s at %s\n", stream, u)
			return nil
		},
	}

	cmd.Flags().StringVar(&stream, "stream", "", "Stream name")
	cmd.Flags().StringVar(&boundary, "boundary", "", "Boundary unit (yyyymmdd)")

	return cmd
}
