package cli

import (
	"github.com/spf13/cobra"

	"tidemark/internal/domain"
	"tidemark/internal/layers"
)

func newBackfillCmd() *cobra.Command {
	var (
		stream    string
		from      string
		to        string
		chunkSize int
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Backfill a historical range in parallel chunks",
		Long: `Partitions the range into disjoint chunks and runs one subprocess per
chunk with watermark writes suppressed. The shared watermark advances only
after every chunk has finished.`,
		Example: `  tidemark backfill --stream ods_quotes --from 20200101 --to 20231231`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			if stream == "" {
				return domain.ErrConfiguration("--stream is required")
			}
			lower, err := parseUnitFlag(from)
			if err != nil {
				return err
			}
			upper, err := parseUnitFlag(to)
			if err != nil {
				return err
			}

			if chunkSize > 0 {
				a.Cfg.ChunkSize = chunkSize
			}
			if workers > 0 {
				a.Cfg.ChunkWorkers = workers
			}

			// Chunk workers share the warehouse file; create tables up front
			// so they don't race on DDL.
			if err := layers.EnsureSchema(ctx, a.Warehouse); err != nil {
				return err
			}
			return a.DispatcherFor(stream).Run(ctx, lower, upper)
		},
	}

	cmd.Flags().StringVar(&stream, "stream", "", "Stream to backfill")
	cmd.Flags().StringVar(&from, "from", "", "Range start (yyyymmdd, required)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (yyyymmdd, required)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Units per chunk (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent chunk workers (default from config)")

	return cmd
}
