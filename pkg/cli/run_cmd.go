package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tidemark/internal/domain"
	"tidemark/internal/layers"
	"tidemark/internal/runner"
)

func newRunCmd() *cobra.Command {
	var (
		stream      string
		mode        string
		from        string
		to          string
		noWatermark bool
		all         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a layer incrementally or over an explicit range",
		Example: `  tidemark run --all
  tidemark run --stream ods_quotes
  tidemark run --stream dwd_daily --mode full --from 20240101 --to 20240131`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			if all {
				if mode != "incremental" {
					return domain.ErrConfiguration("--all only supports incremental mode")
				}
				return a.RunPipeline(ctx)
			}
			if stream == "" {
				return domain.ErrConfiguration("--stream is required (or pass --all)")
			}

			opts := runner.Options{}
			if opts.Lower, err = parseUnitFlag(from); err != nil {
				return err
			}
			if opts.Upper, err = parseUnitFlag(to); err != nil {
				return err
			}

			if err := layers.EnsureSchema(ctx, a.Warehouse); err != nil {
				return err
			}
			r, err := a.RunnerFor(stream, noWatermark)
			if err != nil {
				return err
			}

			switch mode {
			case "incremental":
				return r.RunIncremental(ctx, opts)
			case "full":
				return r.RunFull(ctx, opts)
			default:
				return domain.ErrConfiguration("unknown mode %q: want incremental or full", mode)
			}
		},
	}

	cmd.Flags().StringVar(&stream, "stream", "", "Stream to run (ods_quotes, dwd_daily, dws_metrics, feature_score)")
	cmd.Flags().StringVar(&mode, "mode", "incremental", "Run mode: incremental or full")
	cmd.Flags().StringVar(&from, "from", "", "Explicit lower bound (yyyymmdd)")
	cmd.Flags().StringVar(&to, "to", "", "Explicit upper bound (yyyymmdd)")
	cmd.Flags().BoolVar(&noWatermark, "no-watermark", false, "Suppress watermark writes (chunk workers)")
	cmd.Flags().BoolVar(&all, "all", false, "Run every stream incrementally in dependency order")

	return cmd
}

// parseUnitFlag parses an optional yyyymmdd flag; empty means unset.
func parseUnitFlag(v string) (domain.Unit, error) {
	if v == "" {
		return 0, nil
	}
	u, err := domain.ParseUnit(v)
	if err != nil {
		return 0, fmt.Errorf("invalid date flag %q: %w", v, err)
	}
	return u, nil
}
