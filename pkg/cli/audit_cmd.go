package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tidemark/internal/domain"
)

func newAuditCmd() *cobra.Command {
	var (
		expected     string
		failOnIssues bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report per-layer freshness and pipeline readiness",
		Example: `  tidemark audit --expected 20240105
  tidemark audit --expected 20240105 --fail-on-issues`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			var exp *domain.Unit
			if expected != "" {
				u, err := domain.ParseUnit(expected)
				if err != nil {
					return err
				}
				exp = &u
			}

			auditor, err := a.Auditor()
			if err != nil {
				return err
			}
			status, err := auditor.CheckPipeline(cmd.Context(), exp)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(status); err != nil {
					return err
				}
			} else {
				printStatus(status)
			}

			if failOnIssues && !status.IsHealthy {
				return fmt.Errorf("pipeline unhealthy: %s", status.Summary)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&expected, "expected", "", "Expected processing unit (yyyymmdd)")
	cmd.Flags().BoolVar(&failOnIssues, "fail-on-issues", false, "Exit non-zero when any layer is unhealthy")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")

	return cmd
}

func printStatus(status *domain.PipelineStatus) {
	fmt.Printf("pipeline: %s\n", status.Summary)
	for _, l := range status.Layers {
		ready := "not ready"
		if l.ReadyForNext {
			ready = "ready"
		}
		wm := "-"
		if l.WaterMark != nil {
			wm = l.WaterMark.String()
		}
		fmt.Printf("  %-10s healthy=%-5v watermark=%s (%s)\n", l.Layer, l.IsHealthy, wm, ready)
		for _, t := range l.Tables {
			max := "-"
			if t.MaxUnit != nil {
				max = t.MaxUnit.String()
			}
			marker := " "
			if t.Core {
				marker = "*"
			}
			fmt.Printf("    %s %-24s %-8s rows=%-10d max=%s %s\n",
				marker, t.Table, t.State, t.RowCount, max, t.Detail)
		}
	}
}
