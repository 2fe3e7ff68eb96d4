// Package cli implements the tidemark command tree.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tidemark/internal/app"
	"tidemark/internal/config"
	"tidemark/internal/db"
)

// Execute runs the CLI and returns the process exit code: 0 on success,
// non-zero on any unrecovered failure.
func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tidemark",
		Short:         "Incremental market-data warehouse pipeline",
		Long:          "Tidemark ingests market data into a layered warehouse (ods → dwd → dws → feature)\nwith watermark-based incremental processing, chunked backfill, and health auditing.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newRunCmd(),
		newBackfillCmd(),
		newAuditCmd(),
		newReapCmd(),
		newWatermarkCmd(),
		newCalendarCmd(),
		newServeCmd(),
	)
	return cmd
}

// openApp loads config, opens both stores, and wires the engine. The caller
// must invoke the returned cleanup.
func openApp() (*app.App, func(), error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	control, err := db.OpenControl(cfg.ControlDBPath)
	if err != nil {
		return nil, nil, err
	}
	warehouse, err := db.OpenWarehouse(cfg.WarehouseDBPath)
	if err != nil {
		control.Close()
		return nil, nil, err
	}

	a := app.New(app.Deps{
		Cfg:       cfg,
		Control:   control,
		Warehouse: warehouse,
		Logger:    logger,
	})
	cleanup := func() {
		closeQuietly(warehouse)
		closeQuietly(control)
	}
	return a, cleanup, nil
}

func closeQuietly(conn *sql.DB) {
	_ = conn.Close()
}
