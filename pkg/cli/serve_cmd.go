package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tidemark/internal/ops"
	"tidemark/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ops server, cron scheduler, and periodic reaper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			auditor, err := a.Auditor()
			if err != nil {
				return err
			}
			server := ops.NewServer(a.Cfg.ListenAddr, auditor, a.Watermarks, a.Runs, a.Metrics, a.Logger)

			if a.Cfg.ScheduleCron != "" {
				sched := scheduler.New(a, a.Guard, a.Cfg.Guard, a.Cfg.ScheduleCron, a.Logger)
				if err := sched.Start(); err != nil {
					return err
				}
				defer sched.Stop()
			}

			// Hourly zombie sweep; a crashed chunk worker or killed run
			// otherwise stays RUNNING forever.
			sweepCtx, cancelSweep := context.WithCancel(cmd.Context())
			defer cancelSweep()
			go func() {
				ticker := time.NewTicker(time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if _, err := a.Reaper.Sweep(sweepCtx, a.Cfg.ReaperAge, false); err != nil {
							a.Logger.Error("periodic sweep failed", "error", err)
						}
					case <-sweepCtx.Done():
						return
					}
				}
			}()

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				a.Logger.Info("shutting down", "signal", sig.String())
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}
}
