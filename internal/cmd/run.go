package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koalasec/photon-sync/internal/metrics"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the update daemon and manage the photon service",
		Long: `Run starts the photon service against the current dataset generation and
keeps it up to date on the configured interval. On a fresh data directory the
dataset is downloaded first unless INITIAL_DOWNLOAD=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics.Serve(app.cfg.MetricsAddr, app.log)

			app.log.Infof("photon-sync starting (strategy %s, region %q, data dir %s)",
				app.cfg.UpdateStrategy, app.cfg.Region, app.cfg.DataDir)

			return app.sched.RunForever(ctx)
		},
	}
}
