package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/template-registry/internal/bootstrap"
	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/reconcile"
)

var reconcileOnce bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fail template builds that exceeded BUILD_TIMEOUT",
	Long: `Mark pending and building templates whose last update is older than
BUILD_TIMEOUT as failed.

By default the command runs on BUILD_RECONCILE_SPEC until interrupted.
Use --once to run a single pass and exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withApp(ctx, func(app *bootstrap.App) error {
			build := app.Config.Build
			scheduler := reconcile.NewScheduler(app.Templates, build.ReconcileSpec, build.Timeout, build.ReconcileBatch)

			if reconcileOnce {
				n := scheduler.RunOnce(ctx)
				logging.L().WithField("count", n).Info("reconcile pass finished")
				return nil
			}

			if err := scheduler.Start(); err != nil {
				return err
			}
			<-ctx.Done()
			scheduler.Stop()
			return nil
		})
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileOnce, "once", false, "run a single reconcile pass and exit")
	rootCmd.AddCommand(reconcileCmd)
}
