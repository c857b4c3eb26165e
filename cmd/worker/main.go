package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/template-registry/config"
	"github.com/GoSim-25-26J-441/template-registry/internal/bootstrap"
	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "worker",
	Short:         "Template registry maintenance commands",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// withApp loads configuration, wires the service graph and runs fn.
func withApp(ctx context.Context, fn func(*bootstrap.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Options{Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})

	app, err := bootstrap.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logging.L().WithError(err).Error("command failed")
		os.Exit(1)
	}
}
