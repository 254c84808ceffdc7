package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datalytics/console/internal/app"
	"github.com/datalytics/console/internal/config"
)

var (
	flagConfig string
	flagEnv    string
	flagPort   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "console",
		Short:        "Datalytics admin console",
		Long:         "console serves the Datalytics admin console in front of the membership API.",
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (or CONSOLE_CONFIG env)")
	root.PersistentFlags().StringVar(&flagEnv, "env", "", "Environment (development, production); overrides ENV")
	root.PersistentFlags().StringVar(&flagPort, "port", "", "Listen port; overrides PORT")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newBatchCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console web server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(validate bool) (*config.Config, error) {
	cfg, err := config.Read(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagEnv != "" {
		cfg.Env = flagEnv
	}
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	return a.Start(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
