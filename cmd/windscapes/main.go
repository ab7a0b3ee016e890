package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"windscapes-barcode/internal/config"
	"windscapes-barcode/internal/logger"
)

var version = "dev"

type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	root := &cobra.Command{
		Use:           "windscapes",
		Short:         "Barcode labels and scanning for the Windscapes nursery ERP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(opts)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.json", "config file (.json or .toml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "environment file loaded before the config")

	root.AddCommand(
		newServeCommand(a),
		newPrintCommand(a),
		newResolveCommand(a),
		newRenderCommand(a),
		newPortsCommand(a),
		newScanCommand(a),
		newVerifyOrderCommand(a),
		newHashKeyCommand(),
	)
	return root
}

func (a *app) init(opts *rootOptions) error {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	if err := logger.InitializeLogger(logger.LoggerConfig{
		Level:       logger.ParseLevel(cfg.Logging.Level),
		Service:     "windscapes-barcode",
		Version:     version,
		Environment: cfg.Server.Mode,
		OutputPath:  cfg.Logging.File,
	}); err != nil {
		return err
	}
	a.log = logger.GlobalLogger
	return nil
}
