package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Lattice executes typed node graphs",
	Long: `Lattice loads graphs of typed nodes from YAML or JSON files, validates them,
orders them by dependency and executes them, wiring each node's outputs into
its dependents' inputs.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the lattice configuration file")
	rootCmd.PersistentFlags().String("dir", "", "Directory containing graph files (overrides graphs_dir)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags().Changed("config"))
	if err != nil {
		return cfg, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.GraphsDir = dir
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	if cmd.Flags().Lookup("parallelism") != nil && cmd.Flags().Changed("parallelism") {
		cfg.Engine.Parallelism, _ = cmd.Flags().GetInt("parallelism")
	}
	if cmd.Flags().Lookup("timeout") != nil && cmd.Flags().Changed("timeout") {
		cfg.Engine.NodeTimeout, _ = cmd.Flags().GetDuration("timeout")
	}
	return cfg, cfg.Validate()
}

// setup builds the runtime for a command. The caller closes it.
func setup(cmd *cobra.Command) (*cli.Runtime, *cli.SignalContext, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewWithOptions(logging.Options{Level: level, Format: logging.Format(cfg.Log.Format)})

	ctx := cli.NewSignalContext(cmd.Context())
	rt, err := cli.NewRuntime(ctx, cfg, logger)
	if err != nil {
		ctx.Cancel()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return rt, ctx, nil
}

// withRuntime runs fn with a runtime and releases it afterwards.
func withRuntime(cmd *cobra.Command, fn func(*cli.Runtime, *cli.SignalContext) error) error {
	rt, ctx, err := setup(cmd)
	if err != nil {
		return err
	}
	defer ctx.Cancel()
	defer func() {
		if cerr := rt.Close(context.Background()); cerr != nil {
			rt.Logger.Warn("failed to release resources", "err", cerr)
		}
	}()
	return fn(rt, ctx)
}
