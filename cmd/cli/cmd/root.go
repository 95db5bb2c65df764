// Package cmd provides the CLI commands for the quota simulator.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/quota-simulator/internal/app"
	"github.com/warp/quota-simulator/internal/config"
	"github.com/warp/quota-simulator/internal/logging"
)

const version = "0.1.0"

// globals holds the persistent flags of one command tree.
type globals struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "quota-sim",
		Short: "Simulate consortium quota amortization",
		Long: `quota-sim projects the installments and total cost of a consortium quota
before and after contemplation, for standard and reduced-credit plans.

Examples:
  quota-sim tables list
  quota-sim simulate --table auto-std --credit 100000 --term 60 --pocket-bid 10000 --month 10
  quota-sim simulate --table auto-superlight --credit 100000 --term 80 --format markdown
  quota-sim serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (JSON, defaults when missing)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newSimulateCmd(g))
	rootCmd.AddCommand(newValidateCmd(g))
	rootCmd.AddCommand(newTablesCmd(g))
	rootCmd.AddCommand(newServeCmd(g))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (g *globals) init() error {
	cfg, err := config.Load(g.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	switch {
	case g.verbose:
		cfg.Logging.Level = "debug"
	case g.cfgFile == "":
		cfg.Logging.Level = "warn"
	}
	config.Set(cfg)
	g.cfg = cfg

	return logging.Initialize(cfg.Logging)
}

// open wires the application. ephemeral swaps the configured store for an
// in-memory one so one-off runs leave no history behind.
func (g *globals) open(ctx context.Context, ephemeral bool) (*app.App, error) {
	cfg := *g.cfg
	if ephemeral {
		cfg.Storage.Driver = config.DriverMemory
	}
	return app.New(ctx, &cfg, logging.Logger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quota-sim version %s\n", version)
		},
	}
}
