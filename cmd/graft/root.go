package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/graft/engine"
	"github.com/chazu/graft/internal/fixture"
	"github.com/chazu/graft/internal/logging"
	"github.com/chazu/graft/manifest"
	"github.com/chazu/graft/trace"
	"github.com/chazu/graft/vm"
)

var (
	configDir string
	verbosity int

	// cfg is loaded before every subcommand runs.
	cfg *manifest.Manifest
)

var rootCmd = &cobra.Command{
	Use:   "graft",
	Short: "Hook methods of a running object runtime.",
	Long: `graft installs replacements on methods of a live runtime, ` +
		`dispatches every call through them and removes them again. ` +
		`Configuration is read from the nearest graft.toml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifest.FindAndLoad(configDir)
		if err != nil {
			return err
		}
		if m == nil {
			m = manifest.Default()
		}
		if cmd.Flags().Changed("verbose") {
			m.Log.Verbosity = verbosity
		}
		cfg = m

		logCfg := m.Log
		logCfg.File = m.LogFile()
		logging.Configure(logCfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory to search for graft.toml")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "log verbosity (overrides graft.toml)")
}

// newRuntime builds the fixture classes on a VM and an engine configured
// from graft.toml.
func newRuntime() (*fixture.Fixture, *engine.Engine, error) {
	f, err := fixture.New(vm.WithTierThreshold(cfg.Runtime.TierThreshold))
	if err != nil {
		return nil, nil, fmt.Errorf("building runtime: %w", err)
	}
	e := engine.New(f.VM, engine.WithStacking(cfg.Engine.AllowStacking))
	return f, e, nil
}

// openTracer opens the configured trace sink, or returns nil when tracing
// is off.
func openTracer(ctx context.Context) (trace.Tracer, error) {
	return trace.Open(ctx, cfg.Trace, cfg.TracePath())
}
