package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/born-ml/patchformer/internal/config"
)

// app carries the global flags and the logger shared by all commands.
type app struct {
	configPath string
	verbose    bool
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "patchformer",
		Short: "Patch/object fusion encoder",
		Long: `patchformer runs a transformer encoder that fuses image patch features with
object features and their descriptor embeddings into one token sequence.

Settings come from a YAML config file (see "patchformer config init") and the
PATCHFORMER_WEIGHTS, PATCHFORMER_ADDR and PATCHFORMER_WORKERS variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			if a.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			log, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "patchformer.yaml", "config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.encodeCmd(),
		a.summaryCmd(),
		a.convertCmd(),
		a.serveCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	a.log.Debug("config loaded", zap.String("path", a.configPath), zap.String("weights", cfg.Weights))
	return cfg, nil
}
