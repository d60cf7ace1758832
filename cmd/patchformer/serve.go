package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/patchformer/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr     string
		maxBatch int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the encoder over HTTP",
		Long: `Starts an HTTP server exposing:

  GET  /api/info      encoder configuration and parameter count
  POST /api/encode    fused embeddings for a JSON batch
  POST /api/classify  classification head logits for a JSON batch

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("max-batch") {
				cfg.Server.MaxBatch = maxBatch
			}

			enc, err := cfg.NewEncoder()
			if err != nil {
				return err
			}
			a.log.Info("encoder ready",
				zap.Int("parameters", enc.NumParameters()),
				zap.Int("max_sequence_length", cfg.Model.MaxSequenceLength()),
				zap.String("weights", cfg.Weights),
			)

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
			}
			return server.New(enc, cfg.Server.MaxBatch, a.log).Serve(cmd.Context(), ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides the config)")
	cmd.Flags().IntVar(&maxBatch, "max-batch", 0, "largest accepted batch, 0 for unlimited (overrides the config)")
	return cmd
}
