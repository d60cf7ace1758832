package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/loader"
	"github.com/born-ml/patchformer/internal/serialization"
)

type convertOptions struct {
	arch  string
	check bool
}

func (a *app) convertCmd() *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert <checkpoint> <output.safetensors>",
		Short: "Convert a checkpoint to safetensors with encoder weight names",
		Long: `Reads a PyTorch state dict (.pt, .pth, .bin) or a safetensors file, renames
the weights to the encoder layout and writes them as safetensors.

The name layout is detected from the tensor names unless --arch is given.
With --check the converted weights are loaded into an encoder built from the
config, so missing or mis-shaped tensors are reported before writing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.runConvert(args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d tensors to %s\n", n, args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.arch, "arch", "",
		fmt.Sprintf("weight layout: %s or %s (default detected)", loader.ArchitecturePatchTransformer, loader.ArchitectureNative))
	cmd.Flags().BoolVar(&opts.check, "check", false, "verify the weights against the configured encoder")
	return cmd
}

func (a *app) runConvert(src, dst string, opts convertOptions) (int, error) {
	if loader.DetectFormat(dst) != loader.FormatSafeTensors {
		return 0, fmt.Errorf("output %s must have a .safetensors extension", dst)
	}

	m, err := loader.OpenModel(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = m.Close() }()

	arch := m.Architecture()
	switch opts.arch {
	case "":
	case loader.ArchitecturePatchTransformer, loader.ArchitectureNative:
		arch = opts.arch
	default:
		return 0, fmt.Errorf("unknown architecture %q", opts.arch)
	}
	a.log.Info("converting",
		zap.String("source", src),
		zap.Stringer("format", m.Format()),
		zap.String("architecture", arch),
		zap.Int("tensors", len(m.TensorNames())),
	)

	stateDict, err := loader.ReadStateDict(m, loader.GetMapper(arch), cpu.New())
	if err != nil {
		return 0, err
	}

	if opts.check {
		cfg, err := a.loadConfig()
		if err != nil {
			return 0, err
		}
		cfg.Weights = ""
		enc, err := cfg.NewEncoder()
		if err != nil {
			return 0, err
		}
		if err := enc.LoadStateDict(stateDict); err != nil {
			return 0, fmt.Errorf("check: %w", err)
		}
	}

	metadata := map[string]string{
		"source":       filepath.Base(src),
		"architecture": arch,
	}
	if err := serialization.WriteSafeTensors(dst, stateDict, metadata); err != nil {
		return 0, fmt.Errorf("write %s: %w", dst, err)
	}
	return len(stateDict), nil
}
