package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/config"
	"github.com/born-ml/patchformer/internal/fusion"
	"github.com/born-ml/patchformer/internal/loader"
	"github.com/born-ml/patchformer/internal/serialization"
	"github.com/born-ml/patchformer/internal/tensor"
)

// Tensor names in encode input and output files.
const (
	inputPatches     = "patches"
	inputObjects     = "objects"
	inputDescriptors = "descriptors"
	outputEmbeddings = "embeddings"
	outputLogits     = "logits"
)

type encodeOptions struct {
	input    string
	output   string
	random   bool
	batch    int
	objects  int
	classify bool
}

func (a *app) encodeCmd() *cobra.Command {
	var opts encodeOptions

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode patches and objects into fused embeddings",
		Long: `Runs the encoder over a batch and writes the result as safetensors.

The input file holds three tensors:
  patches      F32 [batch, num_patches, patch_dim]
  objects      F32 [batch, count, obj_dim]
  descriptors  I32 or I64 [batch, count, 1]

With --random the inputs are sampled instead. The output holds "embeddings"
and, with --classify, the head output "logits".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.runEncode(cmd.Context(), opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input safetensors file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output safetensors file")
	cmd.Flags().BoolVar(&opts.random, "random", false, "sample random inputs instead of reading --input")
	cmd.Flags().IntVar(&opts.batch, "batch", 1, "batch size for --random")
	cmd.Flags().IntVar(&opts.objects, "objects", 0, "object count for --random (0 means obj_max_num)")
	cmd.Flags().BoolVar(&opts.classify, "classify", false, "also write classification head logits")
	_ = cmd.MarkFlagRequired("output")
	cmd.MarkFlagsMutuallyExclusive("input", "random")

	return cmd
}

func (a *app) runEncode(ctx context.Context, opts encodeOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	enc, err := cfg.NewEncoder()
	if err != nil {
		return err
	}

	var in fusion.Input[*cpu.CPUBackend]
	switch {
	case opts.random:
		in, err = randomInput(cfg, enc.Backend(), opts.batch, opts.objects)
	case opts.input != "":
		in, err = readInput(opts.input, enc.Backend())
	default:
		err = errors.New("either --input or --random is required")
	}
	if err != nil {
		return err
	}

	res, err := enc.Encode(ctx, in)
	if err != nil {
		return err
	}
	a.log.Info("encoded",
		zap.Int("batch", res.Embeddings.Shape()[0]),
		zap.Int("sequence", res.Embeddings.Shape()[1]),
		zap.Duration("elapsed", res.Elapsed),
	)

	out := map[string]*tensor.RawTensor{outputEmbeddings: res.Embeddings.Raw()}
	if opts.classify {
		out[outputLogits] = enc.Classify(res.Embeddings).Raw()
	}

	metadata := map[string]string{
		"num_patches": strconv.Itoa(cfg.Model.NumPatches),
		"objects":     strconv.Itoa(in.Objects.Shape()[1]),
	}
	if err := serialization.WriteSafeTensors(opts.output, out, metadata); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	return nil
}

// randomInput samples a batch: normal patch and object features and uniform
// descriptor indices.
func randomInput(cfg *config.Config, backend *cpu.CPUBackend, batch, count int) (fusion.Input[*cpu.CPUBackend], error) {
	if count == 0 {
		count = cfg.Model.ObjMaxNum
	}
	if batch <= 0 || count < 0 {
		return fusion.Input[*cpu.CPUBackend]{}, fmt.Errorf("invalid random input: batch %d, objects %d", batch, count)
	}

	descriptors := tensor.Zeros[int32](tensor.Shape{batch, count, 1}, backend)
	dist := distuv.Uniform{Min: 0, Max: float64(cfg.Descriptors.Vocab)}
	data := descriptors.Data()
	for i := range data {
		data[i] = int32(min(math.Floor(dist.Rand()), float64(cfg.Descriptors.Vocab-1)))
	}

	return fusion.Input[*cpu.CPUBackend]{
		Patches:     tensor.Randn[float32](tensor.Shape{batch, cfg.Model.NumPatches, cfg.Model.PatchDim}, backend),
		Objects:     tensor.Randn[float32](tensor.Shape{batch, count, cfg.Model.ObjDim}, backend),
		Descriptors: descriptors,
	}, nil
}

// readInput loads the three input tensors from a safetensors file.
func readInput(path string, backend *cpu.CPUBackend) (fusion.Input[*cpu.CPUBackend], error) {
	var in fusion.Input[*cpu.CPUBackend]

	r, err := loader.NewSafeTensorsReader(path)
	if err != nil {
		return in, err
	}
	defer func() { _ = r.Close() }()

	load := func(name string, dtype tensor.DataType) (*tensor.RawTensor, error) {
		raw, err := r.LoadTensor(name, backend)
		if err != nil {
			return nil, err
		}
		if raw.DType() != dtype {
			return nil, fmt.Errorf("tensor %s: expected %s, got %s", name, dtype, raw.DType())
		}
		return raw, nil
	}

	patches, err := load(inputPatches, tensor.Float32)
	if err != nil {
		return in, err
	}
	objects, err := load(inputObjects, tensor.Float32)
	if err != nil {
		return in, err
	}
	descriptors, err := load(inputDescriptors, tensor.Int32)
	if err != nil {
		return in, err
	}

	in.Patches = tensor.New[float32](patches, backend)
	in.Objects = tensor.New[float32](objects, backend)
	in.Descriptors = tensor.New[int32](descriptors, backend)
	return in, nil
}
