// Package loader reads encoder checkpoints.
//
// This package implements readers for two weight formats:
//   - SafeTensors: the format written by this module (F32, F16, BF16, I32 and
//     I64 tensors are accepted)
//   - PyTorch: state_dict pickles saved by torch.save from the original
//     patch transformer
//
// Names in PyTorch checkpoints are translated to encoder state dict names by
// a WeightMapper, so a trained model can be loaded directly:
//
//	stateDict, err := loader.LoadStateDict("patch_transformer.pt", cpu.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := encoder.LoadStateDict(stateDict); err != nil {
//	    log.Fatal(err)
//	}
//
// Design principles:
//   - Pure Go: No CGO dependencies
//   - Untrusted input: SafeTensors headers are validated before any read
//   - Type safety: half precision widened to float32, int64 narrowed to int32
//     with range checks
package loader
