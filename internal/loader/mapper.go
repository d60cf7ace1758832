package loader

import (
	"fmt"
	"strconv"
	"strings"
)

// Architecture names.
const (
	ArchitecturePatchTransformer = "patch_transformer"
	ArchitectureNative           = "native"
)

// WeightMapper maps checkpoint-specific weight names to encoder state dict
// names.
type WeightMapper interface {
	// MapName converts a checkpoint weight name to the encoder name.
	// An empty result with a nil error means the tensor is not a weight
	// (a registered buffer) and should be skipped.
	MapName(name string) (string, error)

	// Architecture returns the architecture name.
	Architecture() string
}

// IdentityMapper keeps names unchanged. It is used for checkpoints written
// by this module.
type IdentityMapper struct{}

// MapName returns name unchanged.
func (IdentityMapper) MapName(name string) (string, error) {
	return name, nil
}

// Architecture returns "native".
func (IdentityMapper) Architecture() string {
	return ArchitectureNative
}

// TorchMapper maps PyTorch patch transformer parameter names to encoder
// names.
//
// PyTorch format:
//   - transformer.net.{2i}.fn.norm.weight      -> transformer.blocks.{i}.attn_norm.weight
//   - transformer.net.{2i}.fn.fn.qkv.weight    -> transformer.blocks.{i}.attn.qkv.weight
//   - transformer.net.{2i}.fn.fn.proj.bias     -> transformer.blocks.{i}.attn.proj.bias
//   - transformer.net.{2i+1}.fn.norm.weight    -> transformer.blocks.{i}.ffn_norm.weight
//   - transformer.net.{2i+1}.fn.fn.net.0.bias  -> transformer.blocks.{i}.ffn.fc1.bias
//   - transformer.net.{2i+1}.fn.fn.net.3.weight -> transformer.blocks.{i}.ffn.fc2.weight
//
// The position_ids and fixed pe buffers are skipped. Every other name
// (cls_token, linear_encoding.*, mlp_head.*, weight_embed.weight, ...)
// already matches.
type TorchMapper struct{}

// NewTorchMapper creates a new PyTorch weight mapper.
func NewTorchMapper() *TorchMapper {
	return &TorchMapper{}
}

// MapName converts a PyTorch parameter name to the encoder name.
func (m *TorchMapper) MapName(name string) (string, error) {
	// Buffers
	if strings.HasSuffix(name, ".position_ids") || name == "position_encoding.pe" {
		return "", nil
	}

	if rest, ok := strings.CutPrefix(name, "transformer.net."); ok {
		return m.mapLayerWeight(name, rest)
	}

	return name, nil
}

// mapLayerWeight maps one entry of the alternating attention/feed-forward
// sequence.
func (m *TorchMapper) mapLayerWeight(name, rest string) (string, error) {
	idxStr, tail, ok := strings.Cut(rest, ".")
	if !ok {
		return "", fmt.Errorf("unrecognized transformer weight %q", name)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return "", fmt.Errorf("unrecognized transformer weight %q: bad layer index %q", name, idxStr)
	}

	block := idx / 2
	prefix := fmt.Sprintf("transformer.blocks.%d.", block)

	// Residual(PreNormDrop(SelfAttention))
	if idx%2 == 0 {
		switch {
		case strings.HasPrefix(tail, "fn.norm."):
			return prefix + "attn_norm." + strings.TrimPrefix(tail, "fn.norm."), nil
		case tail == "fn.fn.qkv.weight":
			return prefix + "attn.qkv.weight", nil
		case strings.HasPrefix(tail, "fn.fn.proj."):
			return prefix + "attn.proj." + strings.TrimPrefix(tail, "fn.fn.proj."), nil
		}
		return "", fmt.Errorf("unrecognized attention weight %q", name)
	}

	// Residual(PreNorm(FeedForward))
	switch {
	case strings.HasPrefix(tail, "fn.norm."):
		return prefix + "ffn_norm." + strings.TrimPrefix(tail, "fn.norm."), nil
	case strings.HasPrefix(tail, "fn.fn.net.0."):
		return prefix + "ffn.fc1." + strings.TrimPrefix(tail, "fn.fn.net.0."), nil
	case strings.HasPrefix(tail, "fn.fn.net.3."):
		return prefix + "ffn.fc2." + strings.TrimPrefix(tail, "fn.fn.net.3."), nil
	}
	return "", fmt.Errorf("unrecognized feed-forward weight %q", name)
}

// Architecture returns "patch_transformer".
func (m *TorchMapper) Architecture() string {
	return ArchitecturePatchTransformer
}

// DetectArchitecture guesses the checkpoint layout from its weight names.
func DetectArchitecture(names []string) string {
	for _, name := range names {
		if strings.HasPrefix(name, "transformer.net.") {
			return ArchitecturePatchTransformer
		}
	}
	return ArchitectureNative
}

// GetMapper returns the weight mapper for an architecture.
func GetMapper(architecture string) WeightMapper {
	switch architecture {
	case ArchitecturePatchTransformer:
		return NewTorchMapper()
	default:
		return IdentityMapper{}
	}
}
