package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/born-ml/patchformer/internal/tensor"
)

// ErrUnknownFormat is returned when a checkpoint extension is not recognized.
var ErrUnknownFormat = errors.New("unknown checkpoint format")

// ModelFormat represents the checkpoint format.
type ModelFormat int

// Supported model formats.
const (
	FormatUnknown ModelFormat = iota
	FormatSafeTensors
	FormatTorch
)

// String returns the format name.
func (f ModelFormat) String() string {
	switch f {
	case FormatSafeTensors:
		return "SafeTensors"
	case FormatTorch:
		return "PyTorch"
	default:
		return "Unknown"
	}
}

// DetectFormat returns the format implied by the file extension.
func DetectFormat(path string) ModelFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".safetensors":
		return FormatSafeTensors
	case ".pt", ".pth", ".bin":
		return FormatTorch
	default:
		return FormatUnknown
	}
}

// tensorReader is what both checkpoint readers provide.
type tensorReader interface {
	Close() error
	Format() ModelFormat
	Metadata() map[string]string
	TensorNames() []string
	LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error)
}

// ModelReader provides a unified interface for loading checkpoint weights.
type ModelReader interface {
	// Close closes the underlying file.
	Close() error

	// Format returns the checkpoint format.
	Format() ModelFormat

	// Architecture returns the detected name layout (patch_transformer, native).
	Architecture() string

	// Metadata returns checkpoint metadata.
	Metadata() map[string]string

	// TensorNames returns all tensor names as stored in the file.
	TensorNames() []string

	// LoadTensor loads a tensor by its stored name.
	LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error)

	// Mapper returns the name mapper matching Architecture.
	Mapper() WeightMapper
}

type model struct {
	tensorReader
	architecture string
	mapper       WeightMapper
}

// Architecture returns the detected architecture.
func (m *model) Architecture() string {
	return m.architecture
}

// Mapper returns the detected weight mapper.
func (m *model) Mapper() WeightMapper {
	return m.mapper
}

// OpenModel opens a checkpoint and auto-detects the format from its
// extension. Supports .safetensors and PyTorch .pt/.pth/.bin files.
//
// Example:
//
//	model, err := loader.OpenModel("path/to/encoder.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	fmt.Printf("Format: %s\n", model.Format())
//	fmt.Printf("Architecture: %s\n", model.Architecture())
func OpenModel(path string) (ModelReader, error) {
	var (
		reader tensorReader
		err    error
	)
	switch DetectFormat(path) {
	case FormatSafeTensors:
		reader, err = NewSafeTensorsReader(path)
	case FormatTorch:
		reader, err = NewTorchReader(path)
	default:
		return nil, fmt.Errorf("%w: %s (expected .safetensors, .pt, .pth or .bin)", ErrUnknownFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	arch := DetectArchitecture(reader.TensorNames())
	return &model{
		tensorReader: reader,
		architecture: arch,
		mapper:       GetMapper(arch),
	}, nil
}

// LoadStateDict reads every tensor of the checkpoint at path, renamed by the
// detected mapper.
func LoadStateDict(path string, backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	return LoadStateDictWithMapper(path, nil, backend)
}

// LoadStateDictWithMapper is LoadStateDict with an explicit mapper. A nil
// mapper selects the detected one.
func LoadStateDictWithMapper(path string, mapper WeightMapper, backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	m, err := OpenModel(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = m.Close() }()

	if mapper == nil {
		mapper = m.Mapper()
	}
	return ReadStateDict(m, mapper, backend)
}

// ReadStateDict loads every tensor of an open model, renamed by mapper.
// Tensors the mapper skips are not loaded.
func ReadStateDict(m ModelReader, mapper WeightMapper, backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, name := range m.TensorNames() {
		mapped, err := mapper.MapName(name)
		if err != nil {
			return nil, err
		}
		if mapped == "" {
			continue
		}
		if _, dup := stateDict[mapped]; dup {
			return nil, fmt.Errorf("tensors map to duplicate name %q", mapped)
		}

		raw, err := m.LoadTensor(name, backend)
		if err != nil {
			return nil, err
		}
		stateDict[mapped] = raw
	}
	return stateDict, nil
}
