package cpu

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/parallel"
	"github.com/born-ml/patchformer/internal/tensor"
)

// Embedding performs embedding lookup.
// weight: [numEmbeddings, embeddingDim]
// indices: any shape of int32 indices
// output: [...indices.shape, embeddingDim]
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must be int32, got %s", indices.DType()))
	}
	requireFloat32("embedding", weight)

	weightShape := weight.Shape()
	if len(weightShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D, got shape %v", weightShape))
	}
	numEmbeddings, embeddingDim := weightShape[0], weightShape[1]

	ids := indices.AsInt32()
	for _, idx := range ids {
		if idx < 0 || int(idx) >= numEmbeddings {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, numEmbeddings))
		}
	}

	indicesShape := indices.Shape()
	outShape := make(tensor.Shape, len(indicesShape)+1)
	copy(outShape, indicesShape)
	outShape[len(outShape)-1] = embeddingDim

	result := tensor.MustNewRaw("embedding", outShape, tensor.Float32, cpu.device)
	dst, table := result.AsFloat32(), weight.AsFloat32()

	parallel.For(len(ids), func(i int) {
		src := int(ids[i]) * embeddingDim
		copy(dst[i*embeddingDim:(i+1)*embeddingDim], table[src:src+embeddingDim])
	}, cpu.parallel)

	return result
}
