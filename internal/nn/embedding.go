package nn

import (
	"fmt"

	"github.com/born-ml/patchformer/internal/tensor"
)

// Embedding is a lookup table mapping integer ids to dense vectors.
//
// Example:
//
//	embed := nn.NewEmbedding(100, 64, backend)
//	ids, _ := tensor.FromSlice([]int32{3, 7}, tensor.Shape{1, 2, 1}, backend)
//	vectors := embed.Forward(ids) // [1, 2, 1, 64]
type Embedding[B tensor.Backend] struct {
	Weight        *Parameter[B] // [num_embeddings, embedding_dim]
	NumEmbeddings int
	EmbeddingDim  int
}

// NewEmbedding creates an embedding table initialized from N(0, 1).
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	if numEmbeddings <= 0 || embeddingDim <= 0 {
		panic(fmt.Sprintf("Embedding: sizes must be positive, got num=%d dim=%d", numEmbeddings, embeddingDim))
	}
	weight := Normal(tensor.Shape{numEmbeddings, embeddingDim}, 1, backend)
	return NewEmbeddingWithWeight(weight)
}

// NewEmbeddingWithWeight wraps an existing [num_embeddings, embedding_dim]
// table, e.g. one loaded from a checkpoint.
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Embedding: weight must be 2D, got %v", shape))
	}
	return &Embedding[B]{
		Weight:        NewParameter("weight", weight),
		NumEmbeddings: shape[0],
		EmbeddingDim:  shape[1],
	}
}

// Forward looks up every index, producing [...indices.shape, embedding_dim].
// Indices outside [0, NumEmbeddings) panic.
func (e *Embedding[B]) Forward(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return e.Weight.Tensor().Embedding(indices)
}

// Parameters returns the embedding table.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}

func (e *Embedding[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(e.Parameters())
}

func (e *Embedding[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(e.Parameters(), stateDict)
}
