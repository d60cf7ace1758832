package fusion

import (
	"github.com/born-ml/patchformer/internal/nn"
	"github.com/born-ml/patchformer/internal/tensor"
)

// DescriptorEmbedder maps object descriptor ids to dense vectors.
//
// The table is usually shared with other parts of a larger model, so the
// encoder receives it rather than owning it.
type DescriptorEmbedder[B tensor.Backend] interface {
	// Lookup returns [...indices.shape, Dim()].
	Lookup(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B]
	// Dim is the width of each descriptor vector.
	Dim() int
}

// EmbeddingTable is a DescriptorEmbedder backed by an nn.Embedding.
type EmbeddingTable[B tensor.Backend] struct {
	*nn.Embedding[B]
}

// NewEmbeddingTable creates a randomly initialized descriptor table.
func NewEmbeddingTable[B tensor.Backend](vocab, dim int, backend B) *EmbeddingTable[B] {
	return &EmbeddingTable[B]{Embedding: nn.NewEmbedding(vocab, dim, backend)}
}

// Lookup embeds indices.
func (e *EmbeddingTable[B]) Lookup(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return e.Forward(indices)
}

// Dim returns the embedding width.
func (e *EmbeddingTable[B]) Dim() int {
	return e.EmbeddingDim
}

// Vocab returns the number of descriptor ids.
func (e *EmbeddingTable[B]) Vocab() int {
	return e.NumEmbeddings
}
