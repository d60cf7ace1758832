package fusion

import (
	"context"
	"fmt"
	"time"

	"github.com/born-ml/patchformer/internal/tensor"
)

// Input groups the three tensors of one forward call.
type Input[B tensor.Backend] struct {
	Patches     *tensor.Tensor[float32, B] // [batch, num_patches, patch_dim]
	Objects     *tensor.Tensor[float32, B] // [batch, obj_count, obj_dim]
	Descriptors *tensor.Tensor[int32, B]   // [batch, obj_count, 1]
}

// Result is the output of Encode.
type Result[B tensor.Backend] struct {
	Embeddings *tensor.Tensor[float32, B]
	Elapsed    time.Duration
}

// CheckInput reports shape problems in in as ErrShapeMismatch errors.
func (e *Encoder[B]) CheckInput(in Input[B]) error {
	if in.Patches == nil || in.Objects == nil || in.Descriptors == nil {
		return fmt.Errorf("%w: patches, objects and descriptors are all required", ErrShapeMismatch)
	}

	patchShape, objShape, descShape := in.Patches.Shape(), in.Objects.Shape(), in.Descriptors.Shape()
	if len(patchShape) != 3 || patchShape[1] != e.cfg.NumPatches || patchShape[2] != e.cfg.PatchDim {
		return fmt.Errorf("%w: patches must be [batch, %d, %d], got %v",
			ErrShapeMismatch, e.cfg.NumPatches, e.cfg.PatchDim, patchShape)
	}
	batch := patchShape[0]

	if len(objShape) != 3 || objShape[0] != batch || objShape[2] != e.cfg.ObjDim {
		return fmt.Errorf("%w: objects must be [%d, count, %d], got %v",
			ErrShapeMismatch, batch, e.cfg.ObjDim, objShape)
	}
	count := objShape[1]
	if count > e.cfg.ObjMaxNum {
		return fmt.Errorf("%w: %d objects exceed obj_max_num %d", ErrShapeMismatch, count, e.cfg.ObjMaxNum)
	}

	validDesc := (len(descShape) == 3 && descShape[2] == 1) || len(descShape) == 2
	if !validDesc || descShape[0] != batch || descShape[1] != count {
		return fmt.Errorf("%w: descriptors must be [%d, %d, 1], got %v", ErrShapeMismatch, batch, count, descShape)
	}
	return nil
}

// Encode validates in and runs Forward, converting backend panics into
// errors. It returns ctx.Err() if the context is done before or after the
// computation.
func (e *Encoder[B]) Encode(ctx context.Context, in Input[B]) (res Result[B], err error) {
	if err := ctx.Err(); err != nil {
		return Result[B]{}, err
	}
	if err := e.CheckInput(in); err != nil {
		return Result[B]{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result[B]{}
			err = fmt.Errorf("encode: %v", r)
		}
	}()

	start := time.Now()
	out := e.Output(e.Forward(in.Patches, in.Objects, in.Descriptors))
	if err := ctx.Err(); err != nil {
		return Result[B]{}, err
	}
	return Result[B]{Embeddings: out, Elapsed: time.Since(start)}, nil
}

// ClassifyInput encodes in and applies the classification head.
func (e *Encoder[B]) ClassifyInput(ctx context.Context, in Input[B]) (logits *tensor.Tensor[float32, B], err error) {
	res, err := e.Encode(ctx, in)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			logits = nil
			err = fmt.Errorf("classify: %v", r)
		}
	}()
	return e.Classify(res.Embeddings), nil
}
