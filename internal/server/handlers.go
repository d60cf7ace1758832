package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/fusion"
	"github.com/born-ml/patchformer/internal/tensor"
)

// EncodeRequest is the body of /api/encode and /api/classify.
type EncodeRequest struct {
	Patches     [][][]float32 `json:"patches" binding:"required"`     // [batch, num_patches, patch_dim]
	Objects     [][][]float32 `json:"objects" binding:"required"`     // [batch, obj_count, obj_dim]
	Descriptors [][]int32     `json:"descriptors" binding:"required"` // [batch, obj_count]
}

// EncodeResponse carries the fused embeddings.
type EncodeResponse struct {
	Shape      []int         `json:"shape"`
	Embeddings [][][]float32 `json:"embeddings"`
	ElapsedMS  float64       `json:"elapsed_ms"`
}

// ClassifyResponse carries the classification head output.
type ClassifyResponse struct {
	Shape  []int       `json:"shape"`
	Logits [][]float32 `json:"logits"`
}

// InfoResponse describes the served encoder.
type InfoResponse struct {
	Config            fusion.Config `json:"config"`
	DescriptorDim     int           `json:"descriptor_dim"`
	Parameters        int           `json:"parameters"`
	MaxSequenceLength int           `json:"max_sequence_length"`
	MaxBatch          int           `json:"max_batch"`
}

// InfoHandler reports the encoder configuration.
func (s *Server) InfoHandler(c *gin.Context) {
	cfg := s.enc.Config()
	c.JSON(http.StatusOK, InfoResponse{
		Config:            cfg,
		DescriptorDim:     s.enc.Descriptors().Dim(),
		Parameters:        s.enc.NumParameters(),
		MaxSequenceLength: cfg.MaxSequenceLength(),
		MaxBatch:          s.maxBatch,
	})
}

// EncodeHandler runs the encoder on a JSON batch.
func (s *Server) EncodeHandler(c *gin.Context) {
	in, ok := s.bindInput(c)
	if !ok {
		return
	}

	res, err := s.enc.Encode(c.Request.Context(), in)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	shape := res.Embeddings.Shape()
	s.log.Debug("encoded",
		zap.Int("batch", shape[0]),
		zap.Int("sequence", shape[1]),
		zap.Duration("elapsed", res.Elapsed),
	)
	c.JSON(http.StatusOK, EncodeResponse{
		Shape:      shape,
		Embeddings: unflatten3(res.Embeddings.Data(), shape),
		ElapsedMS:  float64(res.Elapsed) / float64(time.Millisecond),
	})
}

// ClassifyHandler runs the encoder and the classification head.
func (s *Server) ClassifyHandler(c *gin.Context) {
	in, ok := s.bindInput(c)
	if !ok {
		return
	}

	logits, err := s.enc.ClassifyInput(c.Request.Context(), in)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	shape := logits.Shape()
	data := logits.Data()
	out := make([][]float32, shape[0])
	for i := range out {
		out[i] = data[i*shape[1] : (i+1)*shape[1]]
	}
	c.JSON(http.StatusOK, ClassifyResponse{Shape: shape, Logits: out})
}

func (s *Server) bindInput(c *gin.Context) (fusion.Input[*cpu.CPUBackend], bool) {
	var req EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return fusion.Input[*cpu.CPUBackend]{}, false
	}

	in, err := s.toInput(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return fusion.Input[*cpu.CPUBackend]{}, false
	}
	return in, true
}

func (s *Server) toInput(req EncodeRequest) (fusion.Input[*cpu.CPUBackend], error) {
	var in fusion.Input[*cpu.CPUBackend]

	batch := len(req.Patches)
	if batch == 0 {
		return in, errors.New("patches: empty batch")
	}
	if s.maxBatch > 0 && batch > s.maxBatch {
		return in, fmt.Errorf("batch size %d exceeds limit %d", batch, s.maxBatch)
	}

	backend := s.enc.Backend()

	patches, shape, err := flatten3(req.Patches)
	if err != nil {
		return in, fmt.Errorf("patches: %w", err)
	}
	if in.Patches, err = tensor.FromSlice(patches, shape, backend); err != nil {
		return in, fmt.Errorf("patches: %w", err)
	}

	objects, shape, err := flatten3(req.Objects)
	if err != nil {
		return in, fmt.Errorf("objects: %w", err)
	}
	if in.Objects, err = tensor.FromSlice(objects, shape, backend); err != nil {
		return in, fmt.Errorf("objects: %w", err)
	}

	descriptors, shape, err := flatten2(req.Descriptors)
	if err != nil {
		return in, fmt.Errorf("descriptors: %w", err)
	}
	if in.Descriptors, err = tensor.FromSlice(descriptors, shape, backend); err != nil {
		return in, fmt.Errorf("descriptors: %w", err)
	}

	return in, nil
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	s.log.Warn("encode failed", zap.Error(err), zap.Int("status", status))
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
