// Package server exposes an encoder over HTTP.
//
// Routes:
//
//	GET  /api/info      encoder configuration and parameter count
//	POST /api/encode    fused embeddings for a batch
//	POST /api/classify  classification head logits for a batch
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/born-ml/patchformer/internal/backend/cpu"
	"github.com/born-ml/patchformer/internal/fusion"
)

// Encoder is the encoder type served.
type Encoder = fusion.Encoder[*cpu.CPUBackend]

// Server handles encode requests for one encoder.
type Server struct {
	enc      *Encoder
	maxBatch int
	log      *zap.Logger
}

// New creates a server. maxBatch caps the batch size of a request; 0 means
// unlimited. A nil logger discards logs.
func New(enc *Encoder, maxBatch int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{enc: enc, maxBatch: maxBatch, log: log}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.GET("/info", s.InfoHandler)
	api.POST("/encode", s.EncodeHandler)
	api.POST("/classify", s.ClassifyHandler)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
