package fusion

import "errors"

// Sentinel errors returned by the encoder and its loaders.
var (
	// ErrInvalidConfig reports a configuration that cannot build an encoder.
	ErrInvalidConfig = errors.New("invalid encoder config")

	// ErrShapeMismatch reports inputs whose shapes do not fit the encoder.
	ErrShapeMismatch = errors.New("input shape mismatch")

	// ErrMissingTensor reports a checkpoint lacking a required weight.
	ErrMissingTensor = errors.New("missing tensor")
)
