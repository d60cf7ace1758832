// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package loader_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/patchformer/backend/cpu"
	"github.com/born-ml/patchformer/loader"
	"github.com/born-ml/patchformer/tensor"
)

func TestOpenModel_UnknownFormat(t *testing.T) {
	_, err := loader.OpenModel(filepath.Join(t.TempDir(), "model.gguf"))
	assert.ErrorIs(t, err, loader.ErrUnknownFormat)
	assert.Equal(t, loader.FormatTorch, loader.DetectFormat("encoder.pth"))
}

func TestGetMapper(t *testing.T) {
	name, err := loader.GetMapper(loader.ArchitecturePatchTransformer).MapName("transformer.net.1.fn.fn.net.0.weight")
	require.NoError(t, err)
	assert.Equal(t, "transformer.blocks.0.ffn.fc1.weight", name)

	name, err = loader.GetMapper(loader.ArchitectureNative).MapName("cls_token")
	require.NoError(t, err)
	assert.Equal(t, "cls_token", name)
}

func TestLoadStateDict_MissingFile(t *testing.T) {
	var backend tensor.Backend = cpu.New()
	_, err := loader.LoadStateDict(filepath.Join(t.TempDir(), "absent.safetensors"), backend)
	assert.Error(t, err)
}
