// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/gomlx/modelio/pkg/core/tensors"
)

func buildTree(t *testing.T) (*Group, map[string]*tensors.Tensor) {
	values := map[string]*tensors.Tensor{
		"f32":  tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3),
		"f64":  tensors.FromScalar(3.14),
		"f16":  tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}, 2),
		"bf16": tensors.FromFlatDataAndDimensions([]bfloat16.BFloat16{bfloat16.FromFloat32(7)}, 1),
		"i8":   tensors.FromFlatDataAndDimensions([]int8{-1, 1}, 2),
		"bool": tensors.FromFlatDataAndDimensions([]bool{true, false, true}, 3),
	}
	root := NewGroup("/")
	root.SetAttr("layer_names", []string{"a", "b"})
	root.SetAttr("version", int64(3))
	a := root.RequireGroup("a")
	a.SetAttr("weight_names", []string{"a/f32", "a/f64"})
	_, err := a.CreateDataset("f32", values["f32"])
	require.NoError(t, err)
	_, err = a.CreateDataset("f64", values["f64"])
	require.NoError(t, err)
	_, err = a.CreateDataset("f64", values["f64"])
	require.Error(t, err)
	b := root.RequireGroup("b").RequireGroup("vars")
	for _, name := range []string{"f16", "bf16", "i8", "bool"} {
		_, err = b.CreateDataset(name, values[name])
		require.NoError(t, err)
	}
	return root, values
}

func TestRoundTrip(t *testing.T) {
	for _, options := range []Options{{}, {Uncompressed: true}} {
		root, values := buildTree(t)
		path := filepath.Join(t.TempDir(), "weights.dense")
		dgst, err := WriteFile(path, root, options)
		require.NoError(t, err)
		require.NoError(t, dgst.Validate())
		require.True(t, IsDenseFile(path))

		// No temporary files left behind.
		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)

		file, err := ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, dgst, file.Digest)

		layerNames, err := file.Root.StringsAttr("layer_names")
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, layerNames)
		version, ok := file.Root.IntAttr("version")
		require.True(t, ok)
		require.Equal(t, int64(3), version)
		_, err = file.Root.StringsAttr("missing")
		require.Error(t, err)

		a := file.Root.Group("a")
		require.NotNil(t, a)
		for _, name := range []string{"f32", "f64"} {
			got, err := a.Dataset(name).Tensor()
			require.NoError(t, err)
			require.Truef(t, values[name].Equal(got), "dataset %q: want %s, got %s", name, values[name], got)
		}
		vars := file.Root.GroupPath("b", "vars")
		require.NotNil(t, vars)
		for _, name := range []string{"f16", "bf16", "i8", "bool"} {
			got, err := vars.Dataset(name).Tensor()
			require.NoError(t, err)
			require.Truef(t, values[name].Equal(got), "dataset %q: want %s, got %s", name, values[name], got)
		}
		require.Nil(t, file.Root.GroupPath("b", "missing"))
		require.Equal(t, []string{"a", "b"}, []string{file.Root.Groups[0].Name, file.Root.Groups[1].Name})
	}
}

func TestCorruption(t *testing.T) {
	root, _ := buildTree(t)
	var buf bytes.Buffer
	_, err := Encode(&buf, root, Options{})
	require.NoError(t, err)
	contents := buf.Bytes()

	// Flip one byte of the payload.
	corrupt := bytes.Clone(contents)
	corrupt[len(corrupt)-3] ^= 0xFF
	_, err = Decode(bytes.NewReader(corrupt))
	require.ErrorIs(t, err, ErrDigestMismatch)

	// Not a dense file.
	_, err = Decode(bytes.NewReader([]byte("PK\x03\x04 this is a zip")))
	require.ErrorIs(t, err, ErrNotDenseFile)
	_, err = Decode(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrNotDenseFile)

	path := filepath.Join(t.TempDir(), "other.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	assert.False(t, IsDenseFile(path))
	assert.False(t, IsDenseFile(filepath.Join(t.TempDir(), "missing")))

	// Invalid dataset dtype.
	ds := &Dataset{Name: "x", DType: "float17", Dimensions: []int{2}, Data: make([]byte, 8)}
	_, err = ds.Tensor()
	require.Error(t, err)
	ds = &Dataset{Name: "x", DType: "float32", Dimensions: []int{3}, Data: make([]byte, 8)}
	_, err = ds.Tensor()
	require.Error(t, err)
}
