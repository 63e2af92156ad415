// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/gomlx/modelio/pkg/core/shapes"
)

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	assert.Equal(t, shapes.Make(dtypes.Float32, 2, 3), tensor.Shape())
	assert.Equal(t, uintptr(24), tensor.Memory())
	assert.Equal(t, float32(5), tensor.Value(4))
	assert.Equal(t, tensor.Shape().String()+"[1 2 3 4 5 6]", tensor.String())
	assert.Equal(t, "[1 2 ...]", tensor.Summary(2))

	half := FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}, 2)
	assert.Equal(t, float32(0.5), half.Value(0))
	assert.Equal(t, float32(-2), half.Value(1))

	bf := FromScalar(bfloat16.FromFloat32(3))
	assert.True(t, bf.Shape().IsScalar())
	assert.Equal(t, float32(3), bf.Value(0))

	require.Panics(t, func() { _ = FromFlatDataAndDimensions([]int32{1, 2, 3}, 2, 2) })
}

func TestFromRaw(t *testing.T) {
	shape := shapes.Make(dtypes.Int64, 2)
	_, err := FromRaw(shape, make([]byte, 7))
	require.Error(t, err)

	tensor, err := FromRaw(shape, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, int64(0), tensor.Value(1))
}

func TestCopyFromAndEqual(t *testing.T) {
	a := FromFlatDataAndDimensions([]float64{1, 2, 3}, 3)
	b := FromShape(a.Shape())
	assert.False(t, a.Equal(b))
	require.NoError(t, b.CopyFrom(a))
	assert.True(t, a.Equal(b))

	// Copies are independent.
	c := a.Clone()
	c.MutableBytes(func(data []byte) { data[0] ^= 0xFF })
	assert.False(t, a.Equal(c))
	assert.True(t, a.Equal(b))

	// Shape mismatch.
	d := FromFlatDataAndDimensions([]float32{1, 2, 3}, 3)
	require.Error(t, d.CopyFrom(a))
	assert.False(t, d.Equal(a))
}
