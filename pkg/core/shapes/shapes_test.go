// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Len(t, shape0.Dimensions, 0)
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))
	require.Equal(t, "scalar", shape0.DimensionsString())

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	require.Equal(t, "4x3x2", shape1.DimensionsString())

	err := exceptions.TryCatch[error](func() { _ = Make(dtypes.Float32, 3, 0) })
	require.Error(t, err)
}

func TestEqual(t *testing.T) {
	a := Make(dtypes.Float32, 3, 4)
	require.True(t, a.Equal(a.Clone()))
	require.False(t, a.Equal(Make(dtypes.Float64, 3, 4)), "different dtypes")
	require.True(t, a.EqualDimensions(Make(dtypes.Float64, 3, 4)))
	require.False(t, a.Equal(Make(dtypes.Float32, 4, 3)))
	require.False(t, a.Equal(Make(dtypes.Float32, 12)))

	// Clone must not share the dimensions.
	b := a.Clone()
	b.Dimensions[0] = 7
	require.Equal(t, 3, a.Dimensions[0])
}

func TestFromDimensions(t *testing.T) {
	s, err := FromDimensions(dtypes.Int64, []int{2, 5})
	require.NoError(t, err)
	require.Equal(t, Make(dtypes.Int64, 2, 5), s)

	_, err = FromDimensions(dtypes.Int64, []int{2, -1})
	require.Error(t, err)
	_, err = FromDimensions(dtypes.InvalidDType, []int{2})
	require.Error(t, err)
}

func TestDTypeFromName(t *testing.T) {
	for _, dtype := range []dtypes.DType{dtypes.Float32, dtypes.Float16, dtypes.BFloat16, dtypes.Int8, dtypes.Bool} {
		require.Equal(t, dtype, DTypeFromName(dtype.String()))
	}
	require.Equal(t, dtypes.InvalidDType, DTypeFromName("not_a_dtype"))
}
