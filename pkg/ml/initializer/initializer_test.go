// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package initializer

import (
	"math/rand/v2"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"

	"github.com/gomlx/modelio/pkg/core/shapes"
	"github.com/gomlx/modelio/pkg/core/tensors"
)

func TestInitializers(t *testing.T) {
	shape := shapes.Make(dtypes.Float32, 4, 3)
	zero := Zero(shape)
	assert.True(t, zero.Equal(tensors.FromShape(shape)))

	one := One(shape)
	assert.Equal(t, float32(1), one.Value(11))

	// Same seed, same values.
	a := GlorotUniform(rand.New(rand.NewPCG(1, 2)))(shape)
	b := GlorotUniform(rand.New(rand.NewPCG(1, 2)))(shape)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(zero))

	// Biases are zero.
	bias := GlorotUniform(rand.New(rand.NewPCG(1, 2)))(shapes.Make(dtypes.Float32, 3))
	assert.True(t, bias.Equal(tensors.FromShape(bias.Shape())))

	// Non-float dtypes are left at zero.
	ints := Normal(rand.New(rand.NewPCG(1, 2)), 1.0)(shapes.Make(dtypes.Int32, 5))
	assert.True(t, ints.Equal(tensors.FromShape(ints.Shape())))

	// Half precision is generated too.
	half := Uniform(rand.New(rand.NewPCG(3, 4)), 1, 2)(shapes.Make(dtypes.Float16, 8))
	for ii := range 8 {
		v := half.Value(ii).(float32)
		assert.GreaterOrEqual(t, v, float32(1))
		assert.LessOrEqual(t, v, float32(2))
	}
}
