// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package initializer provides host-side initial values for model variables.
//
// Layers created for deserialization use Zero, since their values are overwritten by the
// loaded weights. Random initializers are used when building fresh models, e.g. in tests and examples.
package initializer

import (
	"math"
	"math/rand/v2"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"

	"github.com/gomlx/modelio/pkg/core/shapes"
	"github.com/gomlx/modelio/pkg/core/tensors"
)

// Initializer creates the initial value of a variable of the given shape.
type Initializer func(shape shapes.Shape) *tensors.Tensor

var (
	// Zero initializes variables with zero.
	Zero Initializer = tensors.FromShape

	// One initializes float variables with one, other dtypes with zero.
	One Initializer = func(shape shapes.Shape) *tensors.Tensor {
		return fill(shape, func() float64 { return 1 })
	}
)

// Normal returns an initializer that generates random normal values with the given standard deviation
// and mean set to 0.
//
// Non-float variables are initialized to 0 instead.
func Normal(rng *rand.Rand, stddev float64) Initializer {
	return func(shape shapes.Shape) *tensors.Tensor {
		return fill(shape, func() float64 { return rng.NormFloat64() * stddev })
	}
}

// Uniform returns an initializer that generates random uniform values from [min, max).
//
// Non-float variables are initialized with zero instead.
func Uniform(rng *rand.Rand, minValue, maxValue float64) Initializer {
	return func(shape shapes.Shape) *tensors.Tensor {
		return fill(shape, func() float64 { return minValue + rng.Float64()*(maxValue-minValue) })
	}
}

// GlorotUniform returns a Glorot uniform initializer, also called Xavier uniform initializer.
//
// It draws samples from a uniform distribution within `[-limit, limit]`, where
// `limit = sqrt(3 / ((fan_in + fan_out)/2))`.
//
// It initializes biases (anything with rank <= 1) to zeros.
func GlorotUniform(rng *rand.Rand) Initializer {
	return func(shape shapes.Shape) *tensors.Tensor {
		if shape.Rank() <= 1 {
			// Zero-bias.
			return tensors.FromShape(shape)
		}
		fanIn, fanOut := computeFanInFanOut(shape)
		scale := max(1.0, float64(fanIn+fanOut)/2.0)
		limit := math.Sqrt(3.0 / scale)
		return fill(shape, func() float64 { return (rng.Float64()*2 - 1) * limit })
	}
}

// computeFanInFanOut of a variable expected to be the kernel of a dense or embedding layer.
func computeFanInFanOut(shape shapes.Shape) (fanIn, fanOut int) {
	rank := shape.Rank()
	switch rank {
	case 0:
		return 1, 1
	case 1:
		return 0, 0
	default:
		receptiveFieldSize := 1
		for _, dim := range shape.Dimensions[:rank-2] {
			receptiveFieldSize *= dim
		}
		return shape.Dimensions[rank-2] * receptiveFieldSize, shape.Dimensions[rank-1] * receptiveFieldSize
	}
}

// fill creates a tensor with values generated by gen, converted to the shape's dtype.
// Only float dtypes are filled, others are left with zeros.
func fill(shape shapes.Shape, gen func() float64) *tensors.Tensor {
	switch shape.DType {
	case dtypes.Float64:
		return fillAs(shape, gen, func(v float64) float64 { return v })
	case dtypes.Float32:
		return fillAs(shape, gen, func(v float64) float32 { return float32(v) })
	case dtypes.Float16:
		return fillAs(shape, gen, func(v float64) float16.Float16 { return float16.Fromfloat32(float32(v)) })
	case dtypes.BFloat16:
		return fillAs(shape, gen, func(v float64) bfloat16.BFloat16 { return bfloat16.FromFloat32(float32(v)) })
	default:
		return tensors.FromShape(shape)
	}
}

func fillAs[T dtypes.Supported](shape shapes.Shape, gen func() float64, convert func(float64) T) *tensors.Tensor {
	values := make([]T, shape.Size())
	for ii := range values {
		values[ii] = convert(gen())
	}
	return tensors.FromFlatDataAndDimensions(values, shape.Dimensions...)
}
