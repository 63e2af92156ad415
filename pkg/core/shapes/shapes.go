// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the dtype and dimensions of a stored or live model parameter.
//
// Shapes are what the saving backends compare when reconciling a stored set of parameters
// with the variables of a live model: two parameters are compatible only if their shapes are
// Equal, which means same DType and same dimensions.
//
// DType is the enumeration defined in github.com/gomlx/gopjrt/dtypes. Go float16 support uses
// github.com/x448/float16, and bfloat16 uses github.com/gomlx/gopjrt/dtypes/bfloat16.
//
// Example: the multidimensional array `[][]int32{{0, 1, 2}, {3, 4, 5}}` has shape `(Int32)[2 3]`,
// created with `shapes.Make(dtypes.Int32, 2, 3)`.
package shapes

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape of a parameter: its DType and its Dimensions. A shape with no dimensions is a scalar.
//
// Use Make to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
//
// It panics if any of the dimensions is <= 0.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", s)
		}
	}
	return s
}

// FromDimensions is like Make, but returns an error instead of panicking. It is used when
// the dimensions come from a file, and can't be trusted.
func FromDimensions(dtype dtypes.DType, dimensions []int) (Shape, error) {
	if dtype == dtypes.InvalidDType {
		return Invalid(), errors.Errorf("invalid dtype for shape with dimensions %v", dimensions)
	}
	for axis, dim := range dimensions {
		if dim <= 0 {
			return Invalid(), errors.Errorf("invalid dimension %d for axis %d of shape (%s)%v",
				dim, axis, dtype, dimensions)
		}
	}
	return Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}, nil
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
}

// DimensionsString returns the dimensions formatted as "3x4", or "scalar".
func (s Shape) DimensionsString() string {
	if s.Rank() == 0 {
		return "scalar"
	}
	parts := make([]string, len(s.Dimensions))
	for ii, dim := range s.Dimensions {
		parts[ii] = strconv.Itoa(dim)
	}
	return strings.Join(parts, "x")
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return s.EqualDimensions(s2)
}

// EqualDimensions compares two shapes for equality of dimensions. Dtypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	if s.Rank() != s2.Rank() {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions)}
}

// DTypeFromName returns the dtype for the given name, as written by DType.String, or in lower case.
// It returns dtypes.InvalidDType if the name is not known.
func DTypeFromName(name string) dtypes.DType {
	if dtype, found := dtypes.MapOfNames[name]; found {
		return dtype
	}
	for _, dtype := range knownDTypes {
		if strings.EqualFold(dtype.String(), name) {
			return dtype
		}
	}
	return dtypes.InvalidDType
}

var knownDTypes = []dtypes.DType{
	dtypes.Bool,
	dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
	dtypes.Complex64, dtypes.Complex128,
}
