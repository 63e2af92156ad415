// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implement a host-only `Tensor`: the value of a model parameter as it is read from
// or written to a saved artifact.
//
// A Tensor is defined by its shape (a data type and its axes' dimensions) and a flat buffer of
// bytes with the values in row-major order, using the platform's native (little-endian on every
// supported platform) encoding. The bytes are what the saving backends write, so a save/load round
// trip is bit-exact for every dtype.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): creates a tensor with the given shape, and zero values.
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and set the flattened values with the given data.
//   - FromRaw(shape, data): takes ownership of the raw bytes, checking their length.
package tensors

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/modelio/pkg/core/shapes"
)

// Tensor is a multidimensional array stored on the host.
//
// A Tensor is not safe for concurrent mutation.
type Tensor struct {
	shape shapes.Shape
	data  []byte
}

// FromShape returns a zero-initialized Tensor with the given shape.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	return &Tensor{shape: shape.Clone(), data: make([]byte, shape.Memory())}
}

// FromRaw creates a Tensor that takes ownership of data. It returns an error if the length of data
// doesn't match the memory required by the shape.
func FromRaw(shape shapes.Shape, data []byte) (*Tensor, error) {
	if !shape.Ok() {
		return nil, errors.Errorf("tensors.FromRaw(%s): invalid shape", shape)
	}
	if uintptr(len(data)) != shape.Memory() {
		return nil, errors.Errorf("tensors.FromRaw(%s): shape requires %d bytes, got %d bytes",
			shape, shape.Memory(), len(data))
	}
	return &Tensor{shape: shape.Clone(), data: data}, nil
}

// FromFlatDataAndDimensions creates a Tensor with the given dimensions, filled with a copy of the flattened
// values given in data. The dtype is inferred from the data type.
//
// It panics if the len(data) doesn't match the product of the dimensions.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(): len(data)=%d, but dimensions size is %d", len(data), shape.Size())
	}
	t := FromShape(shape)
	if len(data) > 0 {
		src := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(t.data))
		copy(t.data, src)
	}
	return t
}

// FromScalar returns a scalar Tensor with the given value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Size is the number of elements: the product of the dimensions.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// ConstBytes calls accessFn with the raw bytes of the tensor. accessFn must not modify or keep the slice.
func (t *Tensor) ConstBytes(accessFn func(data []byte)) {
	accessFn(t.data)
}

// MutableBytes calls accessFn with the raw bytes of the tensor, which it can modify in place.
func (t *Tensor) MutableBytes(accessFn func(data []byte)) {
	accessFn(t.data)
}

// CopyFrom overwrites, in place, the contents of t with the contents of src.
// Both tensors must have the same shape (dtype and dimensions).
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return errors.Errorf("cannot copy tensor of shape %s into tensor of shape %s", src.shape, t.shape)
	}
	copy(t.data, src.data)
	return nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: t.shape.Clone(), data: bytes.Clone(t.data)}
}

// Equal returns whether t and otherTensor have the same shape and bit-identical contents.
// Notice NaNs with the same bit pattern are considered equal.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	if t == otherTensor {
		return true
	}
	if t == nil || otherTensor == nil {
		return false
	}
	return t.shape.Equal(otherTensor.shape) && bytes.Equal(t.data, otherTensor.data)
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s%s", t.shape, t.Summary(6))
}
