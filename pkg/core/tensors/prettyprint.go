// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// flatAs reinterprets the raw bytes as a slice of T, without copying.
func flatAs[T any](data []byte) []T {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if len(data) == 0 || elemSize == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), len(data)/elemSize)
}

// Value returns the flat element at position ii as a Go value. Float16 and BFloat16 are converted to float32.
// It returns nil if the dtype is not supported.
func (t *Tensor) Value(ii int) any {
	switch t.shape.DType {
	case dtypes.Bool:
		return flatAs[bool](t.data)[ii]
	case dtypes.Int8:
		return flatAs[int8](t.data)[ii]
	case dtypes.Int16:
		return flatAs[int16](t.data)[ii]
	case dtypes.Int32:
		return flatAs[int32](t.data)[ii]
	case dtypes.Int64:
		return flatAs[int64](t.data)[ii]
	case dtypes.Uint8:
		return flatAs[uint8](t.data)[ii]
	case dtypes.Uint16:
		return flatAs[uint16](t.data)[ii]
	case dtypes.Uint32:
		return flatAs[uint32](t.data)[ii]
	case dtypes.Uint64:
		return flatAs[uint64](t.data)[ii]
	case dtypes.Float16:
		return flatAs[float16.Float16](t.data)[ii].Float32()
	case dtypes.BFloat16:
		return flatAs[bfloat16.BFloat16](t.data)[ii].Float32()
	case dtypes.Float32:
		return flatAs[float32](t.data)[ii]
	case dtypes.Float64:
		return flatAs[float64](t.data)[ii]
	case dtypes.Complex64:
		return flatAs[complex64](t.data)[ii]
	case dtypes.Complex128:
		return flatAs[complex128](t.data)[ii]
	}
	return nil
}

// Summary returns a one-line rendering of the first maxValues flat values of the tensor,
// e.g. "[0.5 1 -2 ...]".
func (t *Tensor) Summary(maxValues int) string {
	n := t.Size()
	if n == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for ii := range min(n, maxValues) {
		if ii > 0 {
			sb.WriteByte(' ')
		}
		value := t.Value(ii)
		if value == nil {
			sb.WriteString("?")
			continue
		}
		switch v := value.(type) {
		case float32:
			_, _ = fmt.Fprintf(&sb, "%.4g", v)
		case float64:
			_, _ = fmt.Fprintf(&sb, "%.4g", v)
		default:
			_, _ = fmt.Fprintf(&sb, "%v", v)
		}
	}
	if n > maxValues {
		sb.WriteString(" ...")
	}
	sb.WriteByte(']')
	return sb.String()
}
