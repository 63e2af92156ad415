// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"math"

	"github.com/gomlx/modelio/pkg/core/tensors"
)

// variableStats summarizes the magnitude of a variable's values.
type variableStats struct {
	MAV, RMS, MaxAV float64
}

// computeStats of a float tensor. It returns false for other dtypes and for empty tensors.
func computeStats(t *tensors.Tensor) (stats variableStats, ok bool) {
	if !t.DType().IsFloat() || t.Size() == 0 {
		return
	}
	var sumAbs, sumSquares float64
	for ii := range t.Size() {
		var x float64
		switch v := t.Value(ii).(type) {
		case float32:
			x = float64(v)
		case float64:
			x = v
		default:
			return variableStats{}, false
		}
		abs := math.Abs(x)
		sumAbs += abs
		sumSquares += x * x
		stats.MaxAV = max(stats.MaxAV, abs)
	}
	n := float64(t.Size())
	stats.MAV = sumAbs / n
	stats.RMS = math.Sqrt(sumSquares / n)
	return stats, true
}
