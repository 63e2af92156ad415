// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"iter"
)

// OptimizerScope is the prefix of the hierarchical names of optimizer variables.
const OptimizerScope = "optimizer"

// PathAndVariable refers to a variable within a model, at the "Path" location: its hierarchical name.
// See details in IterVariables.
type PathAndVariable struct {
	Path     string
	Variable *Variable
}

// IterVariables returns an iterator over the layers' variables, in model order: layers in the
// order they were added, and within a layer in the order its variables were created.
//
// Example:
//
//	m := NewSequential("m", NewDense("d0", 2, 3, true, dtypes.Float32, nil))
//	m.IterVariables() -> { "d0/kernel", v0 }, { "d0/bias", v1 }
func (m *Model) IterVariables() iter.Seq[PathAndVariable] {
	return func(yield func(PathAndVariable) bool) {
		for _, layer := range m.Layers {
			for _, v := range layer.Variables {
				if !yield(PathAndVariable{Path: layer.ParameterName(v), Variable: v}) {
					return
				}
			}
		}
	}
}

// IterAllVariables is like IterVariables, but it also yields the optimizer variables (if any),
// after the layers' variables, with paths "optimizer/<name>".
func (m *Model) IterAllVariables() iter.Seq[PathAndVariable] {
	return func(yield func(PathAndVariable) bool) {
		for pv := range m.IterVariables() {
			if !yield(pv) {
				return
			}
		}
		if m.Optimizer == nil {
			return
		}
		for _, v := range m.Optimizer.Variables {
			if !yield(PathAndVariable{Path: OptimizerScope + "/" + v.Name, Variable: v}) {
				return
			}
		}
	}
}
