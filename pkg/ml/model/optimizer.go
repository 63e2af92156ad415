// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

// OptimizerState holds the variables of an optimizer: e.g. the step counter and the moving averages
// of Adam. They are saved together with the model in modern archives, when requested.
type OptimizerState struct {
	Name   string
	Config map[string]any

	// Variables in the order the optimizer created them.
	Variables []*Variable
}

// Variable returns the optimizer variable with the given name, or nil if not found.
func (o *OptimizerState) Variable(name string) *Variable {
	for _, v := range o.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}
