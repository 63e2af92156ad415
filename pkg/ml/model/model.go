// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package model defines the in-memory trained-model object graph that is saved and restored by
// the `saving` packages.
//
// It defines:
//
//   - Variable: holds a model weight, as a host Tensor, and whether it is trainable.
//   - Layer: a named node of the model, with its class name, its JSON-serializable configuration
//     and its variables (its "parameters").
//   - Model: an ordered list of layers (a "Sequential" model), an optional training configuration
//     (CompileConfig) and an optional optimizer state.
//   - Registry: maps layer class names to constructors, used to rebuild a model from its saved
//     configuration (see FromConfig).
//
// Parameters are identified by their hierarchical name, "<layer_name>/<variable_name>", e.g.
// "dense_1/kernel". Optimizer variables are named "optimizer/<variable_name>".
//
// Example: a small model with two dense layers.
//
//	rng := rand.New(rand.NewPCG(42, 0))
//	m := model.NewSequential("mlp",
//		model.NewDense("dense_0", 4, 8, true, dtypes.Float32, initializer.GlorotUniform(rng)),
//		model.NewDropout("dropout", 0.1),
//		model.NewDense("dense_1", 8, 1, true, dtypes.Float32, initializer.GlorotUniform(rng)))
//	must.M(saving.SaveModel(m, "~/work/mlp.keras"))
package model

import (
	"github.com/pkg/errors"

	"github.com/gomlx/modelio/pkg/core/shapes"
	"github.com/gomlx/modelio/pkg/core/tensors"
	"github.com/gomlx/modelio/pkg/ml/model/encoding"
	"github.com/gomlx/modelio/pkg/support/sets"
)

// SequentialClass is the class name of models built with NewSequential.
const SequentialClass = "Sequential"

// Variable holds one weight of a model.
type Variable struct {
	// Name of the variable within its layer (e.g. "kernel") or within the optimizer.
	Name string

	// Value is updated in place when weights are loaded.
	Value *tensors.Tensor

	Trainable bool
}

// NewVariable creates a trainable variable with the given value.
func NewVariable(name string, value *tensors.Tensor) *Variable {
	return &Variable{Name: name, Value: value, Trainable: true}
}

// Shape of the variable's value.
func (v *Variable) Shape() shapes.Shape {
	if v.Value == nil {
		return shapes.Invalid()
	}
	return v.Value.Shape()
}

// Model is an ordered list of layers, plus its optional training configuration and optimizer state.
type Model struct {
	Class string
	Name  string

	Layers []*Layer

	// Compile holds the training configuration, if the model was compiled.
	Compile *encoding.CompileConfig

	// Optimizer state, if any. It is only restored from modern archives.
	Optimizer *OptimizerState
}

// NewSequential creates a "Sequential" model with the given layers.
func NewSequential(name string, layers ...*Layer) *Model {
	return &Model{Class: SequentialClass, Name: name, Layers: layers}
}

// Add appends layers to the model, and returns the model itself, so calls can be chained.
func (m *Model) Add(layers ...*Layer) *Model {
	m.Layers = append(m.Layers, layers...)
	return m
}

// CompileWith sets the training configuration of the model, and returns the model itself.
func (m *Model) CompileWith(config *encoding.CompileConfig) *Model {
	m.Compile = config
	return m
}

// IsCompiled returns whether the model has a training configuration.
func (m *Model) IsCompiled() bool { return m.Compile != nil }

// Layer returns the layer with the given name, or nil if not found.
func (m *Model) Layer(name string) *Layer {
	for _, layer := range m.Layers {
		if layer.Name == name {
			return layer
		}
	}
	return nil
}

// LayersWithWeights returns the layers that have at least one variable, in model order.
// These are the layers that are paired with the stored layers when loading weights by position.
func (m *Model) LayersWithWeights() []*Layer {
	var layers []*Layer
	for _, layer := range m.Layers {
		if layer.HasWeights() {
			layers = append(layers, layer)
		}
	}
	return layers
}

// Parameters returns all layer variables, in model order.
func (m *Model) Parameters() []*Variable {
	var params []*Variable
	for pv := range m.IterVariables() {
		params = append(params, pv.Variable)
	}
	return params
}

// NumParameters returns the total number of scalar values in the layer variables.
func (m *Model) NumParameters() (count int) {
	for pv := range m.IterVariables() {
		count += pv.Variable.Value.Size()
	}
	return
}

// Memory returns the total number of bytes used by the layer variables.
func (m *Model) Memory() (memory uintptr) {
	for pv := range m.IterVariables() {
		memory += pv.Variable.Value.Memory()
	}
	return
}

// Config returns the serializable architecture of the model.
func (m *Model) Config() encoding.ModelConfig {
	config := encoding.ModelConfig{
		ClassName:     m.Class,
		Name:          m.Name,
		Layers:        make([]encoding.LayerConfig, 0, len(m.Layers)),
		CompileConfig: m.Compile,
	}
	for _, layer := range m.Layers {
		config.Layers = append(config.Layers, encoding.LayerConfig{
			ClassName: layer.Class,
			Name:      layer.Name,
			Config:    layer.Config,
		})
	}
	return config
}

// Validate checks that the model can be saved: layer names must be non-empty and unique, and so
// must be the variable names within each layer. Every variable must have a value.
func (m *Model) Validate() error {
	if m == nil {
		return errors.New("nil model")
	}
	seenLayers := sets.Make[string](len(m.Layers))
	for ii, layer := range m.Layers {
		if layer == nil {
			return errors.Errorf("model %q: layer #%d is nil", m.Name, ii)
		}
		if layer.Name == "" {
			return errors.Errorf("model %q: layer #%d (%s) has no name", m.Name, ii, layer.Class)
		}
		if !seenLayers.InsertNew(layer.Name) {
			return errors.Errorf("model %q: duplicate layer name %q", m.Name, layer.Name)
		}
		seenVars := sets.Make[string](len(layer.Variables))
		for _, v := range layer.Variables {
			if v == nil || v.Value == nil {
				return errors.Errorf("model %q: layer %q has a variable without value", m.Name, layer.Name)
			}
			if !seenVars.InsertNew(v.Name) {
				return errors.Errorf("model %q: layer %q has duplicate variable %q", m.Name, layer.Name, v.Name)
			}
		}
	}
	if m.Optimizer != nil {
		for _, v := range m.Optimizer.Variables {
			if v == nil || v.Value == nil {
				return errors.Errorf("model %q: optimizer %q has a variable without value", m.Name, m.Optimizer.Name)
			}
		}
	}
	return nil
}
