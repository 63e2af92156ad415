// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"maps"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/model/encoding"
)

// Constructor creates a layer from its saved configuration.
//
// Variables must be created with their final shapes, their values are overwritten by the loader.
// If safeMode is true, the constructor must refuse to create layers that execute code embedded
// in the configuration, returning an error that wraps ErrUnsafeDeserialization.
type Constructor func(name string, config map[string]any, safeMode bool) (*Layer, error)

// Registry maps layer class names to their constructors.
type Registry map[string]Constructor

var (
	// ErrUnsafeDeserialization is returned when deserializing in safe mode a configuration that
	// embeds executable code (e.g. a Lambda layer).
	ErrUnsafeDeserialization = errors.New("unsafe deserialization refused in safe mode")

	// ErrUnknownClass is returned when a configuration refers to a class not in the registry.
	ErrUnknownClass = errors.New("unknown class")
)

// Builtins returns a new Registry with the built-in layer classes.
func Builtins() Registry {
	return Registry{
		DenseClass:     newDenseFromConfig,
		EmbeddingClass: newEmbeddingFromConfig,
		DropoutClass:   newDropoutFromConfig,
		LambdaClass:    newLambdaFromConfig,
	}
}

// Names of the registered classes, sorted.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// DeserializeOptions configures FromConfig.
type DeserializeOptions struct {
	// CustomObjects take priority over the built-in classes.
	CustomObjects Registry

	// SafeMode forbids the deserialization of code embedded in the configuration.
	SafeMode bool
}

// FromConfig rebuilds a model from its configuration. Variables are created with zero values.
//
// The compile configuration is copied as is: callers that don't want to restore the training
// configuration should reset Model.Compile.
func FromConfig(config encoding.ModelConfig, options DeserializeOptions) (*Model, error) {
	if config.ClassName != SequentialClass {
		if _, found := options.CustomObjects[config.ClassName]; !found {
			return nil, errors.Wrapf(ErrUnknownClass, "model class %q (only %q is supported)",
				config.ClassName, SequentialClass)
		}
	}
	builtins := Builtins()
	m := &Model{Class: config.ClassName, Name: config.Name, Compile: config.CompileConfig}
	for ii, layerConfig := range config.Layers {
		constructor, found := options.CustomObjects[layerConfig.ClassName]
		if found {
			klog.V(2).Infof("model %q: layer %q uses custom class %q", config.Name, layerConfig.Name, layerConfig.ClassName)
		} else {
			constructor, found = builtins[layerConfig.ClassName]
		}
		if !found {
			return nil, errors.Wrapf(ErrUnknownClass, "model %q, layer #%d %q: class %q not registered (known classes: %v)",
				config.Name, ii, layerConfig.Name, layerConfig.ClassName, builtins.Names())
		}
		layer, err := constructor(layerConfig.Name, layerConfig.Config, options.SafeMode)
		if err != nil {
			return nil, errors.WithMessagef(err, "model %q, layer #%d %q (%s)",
				config.Name, ii, layerConfig.Name, layerConfig.ClassName)
		}
		if layer.Class == "" {
			layer.Class = layerConfig.ClassName
		}
		m.Layers = append(m.Layers, layer)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func newDenseFromConfig(name string, config map[string]any, _ bool) (*Layer, error) {
	inputDim, err := configInt(config, "input_dim")
	if err != nil {
		return nil, err
	}
	units, err := configInt(config, "units")
	if err != nil {
		return nil, err
	}
	useBias, err := configBool(config, "use_bias", true)
	if err != nil {
		return nil, err
	}
	dtype, err := configDType(config)
	if err != nil {
		return nil, err
	}
	if inputDim <= 0 || units <= 0 {
		return nil, errors.Errorf("invalid dimensions input_dim=%d, units=%d", inputDim, units)
	}
	return NewDense(name, inputDim, units, useBias, dtype, nil), nil
}

func newEmbeddingFromConfig(name string, config map[string]any, _ bool) (*Layer, error) {
	inputDim, err := configInt(config, "input_dim")
	if err != nil {
		return nil, err
	}
	outputDim, err := configInt(config, "output_dim")
	if err != nil {
		return nil, err
	}
	dtype, err := configDType(config)
	if err != nil {
		return nil, err
	}
	if inputDim <= 0 || outputDim <= 0 {
		return nil, errors.Errorf("invalid dimensions input_dim=%d, output_dim=%d", inputDim, outputDim)
	}
	return NewEmbedding(name, inputDim, outputDim, dtype, nil), nil
}

func newDropoutFromConfig(name string, config map[string]any, _ bool) (*Layer, error) {
	rate, err := configFloat(config, "rate")
	if err != nil {
		return nil, err
	}
	return NewDropout(name, rate), nil
}

func newLambdaFromConfig(name string, config map[string]any, safeMode bool) (*Layer, error) {
	if safeMode {
		return nil, errors.Wrapf(ErrUnsafeDeserialization,
			"Lambda layer %q holds an executable expression, it can only be loaded with safe mode disabled, "+
				"and only if the source of the model is trusted", name)
	}
	expression, err := configString(config, "expression")
	if err != nil {
		return nil, err
	}
	return NewLambda(name, expression)
}
