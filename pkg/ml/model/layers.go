// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"math"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/modelio/pkg/core/shapes"
	"github.com/gomlx/modelio/pkg/ml/initializer"
)

// Built-in layer classes.
const (
	DenseClass     = "Dense"
	EmbeddingClass = "Embedding"
	DropoutClass   = "Dropout"
	LambdaClass    = "Lambda"
)

// Layer is a named node of a model.
type Layer struct {
	Class string
	Name  string

	// Config is the JSON-serializable configuration used to rebuild the layer.
	Config map[string]any

	// Variables of the layer, in creation order.
	Variables []*Variable

	// program is the compiled expression of a Lambda layer.
	program *exprvm.Program
}

// ParameterName returns the hierarchical name of a variable of the layer: "<layer>/<variable>".
func (l *Layer) ParameterName(v *Variable) string {
	return l.Name + "/" + v.Name
}

// HasWeights returns whether the layer has at least one variable.
func (l *Layer) HasWeights() bool { return len(l.Variables) > 0 }

// Variable returns the layer's variable with the given name, or nil if not found.
func (l *Layer) Variable(name string) *Variable {
	for _, v := range l.Variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// NewDense creates a fully connected layer, with a "kernel" variable shaped [inputDim, units] and,
// if useBias, a "bias" variable shaped [units].
//
// If init is nil, variables are initialized with zeros. Biases are always initialized with zeros.
func NewDense(name string, inputDim, units int, useBias bool, dtype dtypes.DType, init initializer.Initializer) *Layer {
	if init == nil {
		init = initializer.Zero
	}
	layer := &Layer{
		Class: DenseClass,
		Name:  name,
		Config: map[string]any{
			"input_dim": inputDim,
			"units":     units,
			"use_bias":  useBias,
			"dtype":     dtype.String(),
		},
	}
	layer.Variables = append(layer.Variables, NewVariable("kernel", init(shapes.Make(dtype, inputDim, units))))
	if useBias {
		layer.Variables = append(layer.Variables, NewVariable("bias", initializer.Zero(shapes.Make(dtype, units))))
	}
	return layer
}

// NewEmbedding creates an embedding lookup table, with an "embeddings" variable shaped [inputDim, outputDim].
func NewEmbedding(name string, inputDim, outputDim int, dtype dtypes.DType, init initializer.Initializer) *Layer {
	if init == nil {
		init = initializer.Zero
	}
	return &Layer{
		Class: EmbeddingClass,
		Name:  name,
		Config: map[string]any{
			"input_dim":  inputDim,
			"output_dim": outputDim,
			"dtype":      dtype.String(),
		},
		Variables: []*Variable{NewVariable("embeddings", init(shapes.Make(dtype, inputDim, outputDim)))},
	}
}

// NewDropout creates a dropout layer. It has no weights.
func NewDropout(name string, rate float64) *Layer {
	return &Layer{
		Class:  DropoutClass,
		Name:   name,
		Config: map[string]any{"rate": rate},
	}
}

// NewLambda creates a layer that evaluates an arbitrary expression (github.com/expr-lang/expr syntax),
// e.g. `x * 2 + 1`. It has no weights.
//
// Lambda layers embed executable code in the model configuration, hence they can't be deserialized
// in safe mode, see FromConfig.
func NewLambda(name, expression string) (*Layer, error) {
	program, err := exprlang.Compile(expression, exprlang.Env(map[string]any{}), exprlang.AllowUndefinedVariables())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile expression of Lambda layer %q", name)
	}
	return &Layer{
		Class:   LambdaClass,
		Name:    name,
		Config:  map[string]any{"expression": expression},
		program: program,
	}, nil
}

// Eval runs the expression of a Lambda layer with the given environment (variable names to values).
func (l *Layer) Eval(env map[string]any) (any, error) {
	if l.program == nil {
		return nil, errors.Errorf("layer %q (%s) has no compiled expression", l.Name, l.Class)
	}
	result, err := exprlang.Run(l.program, env)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to evaluate Lambda layer %q", l.Name)
	}
	return result, nil
}

// configInt reads an integer from a layer configuration. Values decoded from JSON are float64 (or
// json.Number), values set in code are int.
func configInt(config map[string]any, key string) (int, error) {
	value, found := config[key]
	if !found {
		return 0, errors.Errorf("missing %q", key)
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.Errorf("%q must be an integer, got %g", key, v)
		}
		return int(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, errors.Wrapf(err, "%q must be an integer", key)
		}
		return int(i), nil
	default:
		return 0, errors.Errorf("%q must be an integer, got %T", key, value)
	}
}

// configBool reads an optional boolean from a layer configuration.
func configBool(config map[string]any, key string, defaultValue bool) (bool, error) {
	value, found := config[key]
	if !found {
		return defaultValue, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, errors.Errorf("%q must be a boolean, got %T", key, value)
	}
	return b, nil
}

// configDType reads the optional "dtype" of a layer configuration. It defaults to Float32.
func configDType(config map[string]any) (dtypes.DType, error) {
	value, found := config["dtype"]
	if !found {
		return dtypes.Float32, nil
	}
	name, ok := value.(string)
	if !ok {
		return dtypes.InvalidDType, errors.Errorf("\"dtype\" must be a string, got %T", value)
	}
	dtype := shapes.DTypeFromName(name)
	if dtype == dtypes.InvalidDType {
		return dtype, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}

// configString reads a string from a layer configuration.
func configString(config map[string]any, key string) (string, error) {
	value, found := config[key]
	if !found {
		return "", errors.Errorf("missing %q", key)
	}
	s, ok := value.(string)
	if !ok {
		return "", errors.Errorf("%q must be a string, got %T", key, value)
	}
	return s, nil
}

// configFloat reads an optional float from a layer configuration.
func configFloat(config map[string]any, key string) (float64, error) {
	value, found := config[key]
	if !found {
		return 0, nil
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, errors.Errorf("%q must be a number, got %T", key, value)
	}
}
