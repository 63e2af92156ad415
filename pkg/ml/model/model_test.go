// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/google/go-cmp/cmp"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/modelio/pkg/core/shapes"
	"github.com/gomlx/modelio/pkg/ml/initializer"
	"github.com/gomlx/modelio/pkg/ml/model/encoding"
)

func buildMLP() *Model {
	rng := rand.New(rand.NewPCG(42, 0))
	return NewSequential("mlp",
		NewDense("dense_0", 4, 8, true, dtypes.Float32, initializer.GlorotUniform(rng)),
		NewDropout("dropout", 0.1),
		NewDense("dense_1", 8, 1, false, dtypes.Float64, initializer.GlorotUniform(rng)),
	)
}

func TestModel(t *testing.T) {
	m := buildMLP()
	require.NoError(t, m.Validate())
	require.Len(t, m.LayersWithWeights(), 2)
	require.Nil(t, m.Layer("missing"))
	require.Equal(t, DropoutClass, m.Layer("dropout").Class)

	var paths []string
	for pv := range m.IterVariables() {
		paths = append(paths, pv.Path)
	}
	require.Equal(t, []string{"dense_0/kernel", "dense_0/bias", "dense_1/kernel"}, paths)
	require.Len(t, m.Parameters(), 3)
	require.Equal(t, 4*8+8+8, m.NumParameters())
	require.Equal(t, uintptr((4*8+8)*4+8*8), m.Memory())

	require.True(t, m.Layer("dense_1").Variable("kernel").Shape().Equal(shapes.Make(dtypes.Float64, 8, 1)))

	m.Optimizer = &OptimizerState{Name: "sgd", Variables: []*Variable{
		NewVariable("iterations", initializer.Zero(shapes.Make(dtypes.Int64)))}}
	paths = paths[:0]
	for pv := range m.IterAllVariables() {
		paths = append(paths, pv.Path)
	}
	require.Equal(t, "optimizer/iterations", paths[len(paths)-1])

	// Duplicate layer names are invalid.
	m.Add(NewDropout("dropout", 0.2))
	require.Error(t, m.Validate())
}

func TestFromConfig(t *testing.T) {
	m := buildMLP().CompileWith(&encoding.CompileConfig{Optimizer: "adam", Loss: "mse"})
	config := m.Config()

	// Round trip through JSON: integers become float64.
	blob := must.M1(json.Marshal(config))
	var decoded encoding.ModelConfig
	require.NoError(t, json.Unmarshal(blob, &decoded))

	rebuilt, err := FromConfig(decoded, DeserializeOptions{SafeMode: true})
	require.NoError(t, err)
	// Rebuilt layers use int in their configuration, compare after a JSON round trip.
	var again encoding.ModelConfig
	require.NoError(t, json.Unmarshal(must.M1(json.Marshal(rebuilt.Config())), &again))
	require.Empty(t, cmp.Diff(decoded, again))
	require.Equal(t, "adam", rebuilt.Compile.Optimizer)
	for pv := range m.IterVariables() {
		layerName := pv.Path[:len(pv.Path)-len(pv.Variable.Name)-1]
		rebuiltVar := rebuilt.Layer(layerName).Variable(pv.Variable.Name)
		require.NotNil(t, rebuiltVar, pv.Path)
		require.True(t, rebuiltVar.Shape().Equal(pv.Variable.Shape()), pv.Path)
	}

	// Unknown class.
	decoded.Layers[1].ClassName = "Unknown"
	_, err = FromConfig(decoded, DeserializeOptions{SafeMode: true})
	require.ErrorIs(t, err, ErrUnknownClass)

	// Custom objects take priority and fill in unknown classes.
	called := 0
	custom := Registry{"Unknown": func(name string, config map[string]any, safeMode bool) (*Layer, error) {
		called++
		return NewDropout(name, 0), nil
	}}
	rebuilt, err = FromConfig(decoded, DeserializeOptions{CustomObjects: custom, SafeMode: true})
	require.NoError(t, err)
	require.Equal(t, 1, called)
	require.Equal(t, "Unknown", rebuilt.Layers[1].Class)
}

func TestLambdaSafeMode(t *testing.T) {
	lambda, err := NewLambda("double", "x * 2 + 1")
	require.NoError(t, err)
	got, err := lambda.Eval(map[string]any{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	config := NewSequential("with_lambda", lambda).Config()
	_, err = FromConfig(config, DeserializeOptions{SafeMode: true})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsafeDeserialization))

	rebuilt, err := FromConfig(config, DeserializeOptions{SafeMode: false})
	require.NoError(t, err)
	got, err = rebuilt.Layers[0].Eval(map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, 11, got)

	_, err = NewLambda("bad", "x +* 2")
	require.Error(t, err)
}

func TestConfigHelpers(t *testing.T) {
	config := map[string]any{"a": 3, "b": 4.0, "c": 4.5, "d": json.Number("7"), "e": "x"}
	v, err := configInt(config, "a")
	require.NoError(t, err)
	require.Equal(t, 3, v)
	v, err = configInt(config, "b")
	require.NoError(t, err)
	require.Equal(t, 4, v)
	_, err = configInt(config, "c")
	require.Error(t, err)
	v, err = configInt(config, "d")
	require.NoError(t, err)
	require.Equal(t, 7, v)
	_, err = configInt(config, "e")
	require.Error(t, err)
	_, err = configInt(config, "missing")
	require.Error(t, err)

	dtype, err := configDType(map[string]any{"dtype": "float16"})
	require.NoError(t, err)
	require.Equal(t, dtypes.Float16, dtype)
	_, err = configDType(map[string]any{"dtype": "float17"})
	require.Error(t, err)
}
