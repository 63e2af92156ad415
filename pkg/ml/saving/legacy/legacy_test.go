// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package legacy

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/modelio/pkg/core/tensors"
	"github.com/gomlx/modelio/pkg/ml/initializer"
	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/model/encoding"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
)

type answer bool

func (a answer) ConfirmOverwrite(string) bool { return bool(a) }

func buildModel(seed uint64) *model.Model {
	rng := rand.New(rand.NewPCG(seed, 2))
	m := model.NewSequential("legacy",
		model.NewDense("dense_0", 3, 5, true, dtypes.Float32, initializer.Normal(rng, 1)),
		model.NewDropout("dropout", 0.5),
		model.NewDense("dense_1", 5, 2, true, dtypes.Float64, initializer.Normal(rng, 1)),
		model.NewEmbedding("embed", 4, 3, dtypes.Float16, initializer.Normal(rng, 1)),
	)
	return m.CompileWith(&encoding.CompileConfig{Optimizer: "sgd", Loss: "mse"})
}

func requireSameWeights(t *testing.T, want, got *model.Model) {
	wantParams, gotParams := want.Parameters(), got.Parameters()
	require.Len(t, gotParams, len(wantParams))
	for ii := range wantParams {
		require.True(t, wantParams[ii].Value.Equal(gotParams[ii].Value), "parameter #%d (%s) differs", ii, wantParams[ii].Name)
	}
}

func TestRoundTrip(t *testing.T) {
	m := buildModel(1)
	m.Optimizer = &model.OptimizerState{Name: "sgd", Variables: []*model.Variable{
		{Name: "iterations", Value: tensors.FromScalar(int64(10))}}}
	path := filepath.Join(t.TempDir(), "model.h5")
	backend := New(answer(false))
	require.NoError(t, backend.Write(m, path, true, true))

	loaded, err := backend.Read(path)
	require.NoError(t, err)
	require.Equal(t, "legacy", loaded.Name)
	require.Equal(t, m.Compile, loaded.Compile)
	requireSameWeights(t, m, loaded)

	root, err := Open(path)
	require.NoError(t, err)
	version, found := root.StringAttr(KerasVersionAttr)
	require.True(t, found)
	require.Equal(t, encoding.LibraryVersion, version)
	opt := root.Group(OptimizerWeightsGroup)
	require.NotNil(t, opt)
	names, err := opt.StringsAttr(WeightNamesAttr)
	require.NoError(t, err)
	require.Equal(t, []string{"optimizer/iterations:0"}, names)
}

func TestOverwritePolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.hdf5")
	require.NoError(t, os.WriteFile(path, []byte("precious"), 0o644))

	// Declined: not an error, and the file is unchanged.
	require.NoError(t, New(answer(false)).Write(buildModel(1), path, false, true))
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "precious", string(contents))

	// No prompt: not overwritten either.
	require.NoError(t, New(nil).Write(buildModel(1), path, false, true))
	contents, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "precious", string(contents))

	// Confirmed.
	require.NoError(t, New(answer(true)).Write(buildModel(1), path, false, true))
	_, err = New(nil).Read(path)
	require.NoError(t, err)
}

func TestWeightsLayouts(t *testing.T) {
	src := buildModel(1)
	dir := t.TempDir()
	backend := New(nil)
	fullPath := filepath.Join(dir, "full.h5")
	weightsPath := filepath.Join(dir, "weights.h5")
	require.NoError(t, backend.Write(src, fullPath, true, false))
	require.NoError(t, backend.WriteWeights(src, weightsPath, true))

	for _, path := range []string{fullPath, weightsPath} {
		root, err := Open(path)
		require.NoError(t, err)
		group := WeightsGroup(root)
		require.True(t, group.HasAttr(LayerNamesAttr), path)

		set, err := Parameters(group)
		require.NoError(t, err)
		require.Equal(t, []string{"dense_0/kernel", "dense_0/bias", "dense_1/kernel", "dense_1/bias", "embed/embeddings"},
			set.Names())

		dst := buildModel(5)
		report, err := ReadWeightsByPosition(group, dst, false)
		require.NoError(t, err)
		require.Len(t, report.Applied, 5)
		requireSameWeights(t, src, dst)

		dst = buildModel(6)
		_, err = ReadWeightsByName(group, dst, false)
		require.NoError(t, err)
		requireSameWeights(t, src, dst)
	}

	// Weights-only files have no model.
	_, err := backend.Read(weightsPath)
	require.ErrorContains(t, err, ModelConfigAttr)

	// By name with a renamed layer.
	root, err := Open(weightsPath)
	require.NoError(t, err)
	dst := buildModel(7)
	dst.Layers[3].Name = "embedding"
	_, err = ReadWeightsByName(root, dst, false)
	require.ErrorIs(t, err, weights.ErrNameNotFound)
	report, err := ReadWeightsByName(root, dst, true)
	require.NoError(t, err)
	require.Len(t, report.Skipped, 2)
	require.Len(t, report.Applied, 4)

	// By position the names don't matter.
	report, err = ReadWeightsByPosition(root, dst, false)
	require.NoError(t, err)
	require.Len(t, report.Applied, 5)
}

func TestAvailable(t *testing.T) {
	t.Setenv(DisableEnv, "1")
	require.False(t, Available())
	t.Setenv(DisableEnv, "false")
	require.True(t, Available())
}

func TestNormalizeWeightName(t *testing.T) {
	require.Equal(t, "dense/kernel", normalizeWeightName("dense", "dense/kernel:0"))
	require.Equal(t, "dense/kernel", normalizeWeightName("dense", "kernel:0"))
	require.Equal(t, "dense/kernel", normalizeWeightName("dense", "kernel"))
}
