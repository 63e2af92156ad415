// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package archive

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/modelio/pkg/core/shapes"
	"github.com/gomlx/modelio/pkg/core/tensors"
	"github.com/gomlx/modelio/pkg/ml/initializer"
	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/model/encoding"
	"github.com/gomlx/modelio/pkg/ml/saving/dense"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
)

// buildModel with one layer per float dtype, plus an optimizer state.
func buildModel(seed uint64) *model.Model {
	rng := rand.New(rand.NewPCG(seed, 1))
	m := model.NewSequential("multi",
		model.NewDense("dense_f32", 3, 4, true, dtypes.Float32, initializer.Normal(rng, 1)),
		model.NewDropout("dropout", 0.25),
		model.NewDense("dense_f64", 4, 2, true, dtypes.Float64, initializer.Normal(rng, 1)),
		model.NewEmbedding("embed_f16", 5, 2, dtypes.Float16, initializer.Normal(rng, 1)),
		model.NewEmbedding("embed_bf16", 5, 2, dtypes.BFloat16, initializer.Normal(rng, 1)),
	)
	m.CompileWith(&encoding.CompileConfig{Optimizer: "adam", Loss: "mse", Metrics: []string{"mae"}})
	iterations := tensors.FromScalar(int64(seed * 100))
	m.Optimizer = &model.OptimizerState{
		Name:   "adam",
		Config: map[string]any{"learning_rate": 0.001},
		Variables: []*model.Variable{
			{Name: "iterations", Value: iterations},
			{Name: "dense_f32/kernel/m", Value: initializer.Normal(rng, 1)(shapes.Make(dtypes.Float32, 3, 4))},
		},
	}
	return m
}

func requireSameWeights(t *testing.T, want, got *model.Model) {
	var wantPaths, gotPaths []string
	for pv := range want.IterVariables() {
		wantPaths = append(wantPaths, pv.Path)
	}
	for pv := range got.IterVariables() {
		gotPaths = append(gotPaths, pv.Path)
	}
	require.Equal(t, wantPaths, gotPaths)
	wantParams, gotParams := want.Parameters(), got.Parameters()
	for ii := range wantParams {
		require.Truef(t, wantParams[ii].Value.Equal(gotParams[ii].Value), "parameter %q differs:\n want %s\n  got %s",
			wantPaths[ii], wantParams[ii].Value, gotParams[ii].Value)
	}
}

func TestRoundTrip(t *testing.T) {
	m := buildModel(1)
	path := filepath.Join(t.TempDir(), "multi.keras")
	require.NoError(t, Write(m, path, true))
	require.True(t, IsArchive(path))

	loaded, err := Read(path, ReadOptions{Compile: true, SafeMode: true})
	require.NoError(t, err)
	require.Equal(t, m.Name, loaded.Name)
	require.Equal(t, m.Compile, loaded.Compile)
	requireSameWeights(t, m, loaded)
	require.NotNil(t, loaded.Optimizer)
	require.Equal(t, "adam", loaded.Optimizer.Name)
	require.Equal(t, 0.001, loaded.Optimizer.Config["learning_rate"])
	require.Len(t, loaded.Optimizer.Variables, 2)
	require.True(t, m.Optimizer.Variables[1].Value.Equal(loaded.Optimizer.Variable("dense_f32/kernel/m").Value))

	// Without compile: no training configuration, nor optimizer state.
	loaded, err = Read(path, ReadOptions{Compile: false, SafeMode: true})
	require.NoError(t, err)
	require.Nil(t, loaded.Compile)
	require.Nil(t, loaded.Optimizer)

	// Without optimizer.
	require.NoError(t, Write(m, path, false))
	contents, err := Open(path)
	require.NoError(t, err)
	require.Nil(t, contents.Optimizer)
	require.Len(t, contents.Metadata.Variables, 6)
	require.Equal(t, "dense_f32/kernel", contents.Metadata.Variables[0].Name)
	require.Equal(t, 6, contents.Weights.Len())
}

func TestCorrupt(t *testing.T) {
	dir := t.TempDir()

	// Not a zip.
	notZip := filepath.Join(dir, "not_zip.keras")
	require.NoError(t, os.WriteFile(notZip, []byte("definitely not a zip file"), 0o644))
	require.False(t, IsArchive(notZip))
	_, err := Read(notZip, ReadOptions{SafeMode: true})
	require.ErrorIs(t, err, ErrCorrupt)
	require.False(t, IsArchive(filepath.Join(dir, "missing.keras")))

	// Zip without the expected entries.
	empty := filepath.Join(dir, "empty.keras")
	f, err := os.Create(empty)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("hello.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	require.True(t, IsArchive(empty))
	_, err = Read(empty, ReadOptions{SafeMode: true})
	require.ErrorIs(t, err, ErrCorrupt)
	require.ErrorContains(t, err, MetadataEntry)

	// Weights digest doesn't match the metadata.
	m := buildModel(2)
	valid := filepath.Join(dir, "valid.keras")
	require.NoError(t, Write(m, valid, true))
	r, err := zip.OpenReader(valid)
	require.NoError(t, err)
	metadata, err := readEntry(&r.Reader, MetadataEntry)
	require.NoError(t, err)
	config, err := readEntry(&r.Reader, ConfigEntry)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	otherWeights, err := buildWeightsTree(buildModel(3), true)
	require.NoError(t, err)
	var blob []byte
	{
		tmp := filepath.Join(dir, "other.weights.h5")
		_, err = dense.WriteFile(tmp, otherWeights, dense.Options{})
		require.NoError(t, err)
		blob, err = os.ReadFile(tmp)
		require.NoError(t, err)
	}
	tampered := filepath.Join(dir, "tampered.keras")
	require.NoError(t, writeZipAtomically(tampered, []zipEntry{
		{name: MetadataEntry, contents: metadata, method: zip.Deflate},
		{name: ConfigEntry, contents: config, method: zip.Deflate},
		{name: WeightsEntry, contents: blob, method: zip.Store},
	}))
	_, err = Read(tampered, ReadOptions{SafeMode: true})
	require.ErrorIs(t, err, ErrCorrupt)
	require.ErrorContains(t, err, "digest")
}

func TestSafeMode(t *testing.T) {
	lambda, err := model.NewLambda("scale", "x * 3")
	require.NoError(t, err)
	m := model.NewSequential("with_lambda",
		model.NewDense("dense", 2, 2, true, dtypes.Float32, nil),
		lambda)
	path := filepath.Join(t.TempDir(), "lambda.keras")
	require.NoError(t, Write(m, path, true))

	_, err = Read(path, ReadOptions{SafeMode: true})
	require.ErrorIs(t, err, model.ErrUnsafeDeserialization)

	loaded, err := Read(path, ReadOptions{SafeMode: false})
	require.NoError(t, err)
	got, err := loaded.Layer("scale").Eval(map[string]any{"x": 2})
	require.NoError(t, err)
	require.Equal(t, 6, got)
}

func TestWeightsOnly(t *testing.T) {
	src := buildModel(1)
	dir := t.TempDir()
	weightsPath := filepath.Join(dir, "multi.weights.h5")
	require.NoError(t, WriteWeightsOnly(src, weightsPath))
	require.False(t, IsArchive(weightsPath))
	require.True(t, dense.IsDenseFile(weightsPath))

	dst := buildModel(7)
	report, err := ReadWeightsOnly(dst, weightsPath, false)
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Len(t, report.Applied, 6)
	requireSameWeights(t, src, dst)

	// From a full archive.
	archivePath := filepath.Join(dir, "multi.keras")
	require.NoError(t, Write(src, archivePath, true))
	dst = buildModel(8)
	_, err = ReadWeightsOnly(dst, archivePath, false)
	require.NoError(t, err)
	requireSameWeights(t, src, dst)

	// Model with an extra layer: strict fails, skip reports it.
	dst = buildModel(9)
	dst.Add(model.NewDense("extra", 2, 2, false, dtypes.Float32, nil))
	_, err = ReadWeightsOnly(dst, weightsPath, false)
	require.ErrorIs(t, err, weights.ErrNameNotFound)
	report, err = ReadWeightsOnly(dst, weightsPath, true)
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	require.Equal(t, "extra/kernel", report.Skipped[0].Name)

	// Neither a zip nor a dense file.
	garbage := filepath.Join(dir, "garbage.weights.h5")
	require.NoError(t, os.WriteFile(garbage, []byte("garbage"), 0o644))
	_, err = ReadWeightsOnly(dst, garbage, false)
	require.ErrorIs(t, err, ErrCorrupt)

	// A dense weights file named `.keras` is not read as weights-only, and neither is a missing one.
	renamed := filepath.Join(dir, "renamed.keras")
	contents, err := os.ReadFile(weightsPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(renamed, contents, 0o644))
	dst = buildModel(10)
	_, err = ReadWeightsOnly(dst, renamed, false)
	require.ErrorIs(t, err, ErrCorrupt)
	_, err = ReadWeightsOnly(dst, filepath.Join(dir, "missing.keras"), false)
	require.ErrorIs(t, err, ErrCorrupt)
}
