// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/model/encoding"
	"github.com/gomlx/modelio/pkg/ml/saving/dense"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
)

// ReadOptions for Read.
type ReadOptions struct {
	// CustomObjects are layer constructors that take priority over the built-in ones.
	CustomObjects model.Registry

	// Compile restores the training configuration and the optimizer state, if saved.
	Compile bool

	// SafeMode forbids the deserialization of code embedded in the model configuration.
	SafeMode bool
}

// Contents of an archive, as stored.
type Contents struct {
	Metadata encoding.Metadata
	Config   encoding.ModelConfig

	// Weights are the layer variables.
	Weights *weights.Set

	// Optimizer state, or nil if not saved.
	Optimizer *model.OptimizerState
}

// IsArchive probes whether the file at path is a zip container. Any error reading it is reported as false.
// It doesn't check the entries: an archive missing entries is reported as corrupt when read.
func IsArchive(path string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	_ = r.Close()
	return true
}

// Open reads and verifies the contents of the archive, without building the model.
func Open(path string) (*Contents, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "%q is not an accessible zip file: %v", path, err)
	}
	defer func() { _ = r.Close() }()

	contents := &Contents{}
	metadataJSON, err := readEntry(&r.Reader, MetadataEntry)
	if err != nil {
		return nil, errors.WithMessagef(err, "archive %q", path)
	}
	if err = json.Unmarshal(metadataJSON, &contents.Metadata); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "archive %q: invalid %s: %v", path, MetadataEntry, err)
	}
	if contents.Metadata.Version != encoding.Version1 {
		return nil, errors.Wrapf(ErrCorrupt, "archive %q: unknown format version %q", path, contents.Metadata.Version)
	}
	configJSON, err := readEntry(&r.Reader, ConfigEntry)
	if err != nil {
		return nil, errors.WithMessagef(err, "archive %q", path)
	}
	if err = json.Unmarshal(configJSON, &contents.Config); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "archive %q: invalid %s: %v", path, ConfigEntry, err)
	}
	root, err := readWeightsEntry(&r.Reader, contents.Metadata.WeightsDigest)
	if err != nil {
		return nil, errors.WithMessagef(err, "archive %q", path)
	}
	if contents.Weights, err = layerParameters(root); err != nil {
		return nil, errors.WithMessagef(err, "archive %q", path)
	}
	if contents.Optimizer, err = optimizerState(root); err != nil {
		return nil, errors.WithMessagef(err, "archive %q", path)
	}
	if contents.Optimizer != nil {
		if config, ok := root.Group(optimizerGroup).Attrs[optConfigAttr].(map[string]any); ok {
			contents.Optimizer.Config = config
		}
	}
	return contents, nil
}

// Read loads the model saved in the archive at path.
//
// The model is rebuilt from its configuration with model.FromConfig, and its weights are loaded by name.
func Read(path string, options ReadOptions) (*model.Model, error) {
	contents, err := Open(path)
	if err != nil {
		return nil, err
	}
	m, err := model.FromConfig(contents.Config, model.DeserializeOptions{
		CustomObjects: options.CustomObjects,
		SafeMode:      options.SafeMode,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to rebuild model from archive %q", path)
	}
	if _, err = weights.Reconcile(m, contents.Weights, weights.Options{Mode: weights.ByName}); err != nil {
		return nil, errors.WithMessagef(err, "failed to load weights from archive %q", path)
	}
	if options.Compile {
		m.Optimizer = contents.Optimizer
	} else {
		m.Compile = nil
	}
	klog.V(1).Infof("model %q loaded from %q (saved %s)", m.Name, path, contents.Metadata.DateSaved)
	return m, nil
}

// ReadWeightsOnly loads only the layer variables stored at path into m, matching them by name.
// The path can be a modern archive (`.keras`) or a standalone weights file (`.weights.h5`): the suffix
// selects which. A `.keras` path that is not an accessible zip file returns an error wrapping ErrCorrupt.
//
// If skipMismatch is true, mismatched variables are skipped and reported, otherwise the first mismatch is
// returned as an error, and m is not modified.
func ReadWeightsOnly(m *model.Model, path string, skipMismatch bool) (*weights.Report, error) {
	var set *weights.Set
	if strings.HasSuffix(path, Suffix) {
		contents, err := Open(path)
		if err != nil {
			return nil, err
		}
		set = contents.Weights
	} else {
		file, err := dense.ReadFile(path)
		if err != nil {
			if errors.Is(err, dense.ErrNotDenseFile) || errors.Is(err, dense.ErrDigestMismatch) {
				return nil, errors.Wrapf(ErrCorrupt, "%v", err)
			}
			return nil, err
		}
		if set, err = layerParameters(file.Root); err != nil {
			return nil, errors.WithMessagef(err, "weights file %q", path)
		}
	}
	report, err := weights.Reconcile(m, set, weights.Options{Mode: weights.ByName, SkipMismatch: skipMismatch})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load weights from %q", path)
	}
	return report, nil
}

func readEntry(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "failed to open entry %q: %v", name, err)
		}
		defer func() { _ = rc.Close() }()
		contents, err := io.ReadAll(rc)
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "failed to read entry %q: %v", name, err)
		}
		return contents, nil
	}
	return nil, errors.Wrapf(ErrCorrupt, "missing entry %q", name)
}

func readWeightsEntry(r *zip.Reader, wantDigest string) (*dense.Group, error) {
	blob, err := readEntry(r, WeightsEntry)
	if err != nil {
		return nil, err
	}
	file, err := dense.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "entry %q: %v", WeightsEntry, err)
	}
	if file.Digest.String() != wantDigest {
		return nil, errors.Wrapf(ErrCorrupt, "entry %q has digest %s, but metadata lists %s",
			WeightsEntry, file.Digest, wantDigest)
	}
	return file.Root, nil
}
