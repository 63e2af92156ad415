// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package legacy

import (
	"encoding/json"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/model/encoding"
	"github.com/gomlx/modelio/pkg/ml/saving/dense"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
	"github.com/gomlx/modelio/pkg/support/fsutil"
)

// Backend reads and writes legacy files.
type Backend struct {
	prompt Prompt
}

// New returns a Backend that uses prompt to confirm overwrites. If prompt is nil, existing files are only
// overwritten when requested.
func New(prompt Prompt) *Backend {
	return &Backend{prompt: prompt}
}

// proceed checks the overwrite policy: it returns false if the file exists, overwrite is false and the
// prompt doesn't confirm.
func (b *Backend) proceed(path string, overwrite bool) bool {
	if overwrite || !fsutil.Exists(path) {
		return true
	}
	if b.prompt == nil {
		klog.Warningf("not overwriting existing file %q", path)
		return false
	}
	return b.prompt.ConfirmOverwrite(path)
}

// Write saves the model to path in the legacy format.
//
// If the file exists and overwrite is false, the backend prompt is asked for confirmation, and declining
// is not an error: nothing is written.
func (b *Backend) Write(m *model.Model, path string, overwrite, includeOptimizer bool) error {
	if err := m.Validate(); err != nil {
		return errors.WithMessagef(err, "cannot save model to %q", path)
	}
	if !b.proceed(path, overwrite) {
		return nil
	}
	root := dense.NewGroup("/")
	root.SetAttr(KerasVersionAttr, encoding.LibraryVersion)
	root.SetAttr(BackendAttr, BackendName)
	configJSON, err := json.Marshal(m.Config())
	if err != nil {
		return errors.Wrapf(err, "failed to serialize configuration of model %q", m.Name)
	}
	root.SetAttr(ModelConfigAttr, string(configJSON))
	if m.Compile != nil {
		trainingJSON, err := json.Marshal(m.Compile)
		if err != nil {
			return errors.Wrapf(err, "failed to serialize training configuration of model %q", m.Name)
		}
		root.SetAttr(TrainingConfigAttr, string(trainingJSON))
	}
	if err = storeLayers(root.RequireGroup(ModelWeightsGroup), m); err != nil {
		return errors.WithMessagef(err, "cannot save model to %q", path)
	}
	if includeOptimizer && m.Optimizer != nil && len(m.Optimizer.Variables) > 0 {
		opt := root.RequireGroup(OptimizerWeightsGroup)
		names := make([]string, 0, len(m.Optimizer.Variables))
		for _, v := range m.Optimizer.Variables {
			name := model.OptimizerScope + "/" + v.Name + weightSuffix
			if _, err = opt.CreateDataset(name, v.Value); err != nil {
				return errors.WithMessagef(err, "cannot save model to %q", path)
			}
			names = append(names, name)
		}
		opt.SetAttr(WeightNamesAttr, names)
	}
	if _, err = dense.WriteFile(path, root, dense.Options{}); err != nil {
		return err
	}
	klog.V(1).Infof("model %q saved to legacy file %q", m.Name, path)
	return nil
}

// WriteWeights saves only the layer weights of the model to path, in the weights-only legacy layout.
func (b *Backend) WriteWeights(m *model.Model, path string, overwrite bool) error {
	if err := m.Validate(); err != nil {
		return errors.WithMessagef(err, "cannot save weights to %q", path)
	}
	if !b.proceed(path, overwrite) {
		return nil
	}
	root := dense.NewGroup("/")
	root.SetAttr(KerasVersionAttr, encoding.LibraryVersion)
	root.SetAttr(BackendAttr, BackendName)
	if err := storeLayers(root, m); err != nil {
		return errors.WithMessagef(err, "cannot save weights to %q", path)
	}
	_, err := dense.WriteFile(path, root, dense.Options{})
	return err
}

func storeLayers(group *dense.Group, m *model.Model) error {
	layerNames := make([]string, 0, len(m.Layers))
	for _, layer := range m.Layers {
		layerNames = append(layerNames, layer.Name)
		layerGroup := group.RequireGroup(layer.Name)
		weightNames := make([]string, 0, len(layer.Variables))
		for _, v := range layer.Variables {
			name := layer.ParameterName(v) + weightSuffix
			if _, err := layerGroup.CreateDataset(name, v.Value); err != nil {
				return errors.WithMessagef(err, "layer %q", layer.Name)
			}
			weightNames = append(weightNames, name)
		}
		layerGroup.SetAttr(WeightNamesAttr, weightNames)
	}
	group.SetAttr(LayerNamesAttr, layerNames)
	return nil
}

// Read loads a full model from the legacy file at path.
//
// The model is rebuilt with the built-in layer classes only, in safe mode, and its weights are loaded by
// position. The training configuration is restored if present; the optimizer state is not.
func (b *Backend) Read(path string) (*model.Model, error) {
	root, err := Open(path)
	if err != nil {
		return nil, err
	}
	configJSON, found := root.StringAttr(ModelConfigAttr)
	if !found {
		return nil, errors.Errorf("no model found in legacy file %q: it has no %q attribute, "+
			"it may be a weights-only file", path, ModelConfigAttr)
	}
	var config encoding.ModelConfig
	if err = json.Unmarshal([]byte(configJSON), &config); err != nil {
		return nil, errors.Wrapf(err, "invalid %q in legacy file %q", ModelConfigAttr, path)
	}
	m, err := model.FromConfig(config, model.DeserializeOptions{SafeMode: true})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to rebuild model from legacy file %q", path)
	}
	if _, err = ReadWeightsByPosition(WeightsGroup(root), m, false); err != nil {
		return nil, errors.WithMessagef(err, "failed to load weights from legacy file %q", path)
	}
	m.Compile = nil
	if trainingJSON, found := root.StringAttr(TrainingConfigAttr); found {
		m.Compile = &encoding.CompileConfig{}
		if err = json.Unmarshal([]byte(trainingJSON), m.Compile); err != nil {
			return nil, errors.Wrapf(err, "invalid %q in legacy file %q", TrainingConfigAttr, path)
		}
	}
	klog.V(1).Infof("model %q loaded from legacy file %q", m.Name, path)
	return m, nil
}

// Open implements saving.LegacyBackend.
func (b *Backend) Open(path string) (*dense.Group, error) {
	return Open(path)
}

// ReadWeightsByPosition implements saving.LegacyBackend.
func (b *Backend) ReadWeightsByPosition(group *dense.Group, m *model.Model, skipMismatch bool) (*weights.Report, error) {
	return ReadWeightsByPosition(group, m, skipMismatch)
}

// ReadWeightsByName implements saving.LegacyBackend.
func (b *Backend) ReadWeightsByName(group *dense.Group, m *model.Model, skipMismatch bool) (*weights.Report, error) {
	return ReadWeightsByName(group, m, skipMismatch)
}
