// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package legacy implements the legacy dense model format (`.h5`, `.hdf5` files).
//
// The format is considered legacy: it is fully supported, but new models should be saved in the modern
// archive format (see package archive).
//
// A full model file has, at its root, the attributes "keras_version", "backend", "model_config" (the model
// architecture as JSON) and, for compiled models, "training_config". The layer weights are stored in the
// group "model_weights", whose attribute "layer_names" lists the layers in model order; each layer is a
// sub-group whose attribute "weight_names" lists its weights, and each weight is a dataset named after it.
// Optimizer variables are stored likewise in the group "optimizer_weights".
//
// Weights-only files store the contents of "model_weights" directly at the root. Readers handle both
// layouts, see WeightsGroup.
//
// Support is optional, see Available.
package legacy

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/saving/dense"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
)

// Suffixes of legacy files.
var Suffixes = []string{".h5", ".hdf5"}

// Names used in the legacy layout.
const (
	KerasVersionAttr   = "keras_version"
	BackendAttr        = "backend"
	ModelConfigAttr    = "model_config"
	TrainingConfigAttr = "training_config"
	LayerNamesAttr     = "layer_names"
	WeightNamesAttr    = "weight_names"

	ModelWeightsGroup     = "model_weights"
	OptimizerWeightsGroup = "optimizer_weights"

	// BackendName written to the "backend" attribute.
	BackendName = "gomlx"

	// weightSuffix of the weight names, kept for compatibility with older writers.
	weightSuffix = ":0"
)

// DisableEnv is the environment variable that, if set to a true value ("1", "true"), disables legacy support.
const DisableEnv = "GOMLX_MODELIO_NO_LEGACY"

// Available reports whether legacy support is available in this process. It is the capability checked by
// the dispatchers before any legacy operation.
func Available() bool {
	value, found := os.LookupEnv(DisableEnv)
	if !found {
		return true
	}
	disabled, err := strconv.ParseBool(value)
	return err != nil || !disabled
}

// Prompt asks the user whether to overwrite an existing file.
type Prompt interface {
	ConfirmOverwrite(path string) bool
}

// Open reads the legacy file at path and returns its root group.
func Open(path string) (*dense.Group, error) {
	file, err := dense.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return file.Root, nil
}

// WeightsGroup returns the group holding the layer weights: the root itself for weights-only files, or the
// "model_weights" group of full model files, identified by the absence of the "layer_names" attribute at the
// root and the presence of the "model_weights" group.
func WeightsGroup(root *dense.Group) *dense.Group {
	if !root.HasAttr(LayerNamesAttr) {
		if nested := root.Group(ModelWeightsGroup); nested != nil {
			return nested
		}
	}
	return root
}

// Parameters returns the weights stored in group (see WeightsGroup) as a weights.Set, in file order.
// Layers without weights are not included.
//
// Weight names are normalized to "<layer>/<weight>", without the legacy ":0" suffix.
func Parameters(group *dense.Group) (*weights.Set, error) {
	layerNames, err := group.StringsAttr(LayerNamesAttr)
	if err != nil {
		return nil, errors.WithMessage(err, "not a legacy weights group")
	}
	set := weights.NewSet()
	for _, layerName := range layerNames {
		layerGroup := group.Group(layerName)
		if layerGroup == nil {
			return nil, errors.Errorf("layer %q listed in %q, but its group is missing", layerName, LayerNamesAttr)
		}
		weightNames, err := layerGroup.StringsAttr(WeightNamesAttr)
		if err != nil {
			return nil, err
		}
		for ii, weightName := range weightNames {
			ds := layerGroup.Dataset(weightName)
			if ds == nil {
				return nil, errors.Errorf("layer %q: weight %q listed in %q, but its dataset is missing",
					layerName, weightName, WeightNamesAttr)
			}
			shape, err := ds.Shape()
			if err != nil {
				return nil, errors.WithMessagef(err, "layer %q", layerName)
			}
			err = set.Add(&weights.Descriptor{
				Name:  normalizeWeightName(layerName, weightName),
				Layer: layerName,
				Index: ii,
				Shape: shape,
				Load:  ds.Tensor,
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

func normalizeWeightName(layerName, weightName string) string {
	name := strings.TrimSuffix(weightName, weightSuffix)
	if !strings.HasPrefix(name, layerName+"/") {
		name = layerName + "/" + name
	}
	return name
}

// ReadWeightsByPosition loads the weights stored in group into m, pairing the model's layers with weights
// with the stored layers in order.
func ReadWeightsByPosition(group *dense.Group, m *model.Model, skipMismatch bool) (*weights.Report, error) {
	set, err := Parameters(group)
	if err != nil {
		return nil, err
	}
	return weights.Reconcile(m, set, weights.Options{Mode: weights.ByPosition, SkipMismatch: skipMismatch})
}

// ReadWeightsByName loads the weights stored in group into m, pairing them by name.
func ReadWeightsByName(group *dense.Group, m *model.Model, skipMismatch bool) (*weights.Report, error) {
	set, err := Parameters(group)
	if err != nil {
		return nil, err
	}
	return weights.Reconcile(m, set, weights.Options{Mode: weights.ByName, SkipMismatch: skipMismatch})
}
