// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package archive implements the modern, self-describing model format: a zip container (`.keras`) with
// the model architecture (`config.json`), the archive metadata (`metadata.json`) and a dense file with the
// weights and optimizer state (`model.weights.h5`).
//
// It also implements the standalone weights-only format (`.weights.h5`): the same dense file as the one
// stored inside the archive, outside of the zip container.
//
// Within the dense file, the variables of each layer are stored in the group "layers/<layer_name>/vars",
// as datasets named by their index ("0", "1", ...), and the group attribute "names" lists the variable
// names. Optimizer variables are stored the same way in "optimizer/vars".
package archive

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/model/encoding"
	"github.com/gomlx/modelio/pkg/ml/saving/dense"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
	"github.com/gomlx/modelio/pkg/support/fsutil"
)

// Suffixes of the formats implemented by this package.
const (
	Suffix            = ".keras"
	WeightsOnlySuffix = ".weights.h5"
)

// Names of the zip entries.
const (
	MetadataEntry = "metadata.json"
	ConfigEntry   = "config.json"
	WeightsEntry  = "model.weights.h5"
)

// Names used within the dense weights file.
const (
	layersGroup    = "layers"
	optimizerGroup = "optimizer"
	varsGroup      = "vars"
	namesAttr      = "names"
	versionAttr    = "format_version"
	libraryAttr    = "library_version"
	optNameAttr    = "name"
	optConfigAttr  = "config"
)

// ErrCorrupt is wrapped by the errors returned when the contents of an archive or weights file are invalid:
// it is not a zip container, it misses entries, or the digests don't match.
var ErrCorrupt = errors.New("corrupt model archive")

// TempDir returns the process-scoped directory where remote archives are staged.
func TempDir() (string, error) {
	return fsutil.ProcessStaging.Path()
}

// buildWeightsTree returns the dense tree with the variables of m.
func buildWeightsTree(m *model.Model, includeOptimizer bool) (*dense.Group, error) {
	root := dense.NewGroup("/")
	root.SetAttr(versionAttr, encoding.Version1)
	root.SetAttr(libraryAttr, encoding.LibraryVersion)
	layers := root.RequireGroup(layersGroup)
	for _, layer := range m.Layers {
		vars := layers.RequireGroup(layer.Name).RequireGroup(varsGroup)
		if err := storeVariables(vars, layer.Variables); err != nil {
			return nil, errors.WithMessagef(err, "layer %q", layer.Name)
		}
	}
	if includeOptimizer && m.Optimizer != nil {
		opt := root.RequireGroup(optimizerGroup)
		opt.SetAttr(optNameAttr, m.Optimizer.Name)
		if err := storeVariables(opt.RequireGroup(varsGroup), m.Optimizer.Variables); err != nil {
			return nil, errors.WithMessagef(err, "optimizer %q", m.Optimizer.Name)
		}
	}
	return root, nil
}

func storeVariables(vars *dense.Group, variables []*model.Variable) error {
	names := make([]string, 0, len(variables))
	for ii, v := range variables {
		if _, err := vars.CreateDataset(strconv.Itoa(ii), v.Value); err != nil {
			return err
		}
		names = append(names, v.Name)
	}
	vars.SetAttr(namesAttr, names)
	return nil
}

// layerParameters returns the stored layer variables as a weights.Set, in file order.
func layerParameters(root *dense.Group) (*weights.Set, error) {
	set := weights.NewSet()
	layers := root.Group(layersGroup)
	if layers == nil {
		return nil, errors.Wrapf(ErrCorrupt, "weights file has no %q group", layersGroup)
	}
	for _, layer := range layers.Groups {
		vars := layer.Group(varsGroup)
		if vars == nil {
			continue
		}
		if err := addVariables(set, layer.Name, vars); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func addVariables(set *weights.Set, layerName string, vars *dense.Group) error {
	names, err := vars.StringsAttr(namesAttr)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "layer %q: %v", layerName, err)
	}
	for ii, name := range names {
		ds := vars.Dataset(strconv.Itoa(ii))
		if ds == nil {
			return errors.Wrapf(ErrCorrupt, "layer %q: missing variable #%d %q", layerName, ii, name)
		}
		shape, err := ds.Shape()
		if err != nil {
			return errors.Wrapf(ErrCorrupt, "layer %q, variable %q: %v", layerName, name, err)
		}
		err = set.Add(&weights.Descriptor{
			Name:  layerName + "/" + name,
			Layer: layerName,
			Index: ii,
			Shape: shape,
			Load:  ds.Tensor,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// optimizerState returns the stored optimizer state, or nil if there is none.
func optimizerState(root *dense.Group) (*model.OptimizerState, error) {
	opt := root.Group(optimizerGroup)
	if opt == nil {
		return nil, nil
	}
	name, _ := opt.StringAttr(optNameAttr)
	state := &model.OptimizerState{Name: name}
	vars := opt.Group(varsGroup)
	if vars == nil {
		return state, nil
	}
	set := weights.NewSet()
	if err := addVariables(set, model.OptimizerScope, vars); err != nil {
		return nil, err
	}
	for desc := range set.All() {
		value, err := desc.Load()
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "optimizer variable %q: %v", desc.Name, err)
		}
		v := model.NewVariable(desc.Name[len(model.OptimizerScope)+1:], value)
		v.Trainable = false
		state.Variables = append(state.Variables, v)
	}
	return state, nil
}
