// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/saving/archive"
	"github.com/gomlx/modelio/pkg/ml/saving/legacy"
	"github.com/gomlx/modelio/pkg/support/fsutil"
)

// SaveRequest for Handler.Save.
type SaveRequest struct {
	Model *model.Model
	Path  string

	// Overwrite existing file without asking.
	Overwrite bool

	// IncludeOptimizerState saves the optimizer variables along with the model.
	IncludeOptimizerState bool

	// SaveFormat is deprecated: the format is given by the path suffix. If set, it must agree with
	// the suffix ("keras" for `.keras`, "h5" for `.h5` and `.hdf5`), and a warning is logged.
	SaveFormat string
}

// modelSuffixes are the suffixes accepted to save and load full models.
var modelSuffixes = append([]string{archive.Suffix}, legacy.Suffixes...)

// Save the model to the path in the request.
//
// For archives, if the file exists and Overwrite is false, the Handler's prompt is asked: if declined,
// nothing is written and no error is returned. The legacy backend handles overwrites itself.
func (h *Handler) Save(req SaveRequest) error {
	if req.Model == nil {
		return &InvalidArgumentError{Argument: "Model", Reason: "nil model"}
	}
	if req.Path == "" {
		return &InvalidArgumentError{Argument: "Path", Reason: "empty path"}
	}
	format := FormatFromSuffix(req.Path)
	if req.SaveFormat != "" {
		if err := checkSaveFormat(req.SaveFormat, req.Path, format); err != nil {
			return err
		}
	}
	switch format {
	case ModernArchive, LegacyDense:
	case WeightsOnlyArchive:
		return &UnsupportedFormatError{Path: req.Path, Accepted: modelSuffixes,
			Hint: "to save only the weights use SaveWeights"}
	default:
		return &UnsupportedFormatError{Path: req.Path, Accepted: modelSuffixes}
	}
	if format == LegacyDense && h.legacy == nil {
		return &MissingOptionalDependencyError{Dependency: "legacy format", Path: req.Path}
	}

	path, err := fsutil.ReplaceTildeInDir(req.Path)
	if err != nil {
		return err
	}
	if format == LegacyDense {
		klog.Warningf("You are saving your model %q as a legacy file (%q). This file format is considered "+
			"legacy, we recommend using the native `.keras` format instead, e.g. SaveModel(m, \"my_model.keras\")",
			req.Model.Name, path)
		klog.V(1).Infof("saving %q: routed to the legacy backend", path)
		return h.legacy.Write(req.Model, path, req.Overwrite, req.IncludeOptimizerState)
	}
	if !h.guard.Proceed(path, req.Overwrite) {
		klog.Infof("not saving model %q: %q exists and overwrite was declined", req.Model.Name, path)
		return nil
	}
	klog.V(1).Infof("saving %q: routed to the archive backend", path)
	return h.archive.Write(req.Model, path, req.IncludeOptimizerState)
}

// saveFormats maps the values of the deprecated SaveFormat selector to the format they select.
var saveFormats = map[string]Format{
	"keras": ModernArchive,
	"h5":    LegacyDense,
	"hdf5":  LegacyDense,
}

func checkSaveFormat(saveFormat, path string, format Format) error {
	selected, found := saveFormats[strings.ToLower(saveFormat)]
	if !found || selected != format {
		return &DeprecatedArgumentError{Argument: "SaveFormat", Value: saveFormat, Path: path}
	}
	klog.Warningf("The SaveFormat argument is deprecated, we recommend removing it: the format is given "+
		"by the path suffix (%q)", path)
	return nil
}

// weightsSuffixes are the suffixes accepted to save and load only the weights.
var weightsSuffixes = append([]string{archive.WeightsOnlySuffix}, legacy.Suffixes...)

// SaveWeights saves only the layer weights of the model to path, which must end with `.weights.h5` or,
// for the legacy format, `.h5` or `.hdf5`.
//
// The overwrite policy is the same as for Save.
func (h *Handler) SaveWeights(m *model.Model, path string, overwrite bool) error {
	if m == nil {
		return &InvalidArgumentError{Argument: "Model", Reason: "nil model"}
	}
	format := FormatFromSuffix(path)
	switch format {
	case WeightsOnlyArchive, LegacyDense:
	case ModernArchive:
		return &UnsupportedFormatError{Path: path, Accepted: weightsSuffixes,
			Hint: "to save the full model use SaveModel"}
	default:
		return &UnsupportedFormatError{Path: path, Accepted: weightsSuffixes}
	}
	if format == LegacyDense && h.legacy == nil {
		return &MissingOptionalDependencyError{Dependency: "legacy format", Path: path}
	}
	localPath, err := fsutil.ReplaceTildeInDir(path)
	if err != nil {
		return err
	}
	if format == LegacyDense {
		return h.legacy.WriteWeights(m, localPath, overwrite)
	}
	if !h.guard.Proceed(localPath, overwrite) {
		klog.Infof("not saving weights of %q: %q exists and overwrite was declined", m.Name, localPath)
		return nil
	}
	return errors.WithMessagef(h.archive.WriteWeightsOnly(m, localPath), "saving weights of %q", m.Name)
}
