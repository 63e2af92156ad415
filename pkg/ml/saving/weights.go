// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/saving/legacy"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
	"github.com/gomlx/modelio/pkg/support/fsutil"
)

// WeightsRequest for Handler.LoadWeights.
type WeightsRequest struct {
	// Model to load the weights into. Its architecture is not changed, only its variables' values.
	Model *model.Model
	Path  string

	// SkipMismatch skips (and reports) stored weights that don't match the model, instead of failing.
	SkipMismatch bool

	// MatchMode is how stored weights are paired with the model's. Archives always pair by name and only
	// accept the default weights.ByPosition.
	MatchMode weights.MatchMode
}

// LoadWeights loads only the weights stored at the path into the model, which is modified in place.
//
// Paths with the `.keras` or `.weights.h5` suffixes are read by the archive backend, matching by name.
// Legacy paths require legacy support, and are matched according to MatchMode.
//
// Loading is atomic: if it fails the model is not modified. With SkipMismatch the mismatched weights are
// left untouched and listed in the returned Report.
func (h *Handler) LoadWeights(req WeightsRequest) (*weights.Report, error) {
	if req.Model == nil {
		return nil, &InvalidArgumentError{Argument: "Model", Reason: "nil model"}
	}
	if req.Path == "" {
		return nil, &InvalidArgumentError{Argument: "Path", Reason: "empty path"}
	}
	if req.MatchMode != weights.ByPosition && req.MatchMode != weights.ByName {
		return nil, &InvalidArgumentError{Argument: "MatchMode", Reason: "unknown " + req.MatchMode.String()}
	}
	format := FormatFromSuffix(req.Path)
	switch format {
	case ModernArchive, WeightsOnlyArchive:
		if req.MatchMode == weights.ByName {
			return nil, &InvalidArgumentError{Argument: "MatchMode",
				Reason: "ByName is only accepted for legacy files, archives always match weights by name"}
		}
	case LegacyDense:
		if h.legacy == nil {
			return nil, &MissingOptionalDependencyError{Dependency: "legacy format", Path: req.Path}
		}
	default:
		return nil, &UnsupportedFormatError{Path: req.Path, Accepted: AcceptedSuffixes}
	}
	path, err := fsutil.ReplaceTildeInDir(req.Path)
	if err != nil {
		return nil, err
	}

	var report *weights.Report
	if format == LegacyDense {
		report, err = h.loadLegacyWeights(req.Model, path, req.MatchMode, req.SkipMismatch)
	} else {
		report, err = h.archive.ReadWeightsOnly(req.Model, path, req.SkipMismatch)
		err = asCorruptArchive(path, err)
	}
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, errors.Errorf("loading weights from %q returned no report", path)
	}
	if !report.OK() {
		klog.Warningf("loading weights from %q into model %q: %d weights applied, %d skipped",
			path, req.Model.Name, len(report.Applied), len(report.Skipped))
	}
	return report, nil
}

func (h *Handler) loadLegacyWeights(m *model.Model, path string, mode weights.MatchMode, skipMismatch bool) (
	*weights.Report, error) {
	root, err := h.legacy.Open(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to open legacy file %q", path)
	}
	group := legacy.WeightsGroup(root)
	if mode == weights.ByName {
		return h.legacy.ReadWeightsByName(group, m, skipMismatch)
	}
	return h.legacy.ReadWeightsByPosition(group, m, skipMismatch)
}
