// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/saving/archive"
	"github.com/gomlx/modelio/pkg/support/fsutil"
)

// LoadRequest for Handler.Load.
type LoadRequest struct {
	Path string

	// CustomObjects are layer (or model) constructors, by class name, taking priority over the built-in ones.
	CustomObjects model.Registry

	// Compile restores the training configuration and optimizer state.
	Compile bool

	// SafeMode forbids deserializing code embedded in the configuration (e.g. Lambda layers).
	SafeMode bool
}

// Load the model stored at the path in the request.
//
// Remote paths are first staged locally. A `.keras` path that is not a valid archive returns
// CorruptArchiveError. Legacy files are read by the legacy backend, which rebuilds the model with the
// built-in classes only: CustomObjects, Compile and SafeMode only apply to archives.
func (h *Handler) Load(req LoadRequest) (*model.Model, error) {
	if req.Path == "" {
		return nil, &InvalidArgumentError{Argument: "Path", Reason: "empty path"}
	}
	switch FormatFromSuffix(req.Path) {
	case ModernArchive:
	case LegacyDense:
		if h.legacy == nil {
			return nil, &MissingOptionalDependencyError{Dependency: "legacy format", Path: req.Path}
		}
	case WeightsOnlyArchive:
		return nil, &UnsupportedFormatError{Path: req.Path, Accepted: modelSuffixes,
			Hint: "a weights-only file has no model architecture, use LoadWeights on a model instead"}
	default:
		return nil, &UnsupportedFormatError{Path: req.Path, Accepted: modelSuffixes}
	}

	path, err := fsutil.ReplaceTildeInDir(req.Path)
	if err != nil {
		return nil, err
	}
	// Locally the suffix decides: only `.keras` files are probed. Staged copies of remote files are
	// probed whatever their suffix.
	isArchive := FormatFromSuffix(path) == ModernArchive && h.archive.IsArchive(path)
	localPath := path
	if !isArchive {
		if localPath, err = h.stager.Stage(path); err != nil {
			return nil, err
		}
		if localPath != path {
			isArchive = h.archive.IsArchive(localPath)
		}
	}

	class := Classify(localPath, func(string) bool { return isArchive })
	klog.V(1).Infof("loading %q: format %s, archive=%v", localPath, class.Format, isArchive)
	switch {
	case isArchive:
		if class.Format != ModernArchive {
			klog.Warningf("%q is a zip archive, loading it as a `.keras` archive", req.Path)
		}
		m, err := h.archive.Read(localPath, archive.ReadOptions{
			CustomObjects: req.CustomObjects,
			Compile:       req.Compile,
			SafeMode:      req.SafeMode,
		})
		return m, asCorruptArchive(localPath, err)
	case class.Format == LegacyDense:
		return h.legacy.Read(localPath)
	default:
		return nil, &CorruptArchiveError{Path: req.Path}
	}
}

// asCorruptArchive converts archive.ErrCorrupt errors to CorruptArchiveError.
func asCorruptArchive(path string, err error) error {
	if err != nil && errors.Is(err, archive.ErrCorrupt) {
		return &CorruptArchiveError{Path: path, Cause: err}
	}
	return err
}
