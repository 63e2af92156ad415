// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package archive

import (
	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
)

// Backend exposes the package functions as a value, to be plugged into the saving dispatchers.
type Backend struct{}

// Write implements saving.ArchiveBackend.
func (Backend) Write(m *model.Model, path string, includeOptimizer bool) error {
	return Write(m, path, includeOptimizer)
}

// WriteWeightsOnly implements saving.ArchiveBackend.
func (Backend) WriteWeightsOnly(m *model.Model, path string) error {
	return WriteWeightsOnly(m, path)
}

// Read implements saving.ArchiveBackend.
func (Backend) Read(path string, options ReadOptions) (*model.Model, error) {
	return Read(path, options)
}

// ReadWeightsOnly implements saving.ArchiveBackend.
func (Backend) ReadWeightsOnly(m *model.Model, path string, skipMismatch bool) (*weights.Report, error) {
	return ReadWeightsOnly(m, path, skipMismatch)
}

// IsArchive implements saving.ArchiveBackend.
func (Backend) IsArchive(path string) bool {
	return IsArchive(path)
}

// TempDir implements saving.ArchiveBackend.
func (Backend) TempDir() (string, error) {
	return TempDir()
}
