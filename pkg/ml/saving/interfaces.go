// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/saving/archive"
	"github.com/gomlx/modelio/pkg/ml/saving/dense"
	"github.com/gomlx/modelio/pkg/ml/saving/legacy"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
	"github.com/gomlx/modelio/pkg/support/fsutil"
	"github.com/gomlx/modelio/ui/commandline"
)

// ArchiveBackend reads and writes modern archives and weights-only files. See archive.Backend.
type ArchiveBackend interface {
	Write(m *model.Model, path string, includeOptimizer bool) error
	WriteWeightsOnly(m *model.Model, path string) error
	Read(path string, options archive.ReadOptions) (*model.Model, error)

	// ReadWeightsOnly must return a non-nil Report when it succeeds.
	ReadWeightsOnly(m *model.Model, path string, skipMismatch bool) (*weights.Report, error)

	// IsArchive probes whether the file at path is an archive container.
	IsArchive(path string) bool

	// TempDir is the staging directory used when no StagingDirProvider is configured.
	TempDir() (string, error)
}

// LegacyBackend reads and writes legacy dense files. See legacy.Backend.
//
// Write and WriteWeights own their overwrite policy.
type LegacyBackend interface {
	Write(m *model.Model, path string, overwrite, includeOptimizer bool) error
	WriteWeights(m *model.Model, path string, overwrite bool) error
	Read(path string) (*model.Model, error)
	Open(path string) (*dense.Group, error)

	// ReadWeightsByPosition and ReadWeightsByName must return a non-nil Report when they succeed.
	ReadWeightsByPosition(group *dense.Group, m *model.Model, skipMismatch bool) (*weights.Report, error)
	ReadWeightsByName(group *dense.Group, m *model.Model, skipMismatch bool) (*weights.Report, error)
}

// RemoteFS detects and copies remote paths. See fsutil.Remote.
type RemoteFS interface {
	IsRemote(path string) bool
	IsDirectory(path string) (bool, error)
	Copy(src, dst string, overwrite bool) error
}

// Prompt asks for confirmation before overwriting a file. See commandline.Prompt.
type Prompt interface {
	ConfirmOverwrite(path string) bool
}

// StagingDirProvider provides the local directory where remote files are staged. See fsutil.StagingDir.
type StagingDirProvider interface {
	Path() (string, error)
}

var (
	_ ArchiveBackend     = archive.Backend{}
	_ LegacyBackend      = (*legacy.Backend)(nil)
	_ RemoteFS           = (*fsutil.Remote)(nil)
	_ Prompt             = (*commandline.Prompt)(nil)
	_ Prompt             = commandline.AssumeNo
	_ StagingDirProvider = (*fsutil.StagingDir)(nil)
)

// archiveTempDir uses ArchiveBackend.TempDir as a StagingDirProvider.
type archiveTempDir struct {
	backend ArchiveBackend
}

func (a archiveTempDir) Path() (string, error) { return a.backend.TempDir() }
