// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// StagingDir is a lazily created local directory where remote artifacts are copied to.
// Its contents are removed by Cleanup.
//
// It is safe for concurrent use, but files staged in it are named after the remote basename, so
// staging two different remote files with the same basename concurrently is a race.
type StagingDir struct {
	// Parent directory where the staging directory is created. If empty, os.TempDir() is used.
	Parent string
	prefix string

	mu   sync.Mutex
	path string
}

// NewStagingDir returns a StagingDir whose directory will be named "<prefix>-<uuid>".
func NewStagingDir(prefix string) *StagingDir {
	return &StagingDir{prefix: prefix}
}

// ProcessStaging is the process-scoped staging directory.
var ProcessStaging = NewStagingDir("modelio-staging")

// Path returns the staging directory, creating it on the first call.
func (s *StagingDir) Path() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		return s.path, nil
	}
	parent := s.Parent
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, s.prefix+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrapf(err, "failed to create staging directory %q", dir)
	}
	klog.V(1).Infof("created staging directory %q", dir)
	s.path = dir
	return dir, nil
}

// Cleanup removes the staging directory and its contents, if it was created.
// A following call to Path creates a new one.
func (s *StagingDir) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	dir := s.path
	s.path = ""
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "failed to remove staging directory %q", dir)
	}
	return nil
}
