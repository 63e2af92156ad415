// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"net/url"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Stager copies remote files to a local staging directory.
type Stager struct {
	fs   RemoteFS
	dirs StagingDirProvider
}

// Stage returns a local path with the contents of filePath.
//
// If filePath is not remote, or is a remote directory, it is returned unchanged. Otherwise, it is copied
// into the staging directory, keeping its basename and replacing any previous copy with the same basename.
// On failure no staged path is returned, and the caller must not proceed.
func (s Stager) Stage(filePath string) (string, error) {
	if s.fs == nil || !s.fs.IsRemote(filePath) {
		return filePath, nil
	}
	isDir, err := s.fs.IsDirectory(filePath)
	if err != nil {
		return "", errors.WithMessagef(err, "failed to stage %q", filePath)
	}
	if isDir {
		return filePath, nil
	}
	if s.dirs == nil {
		return "", errors.Errorf("failed to stage %q: no staging directory configured", filePath)
	}
	dir, err := s.dirs.Path()
	if err != nil {
		return "", errors.WithMessagef(err, "failed to stage %q", filePath)
	}
	base, err := remoteBase(filePath)
	if err != nil {
		return "", err
	}
	localPath := filepath.Join(dir, base)
	if err = s.fs.Copy(filePath, localPath, true); err != nil {
		return "", errors.WithMessagef(err, "failed to stage %q", filePath)
	}
	klog.V(1).Infof("staged %q to %q", filePath, localPath)
	return localPath, nil
}

// remoteBase returns the basename of a remote path, taken from the URL path if it is a URL.
func remoteBase(remotePath string) (string, error) {
	p := remotePath
	if u, err := url.Parse(remotePath); err == nil && u.Scheme != "" {
		p = u.Path
	}
	base := path.Base(p)
	if base == "." || base == "/" || base == "" {
		return "", errors.Errorf("cannot stage %q: it has no file name", remotePath)
	}
	return base, nil
}
