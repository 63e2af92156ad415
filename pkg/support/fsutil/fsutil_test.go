// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.False(t, Exists(path))
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	require.True(t, Exists(path))
	exists, err := FileExists(dir)
	require.NoError(t, err)
	require.True(t, exists)
	// Invalid paths are reported as non-existing.
	require.False(t, Exists("gs://bucket/\x00model.keras"))
}

func TestReplaceTildeInDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	got, err := ReplaceTildeInDir("~/models")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "models"), got)
	got, err = ReplaceTildeInDir("/tmp/models")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/models", got)
}

func TestIsRemotePath(t *testing.T) {
	for _, path := range []string{"gs://bucket/model.keras", "https://host/m.keras", "/gcs/bucket/m.h5", "/cns/xx/m.keras", "s3://b/k"} {
		assert.Truef(t, IsRemotePath(path), "%q should be remote", path)
	}
	for _, path := range []string{"/tmp/model.keras", "model.keras", "./gs://x"} {
		assert.Falsef(t, IsRemotePath(path), "%q should be local", path)
	}
}

func TestStagingDir(t *testing.T) {
	staging := NewStagingDir("test")
	staging.Parent = t.TempDir()
	dir, err := staging.Path()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(filepath.Base(dir), "test-"))
	again, err := staging.Path()
	require.NoError(t, err)
	require.Equal(t, dir, again)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0o644))
	require.NoError(t, staging.Cleanup())
	require.False(t, Exists(dir))
	require.NoError(t, staging.Cleanup())
}

func TestRemoteHTTP(t *testing.T) {
	contents := bytes.Repeat([]byte("0123456789"), 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/model.keras":
			w.Header().Set("Content-Length", strconv.Itoa(len(contents)))
			_, _ = w.Write(contents)
		case "/models/dir":
			w.Header().Set("Content-Type", "text/directory")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	remote := NewRemote()
	require.True(t, remote.IsRemote(server.URL+"/models/model.keras"))

	isDir, err := remote.IsDirectory(server.URL + "/models/dir")
	require.NoError(t, err)
	require.True(t, isDir)
	isDir, err = remote.IsDirectory(server.URL + "/models/")
	require.NoError(t, err)
	require.True(t, isDir)
	isDir, err = remote.IsDirectory(server.URL + "/models/model.keras")
	require.NoError(t, err)
	require.False(t, isDir)

	dst := filepath.Join(t.TempDir(), "model.keras")
	require.NoError(t, remote.Copy(server.URL+"/models/model.keras", dst, false))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, contents, got)

	// Existing destination.
	require.Error(t, remote.Copy(server.URL+"/models/model.keras", dst, false))
	require.NoError(t, os.WriteFile(dst, []byte("stale"), 0o644))
	remote.ShowProgressBar = true
	require.NoError(t, remote.Copy(server.URL+"/models/model.keras", dst, true))
	got, err = os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, contents, got)

	// Missing source: no partial file is left.
	missingDst := filepath.Join(filepath.Dir(dst), "missing.keras")
	require.Error(t, remote.Copy(server.URL+"/models/missing.keras", missingDst, true))
	require.False(t, Exists(missingDst))
	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Unknown scheme.
	_, err = remote.IsDirectory("gs://bucket/model.keras")
	require.ErrorContains(t, err, "no handler registered")
}

func TestRemoteLocalMounts(t *testing.T) {
	src := filepath.Join(t.TempDir(), "model.h5")
	require.NoError(t, os.WriteFile(src, []byte("weights"), 0o644))
	remote := NewRemote()
	dst := filepath.Join(t.TempDir(), "model.h5")
	require.NoError(t, remote.Copy("file://"+src, dst, true))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "weights", string(got))
}
