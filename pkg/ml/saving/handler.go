// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/saving/archive"
	"github.com/gomlx/modelio/pkg/ml/saving/legacy"
	"github.com/gomlx/modelio/pkg/support/fsutil"
	"github.com/gomlx/modelio/ui/commandline"
)

// Handler routes save and load requests to the backends. Create it with Build, or use Default.
//
// Operations are synchronous. A Handler can be used concurrently, but concurrent saves and loads of the
// same path are not ordered.
type Handler struct {
	archive ArchiveBackend
	legacy  LegacyBackend
	staging StagingDirProvider
	guard   Guard
	stager  Stager
}

// Config for a Handler, created with Build. Call Done or MustDone to create the Handler.
type Config struct {
	archive   ArchiveBackend
	legacy    LegacyBackend
	legacySet bool
	remote    RemoteFS
	prompt    Prompt
	promptSet bool
	staging   StagingDirProvider
	err       error
}

// Build a Handler configuration. The defaults are:
//
//   - archive.Backend for modern archives.
//   - legacy.Backend, if legacy.Available(), sharing the Handler's prompt.
//   - fsutil.NewRemote() for remote paths.
//   - commandline.Terminal() to confirm overwrites.
//   - The ArchiveBackend's TempDir for staging.
func Build() *Config {
	return &Config{
		archive: archive.Backend{},
		remote:  fsutil.NewRemote(),
	}
}

func (c *Config) setError(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Archive sets the backend for modern archives and weights-only files.
func (c *Config) Archive(backend ArchiveBackend) *Config {
	if backend == nil {
		c.setError(errors.New("saving.Config.Archive(nil): an archive backend is required"))
		return c
	}
	c.archive = backend
	return c
}

// Legacy sets the backend for legacy files. A nil backend is the same as NoLegacy.
func (c *Config) Legacy(backend LegacyBackend) *Config {
	c.legacy = backend
	c.legacySet = true
	return c
}

// NoLegacy disables legacy support: legacy paths fail with MissingOptionalDependencyError.
func (c *Config) NoLegacy() *Config {
	return c.Legacy(nil)
}

// RemoteFS sets the handler of remote paths. If nil, all paths are considered local.
func (c *Config) RemoteFS(fs RemoteFS) *Config {
	c.remote = fs
	return c
}

// Prompt sets what to ask before overwriting existing files when saving with overwrite=false.
// If nil, existing files are not overwritten.
func (c *Config) Prompt(prompt Prompt) *Config {
	c.prompt = prompt
	c.promptSet = true
	return c
}

// Staging sets the directory provider where remote files are staged.
func (c *Config) Staging(dirs StagingDirProvider) *Config {
	c.staging = dirs
	return c
}

// Done creates the Handler, or returns the first configuration error.
func (c *Config) Done() (*Handler, error) {
	if c.err != nil {
		return nil, c.err
	}
	prompt := c.prompt
	if !c.promptSet {
		prompt = commandline.Terminal()
	}
	legacyBackend := c.legacy
	if !c.legacySet && legacy.Available() {
		legacyBackend = legacy.New(prompt)
	}
	staging := c.staging
	if staging == nil {
		staging = archiveTempDir{c.archive}
	}
	h := &Handler{
		archive: c.archive,
		legacy:  legacyBackend,
		staging: staging,
		guard:   Guard{prompt: prompt},
		stager:  Stager{fs: c.remote, dirs: staging},
	}
	klog.V(2).Infof("saving.Handler created: legacy support %v", h.HasLegacy())
	return h, nil
}

// MustDone is like Done, but panics on error.
func (c *Config) MustDone() *Handler {
	h, err := c.Done()
	if err != nil {
		panic(errors.WithMessage(err, "failed to create saving.Handler"))
	}
	return h
}

// HasLegacy reports whether the Handler supports legacy files.
func (h *Handler) HasLegacy() bool {
	return h.legacy != nil
}

// Close removes the staged files, if the staging directory provider supports it (see fsutil.StagingDir).
func (h *Handler) Close() error {
	if cleaner, ok := h.staging.(interface{ Cleanup() error }); ok {
		return cleaner.Cleanup()
	}
	return nil
}

var (
	defaultHandler     *Handler
	defaultHandlerOnce sync.Once
)

// Default returns the process-wide Handler used by the package functions.
//
// It is created on the first call, with the defaults of Build and fsutil.ProcessStaging to stage remote
// files. Whether legacy support is available is decided then, see legacy.Available.
func Default() *Handler {
	defaultHandlerOnce.Do(func() {
		defaultHandler = Build().Staging(fsutil.ProcessStaging).MustDone()
	})
	return defaultHandler
}
