// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// remotePathRegexp matches URLs ("<scheme>://...") and the mount points of network filesystems.
var remotePathRegexp = regexp.MustCompile(`^(/cns|/cfs|/gcs|/hdfs|/readahead|[a-zA-Z][a-zA-Z0-9+.-]*://)`)

// IsRemotePath returns whether the path refers to a remote location: a URL or the mount point of a network
// filesystem. It only looks at the path string.
func IsRemotePath(path string) bool {
	return remotePathRegexp.MatchString(path)
}

// RemoteStat is the information a SchemeHandler returns about a remote object.
type RemoteStat struct {
	IsDir bool

	// Size in bytes, or -1 if not known.
	Size int64
}

// SchemeHandler implements access to remote objects of one URL scheme.
type SchemeHandler interface {
	Stat(ctx context.Context, path string) (RemoteStat, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Remote implements access to remote paths, dispatching to the SchemeHandler registered for the path's
// URL scheme. Network filesystem mount points (e.g. "/gcs/...") and "file://" URLs are handled as local files.
//
// It is safe for concurrent use.
type Remote struct {
	// ShowProgressBar while copying objects of known size.
	ShowProgressBar bool

	mu       sync.RWMutex
	handlers map[string]SchemeHandler
}

// localScheme is the key of the handler for local (mounted) paths.
const localScheme = "file"

// NewRemote returns a Remote with handlers for the "http", "https" and "file" schemes.
func NewRemote() *Remote {
	r := &Remote{handlers: make(map[string]SchemeHandler)}
	httpHandler := &HTTPHandler{Client: http.DefaultClient}
	r.Register("http", httpHandler)
	r.Register("https", httpHandler)
	r.Register(localScheme, localHandler{})
	return r
}

// Register a handler for the URL scheme (e.g. "gs", "s3"). It replaces any previously registered handler.
func (r *Remote) Register(scheme string, handler SchemeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[strings.ToLower(scheme)] = handler
}

// IsRemote implements the RemoteFS interface.
func (r *Remote) IsRemote(path string) bool {
	return IsRemotePath(path)
}

// handlerFor returns the handler for path, and the path the handler expects.
func (r *Remote) handlerFor(path string) (SchemeHandler, string, error) {
	scheme := localScheme
	handlerPath := path
	if idx := strings.Index(path, "://"); idx > 0 {
		scheme = strings.ToLower(path[:idx])
		if scheme == localScheme {
			handlerPath = path[idx+len("://"):]
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, found := r.handlers[scheme]
	if !found {
		return nil, "", errors.Errorf("no handler registered for scheme %q of remote path %q", scheme, path)
	}
	return handler, handlerPath, nil
}

// IsDirectory implements the RemoteFS interface.
func (r *Remote) IsDirectory(path string) (bool, error) {
	handler, handlerPath, err := r.handlerFor(path)
	if err != nil {
		return false, err
	}
	stat, err := handler.Stat(context.Background(), handlerPath)
	if err != nil {
		return false, errors.WithMessagef(err, "stat of %q", path)
	}
	return stat.IsDir, nil
}

// Copy implements the RemoteFS interface: it copies the remote object src to the local file dst.
//
// The contents are written to a temporary file in the same directory as dst, and renamed to dst only if the
// whole copy succeeded. If overwrite is false and dst exists, it returns an error.
func (r *Remote) Copy(src, dst string, overwrite bool) error {
	ctx := context.Background()
	if !overwrite && Exists(dst) {
		return errors.Errorf("failed to copy %q: destination %q already exists", src, dst)
	}
	handler, handlerPath, err := r.handlerFor(src)
	if err != nil {
		return err
	}
	stat, err := handler.Stat(ctx, handlerPath)
	if err != nil {
		return errors.WithMessagef(err, "stat of %q", src)
	}
	if stat.IsDir {
		return errors.Errorf("failed to copy %q: it is a directory", src)
	}
	reader, err := handler.Open(ctx, handlerPath)
	if err != nil {
		return errors.WithMessagef(err, "failed to open %q", src)
	}
	defer func() { _ = reader.Close() }()

	tmpPath := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+uuid.NewString()+".tmp")
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed creating file %q", tmpPath)
	}
	var size int64
	if r.ShowProgressBar {
		size, err = CopyWithProgressBar(file, reader, stat.Size, filepath.Base(dst))
	} else {
		size, err = io.Copy(file, reader)
	}
	if err == nil && stat.Size >= 0 && size != stat.Size {
		err = errors.Errorf("copied %d bytes, but the source has %d bytes", size, stat.Size)
	}
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "copying %q to %q", src, dst)
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to rename %q to %q", tmpPath, dst)
	}
	klog.V(1).Infof("copied %q to %q (%s)", src, dst, humanize.IBytes(uint64(size)))
	return nil
}

// HTTPHandler implements SchemeHandler for "http" and "https" URLs.
//
// A URL is a directory if it ends with "/", or if the server reports the content type "text/directory".
type HTTPHandler struct {
	Client *http.Client
}

var _ SchemeHandler = (*HTTPHandler)(nil)

// Stat implements SchemeHandler, with a HEAD request.
func (h *HTTPHandler) Stat(ctx context.Context, path string) (RemoteStat, error) {
	if _, err := url.Parse(path); err != nil {
		return RemoteStat{}, errors.Wrapf(err, "invalid URL %q", path)
	}
	if strings.HasSuffix(path, "/") {
		return RemoteStat{IsDir: true, Size: -1}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, path, nil)
	if err != nil {
		return RemoteStat{}, errors.Wrapf(err, "invalid request for %q", path)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return RemoteStat{}, errors.Wrapf(err, "failed HEAD %q", path)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RemoteStat{}, errors.Errorf("HEAD %q: %s", path, resp.Status)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return RemoteStat{IsDir: mediaType == "text/directory", Size: resp.ContentLength}, nil
}

// Open implements SchemeHandler, with a GET request.
func (h *HTTPHandler) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid request for %q", path)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed downloading %q", path)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errors.Errorf("GET %q: %s", path, resp.Status)
	}
	return resp.Body, nil
}

// localHandler handles mounted network filesystems and "file://" URLs.
type localHandler struct{}

func (localHandler) Stat(_ context.Context, path string) (RemoteStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return RemoteStat{}, errors.Wrapf(err, "failed to stat %q", path)
	}
	return RemoteStat{IsDir: info.IsDir(), Size: info.Size()}, nil
}

func (localHandler) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	return f, nil
}
