// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dense

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"k8s.io/klog/v2"
)

// Signature at the start of every dense file.
const Signature = "\x89DNS\r\n\x1a\n"

const (
	flagGzip = 1 << iota
)

var (
	// ErrNotDenseFile is returned when reading contents that don't start with the Signature.
	ErrNotDenseFile = errors.New("not a dense file")

	// ErrDigestMismatch is returned when the payload doesn't match the digest in the header: the file is corrupt.
	ErrDigestMismatch = errors.New("dense file digest mismatch")
)

// Options for writing.
type Options struct {
	// Uncompressed disables the gzip compression of the payload.
	Uncompressed bool
}

// File is a decoded dense file: its root group and the digest of its payload.
type File struct {
	Root   *Group
	Digest digest.Digest
}

// Encode writes root to w in the dense file format, and returns the digest of the payload.
func Encode(w io.Writer, root *Group, options Options) (digest.Digest, error) {
	blob, err := msgpack.Marshal(root)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode dense group tree")
	}
	var flags uint8
	payload := blob
	if !options.Uncompressed {
		flags |= flagGzip
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err = gz.Write(blob); err != nil {
			return "", errors.Wrap(err, "compress payload")
		}
		if err = gz.Close(); err != nil {
			return "", errors.Wrap(err, "compress payload")
		}
		payload = buf.Bytes()
	}
	dgst := digest.FromBytes(payload)

	var h []byte
	h = append(h, []byte(Signature)...)
	h = append(h, flags)
	h = binary.BigEndian.AppendUint16(h, uint16(len(dgst)))
	h = append(h, []byte(dgst)...)
	if _, err = w.Write(h); err != nil {
		return "", errors.Wrap(err, "write header")
	}
	if _, err = w.Write(payload); err != nil {
		return "", errors.Wrap(err, "write payload")
	}
	return dgst, nil
}

// Decode reads a dense file from r, verifying its signature and digest.
func Decode(r io.Reader) (*File, error) {
	buf := make([]byte, len(Signature))
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotDenseFile
		}
		return nil, errors.Wrap(err, "read header")
	}
	if string(buf) != Signature {
		return nil, ErrNotDenseFile
	}
	var flags uint8
	if err := binary.Read(r, binary.BigEndian, &flags); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	var digestLen uint16
	if err := binary.Read(r, binary.BigEndian, &digestLen); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	digestBuf := make([]byte, digestLen)
	if _, err := io.ReadFull(r, digestBuf); err != nil {
		return nil, errors.Wrap(err, "read header digest")
	}
	dgst, err := digest.Parse(string(digestBuf))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid digest %q in header", digestBuf)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read payload")
	}
	if got := dgst.Algorithm().FromBytes(payload); got != dgst {
		return nil, errors.Wrapf(ErrDigestMismatch, "header has %s, payload has %s", dgst, got)
	}

	var payloadReader io.Reader = bytes.NewReader(payload)
	if flags&flagGzip != 0 {
		gz, err := gzip.NewReader(payloadReader)
		if err != nil {
			return nil, errors.Wrap(err, "read gzip header")
		}
		defer func() { _ = gz.Close() }()
		payloadReader = gz
	}
	dec := msgpack.NewDecoder(payloadReader)
	dec.UseLooseInterfaceDecoding(true)
	root := &Group{}
	if err := dec.Decode(root); err != nil {
		return nil, errors.Wrap(err, "failed to decode dense group tree")
	}
	return &File{Root: root, Digest: dgst}, nil
}

// WriteFile writes root to path. It writes to a temporary file in the same directory first, and then
// renames it, so a failed write never leaves a partial file at path.
func WriteFile(path string, root *Group, options Options) (digest.Digest, error) {
	tmpPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %q", tmpPath)
	}
	dgst, err := Encode(f, root, options)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "failed to close %q", tmpPath)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.WithMessagef(err, "writing dense file %q", path)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", errors.Wrapf(err, "failed to rename %q to %q", tmpPath, path)
	}
	if klog.V(2).Enabled() {
		klog.Infof("dense file %q written (%s)", path, dgst)
	}
	return dgst, nil
}

// ReadFile reads and verifies the dense file at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dense file %q", path)
	}
	defer func() { _ = f.Close() }()
	file, err := Decode(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading dense file %q", path)
	}
	return file, nil
}

// IsDenseFile probes whether the file at path starts with the Signature.
// Any error (missing file, permissions) is reported as false.
func IsDenseFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, len(Signature))
	if _, err = io.ReadFull(f, buf); err != nil {
		return false
	}
	return string(buf) == Signature
}
