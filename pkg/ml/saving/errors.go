// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/pkg/errors"
)

// Sentinel errors, matched with errors.Is against the typed errors below.
var (
	ErrUnsupportedFormat         = errors.New("unsupported format")
	ErrCorruptArchive            = errors.New("corrupt archive")
	ErrDeprecatedArgument        = errors.New("deprecated argument")
	ErrInvalidArgument           = errors.New("invalid argument")
	ErrMissingOptionalDependency = errors.New("missing optional dependency")
)

// UnsupportedFormatError is returned when the path suffix is not accepted by the operation.
type UnsupportedFormatError struct {
	Path string

	// Accepted suffixes for the operation.
	Accepted []string

	// Hint is an optional extra message, e.g. pointing to another operation.
	Hint string
}

func (e *UnsupportedFormatError) Error() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "invalid path %q: the file must have one of the suffixes %s", e.Path,
		strings.Join(e.Accepted, ", "))
	if suggestion := suggestSuffix(e.Path, e.Accepted); suggestion != "" {
		_, _ = fmt.Fprintf(&sb, " (did you mean %q?)", suggestion)
	}
	if e.Hint != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Hint)
	}
	return sb.String()
}

// Is implements errors.Is.
func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// suggestSuffix returns the accepted suffix closest to the extension of path, if it is close enough to be a
// likely typo.
func suggestSuffix(path string, accepted []string) string {
	ext := filepath.Ext(path)
	if len(ext) < 2 {
		return ""
	}
	best, bestDistance := "", 3
	for _, suffix := range accepted {
		if d := levenshtein.ComputeDistance(ext, suffix); d < bestDistance {
			best, bestDistance = suffix, d
		}
	}
	if best == "" {
		return ""
	}
	return strings.TrimSuffix(path, ext) + best
}

// CorruptArchiveError is returned when a path with the archive suffix is not an accessible archive.
// It is never retried with another backend.
type CorruptArchiveError struct {
	Path  string
	Cause error
}

func (e *CorruptArchiveError) Error() string {
	msg := fmt.Sprintf("file not found or not an accessible `.keras` zip file: %q", e.Path)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is implements errors.Is.
func (e *CorruptArchiveError) Is(target error) bool { return target == ErrCorruptArchive }

// Unwrap returns the cause.
func (e *CorruptArchiveError) Unwrap() error { return e.Cause }

// DeprecatedArgumentError is returned when the deprecated SaveFormat selector disagrees with the path.
type DeprecatedArgumentError struct {
	Argument, Value, Path string
}

func (e *DeprecatedArgumentError) Error() string {
	return fmt.Sprintf("the %s argument is deprecated and can only be used when the path suffix matches it: "+
		"got %s=%q for path %q; use a path with the `.keras` suffix, or `.h5` for the legacy format, and "+
		"drop the argument", e.Argument, e.Argument, e.Value, e.Path)
}

// Is implements errors.Is.
func (e *DeprecatedArgumentError) Is(target error) bool { return target == ErrDeprecatedArgument }

// InvalidArgumentError is returned for option values not accepted by the operation.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Reason)
}

// Is implements errors.Is.
func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// MissingOptionalDependencyError is returned when a legacy file is requested and legacy support is not
// available in the Handler.
type MissingOptionalDependencyError struct {
	Dependency string
	Path       string
}

func (e *MissingOptionalDependencyError) Error() string {
	return fmt.Sprintf("%s support is required to read %q, but it is not available", e.Dependency, e.Path)
}

// Is implements errors.Is.
func (e *MissingOptionalDependencyError) Is(target error) bool {
	return target == ErrMissingOptionalDependency
}
