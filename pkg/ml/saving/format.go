// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"fmt"
	"strings"

	"github.com/gomlx/modelio/pkg/ml/saving/archive"
	"github.com/gomlx/modelio/pkg/ml/saving/legacy"
)

// Format of a model file.
type Format int

const (
	// Unrecognized path suffix: always an error.
	Unrecognized Format = iota

	// ModernArchive is the `.keras` zip archive.
	ModernArchive

	// WeightsOnlyArchive is the `.weights.h5` file, holding only the layer weights.
	WeightsOnlyArchive

	// LegacyDense is the `.h5` or `.hdf5` legacy format.
	LegacyDense
)

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case Unrecognized:
		return "unrecognized"
	case ModernArchive:
		return "archive"
	case WeightsOnlyArchive:
		return "weights-only"
	case LegacyDense:
		return "legacy"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// AcceptedSuffixes lists all suffixes recognized by FormatFromSuffix.
var AcceptedSuffixes = append([]string{archive.Suffix, archive.WeightsOnlySuffix}, legacy.Suffixes...)

// FormatFromSuffix returns the format implied by the path suffix alone. The match is case-sensitive.
func FormatFromSuffix(path string) Format {
	switch {
	case strings.HasSuffix(path, archive.Suffix):
		return ModernArchive
	case strings.HasSuffix(path, archive.WeightsOnlySuffix):
		return WeightsOnlyArchive
	}
	for _, suffix := range legacy.Suffixes {
		if strings.HasSuffix(path, suffix) {
			return LegacyDense
		}
	}
	return Unrecognized
}

// Classification is the result of Classify.
type Classification struct {
	Format Format

	// Corrupt is set for ModernArchive paths that are not a valid archive container (or are missing).
	Corrupt bool
}

// Classify the path by its suffix and, for modern archives, by probing its contents with isArchive.
//
// It doesn't modify anything, so calling it again on the same unchanged file yields the same result.
func Classify(path string, isArchive func(path string) bool) Classification {
	c := Classification{Format: FormatFromSuffix(path)}
	if c.Format == ModernArchive {
		c.Corrupt = !isArchive(path)
	}
	return c
}
