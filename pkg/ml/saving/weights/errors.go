// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package weights

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/pkg/errors"

	"github.com/gomlx/modelio/pkg/core/shapes"
)

var (
	// ErrCountMismatch is matched (with errors.Is) by every CountMismatchError.
	ErrCountMismatch = errors.New("weights count mismatch")

	// ErrShapeMismatch is matched (with errors.Is) by every ShapeMismatchError.
	ErrShapeMismatch = errors.New("weights shape mismatch")

	// ErrNameNotFound is matched (with errors.Is) by every NameNotFoundError.
	ErrNameNotFound = errors.New("weights name not found")
)

// CountKind tells what was counted in a CountMismatchError.
type CountKind string

const (
	// CountLayers is the number of layers with weights.
	CountLayers CountKind = "layers"

	// CountWeights is the number of weights within a layer.
	CountWeights CountKind = "weights"
)

// CountMismatchError is returned when matching by position and the number of layers with weights, or
// the number of weights of a layer, differ between the model and the stored set.
type CountMismatchError struct {
	Kind CountKind

	// Layer name in the model and its position among the layers with weights. Only set for CountWeights.
	Layer      string
	StoredName string
	Index      int

	Expected, Actual int
}

func (e *CountMismatchError) Error() string {
	if e.Kind == CountLayers {
		return fmt.Sprintf("model has %d layers with weights, but the stored weights have %d layers", e.Expected, e.Actual)
	}
	return fmt.Sprintf("layer #%d %q expects %d weights, but the stored layer %q has %d weights",
		e.Index, e.Layer, e.Expected, e.StoredName, e.Actual)
}

// Is implements errors.Is.
func (e *CountMismatchError) Is(target error) bool { return target == ErrCountMismatch }

// ShapeMismatchError is returned when a stored parameter shape (or dtype) differs from the model variable
// it is paired with.
type ShapeMismatchError struct {
	// Name of the parameter in the model, and StoredName of the parameter it was paired with.
	Name       string
	StoredName string

	// Index of the parameter within its layer.
	Index int

	Expected, Actual shapes.Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("parameter %q (#%d in its layer) expects shape %s, but the stored parameter %q has shape %s",
		e.Name, e.Index, e.Expected, e.StoredName, e.Actual)
}

// Is implements errors.Is.
func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// Side where a name is missing.
type Side string

const (
	// MissingFromModel is used when a stored name has no counterpart in the model.
	MissingFromModel Side = "model"

	// MissingFromFile is used when a model parameter has no stored counterpart.
	MissingFromFile Side = "file"
)

// NameNotFoundError is returned when matching by name, and a name is present on one side only.
type NameNotFoundError struct {
	Name        string
	MissingFrom Side

	// Suggestions are the closest names on the other side.
	Suggestions []string
}

func (e *NameNotFoundError) Error() string {
	var msg string
	if e.MissingFrom == MissingFromModel {
		msg = fmt.Sprintf("stored parameter %q not found in the model", e.Name)
	} else {
		msg = fmt.Sprintf("model parameter %q not found in the stored weights", e.Name)
	}
	if len(e.Suggestions) > 0 {
		msg = fmt.Sprintf("%s, did you mean %s?", msg, strings.Join(quoteAll(e.Suggestions), " or "))
	}
	return msg
}

// Is implements errors.Is.
func (e *NameNotFoundError) Is(target error) bool { return target == ErrNameNotFound }

// maxSuggestions returned by suggest.
const maxSuggestions = 3

// suggest returns the candidates closest to name, by edit distance.
func suggest(name string, candidates []string) []string {
	type scored struct {
		name     string
		distance int
	}
	threshold := max(2, len(name)/3)
	var nearest []scored
	for _, candidate := range candidates {
		d := levenshtein.ComputeDistance(name, candidate)
		if d <= threshold {
			nearest = append(nearest, scored{candidate, d})
		}
	}
	slices.SortStableFunc(nearest, func(a, b scored) int { return cmp.Compare(a.distance, b.distance) })
	if len(nearest) > maxSuggestions {
		nearest = nearest[:maxSuggestions]
	}
	suggestions := make([]string, len(nearest))
	for ii, s := range nearest {
		suggestions[ii] = s.name
	}
	return suggestions
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for ii, name := range names {
		quoted[ii] = fmt.Sprintf("%q", name)
	}
	return quoted
}
