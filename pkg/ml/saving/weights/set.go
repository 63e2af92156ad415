// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package weights implements the named parameter set read from a saved artifact, and its
// reconciliation with the variables of a live model: loading weights into an already constructed model.
//
// Two matching disciplines are supported, see MatchMode: ByPosition pairs the model's layers with weights
// with the stored layers, in order; ByName pairs parameters by their hierarchical names
// ("<layer>/<variable>").
//
// Reconcile is atomic: every pairing is planned and every stored tensor is loaded before any model
// variable is overwritten. If it fails, the model is left untouched.
package weights

import (
	"cmp"
	"iter"
	"slices"

	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gomlx/modelio/pkg/core/shapes"
	"github.com/gomlx/modelio/pkg/core/tensors"
	"github.com/gomlx/modelio/pkg/ml/model"
)

// Descriptor of a stored parameter: its names, shape and how to load its value.
type Descriptor struct {
	// Name is the hierarchical name of the parameter, e.g. "dense_1/kernel".
	Name string

	// Layer is the name of the stored layer the parameter belongs to, and Index is its position within it.
	Layer string
	Index int

	Shape shapes.Shape

	// Load reads the value. It is only called for parameters that are going to be applied.
	Load func() (*tensors.Tensor, error)
}

// StoredLayer groups the descriptors of one stored layer, in file order.
type StoredLayer struct {
	Name   string
	Params []*Descriptor
}

// Set is a NamedParameterSet: stored parameters indexed by their hierarchical names, preserving the
// order they were stored in. The order matters when matching by position.
type Set struct {
	params *orderedmap.OrderedMap[string, *Descriptor]
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{params: orderedmap.New[string, *Descriptor]()}
}

// Add a descriptor to the set. It returns an error if the name is already used.
func (s *Set) Add(desc *Descriptor) error {
	if desc.Name == "" {
		return errors.Errorf("stored parameter #%d of layer %q has no name", desc.Index, desc.Layer)
	}
	if _, found := s.params.Get(desc.Name); found {
		return errors.Errorf("duplicate stored parameter %q", desc.Name)
	}
	s.params.Set(desc.Name, desc)
	return nil
}

// AddTensor is a shortcut to Add a parameter whose value is already in memory.
func (s *Set) AddTensor(layer string, index int, name string, value *tensors.Tensor) error {
	return s.Add(&Descriptor{
		Name:  name,
		Layer: layer,
		Index: index,
		Shape: value.Shape(),
		Load:  func() (*tensors.Tensor, error) { return value, nil },
	})
}

// Get returns the descriptor with the given hierarchical name.
func (s *Set) Get(name string) (*Descriptor, bool) {
	return s.params.Get(name)
}

// Len returns the number of stored parameters.
func (s *Set) Len() int { return s.params.Len() }

// All iterates over the descriptors in file order.
func (s *Set) All() iter.Seq[*Descriptor] {
	return func(yield func(*Descriptor) bool) {
		for pair := s.params.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Value) {
				return
			}
		}
	}
}

// Names of the stored parameters, in file order.
func (s *Set) Names() []string {
	names := make([]string, 0, s.params.Len())
	for desc := range s.All() {
		names = append(names, desc.Name)
	}
	return names
}

// Layers groups the descriptors by stored layer. Layers are ordered by their first appearance in the
// file, and the parameters of each layer by their Index.
func (s *Set) Layers() []StoredLayer {
	var layers []StoredLayer
	layerIdx := make(map[string]int)
	for desc := range s.All() {
		idx, found := layerIdx[desc.Layer]
		if !found {
			idx = len(layers)
			layerIdx[desc.Layer] = idx
			layers = append(layers, StoredLayer{Name: desc.Layer})
		}
		layers[idx].Params = append(layers[idx].Params, desc)
	}
	for _, layer := range layers {
		slices.SortStableFunc(layer.Params, func(a, b *Descriptor) int { return cmp.Compare(a.Index, b.Index) })
	}
	return layers
}

// FromModel returns a Set with the current values of the layer variables of m.
// It is used by writers and to copy weights between models.
func FromModel(m *model.Model) (*Set, error) {
	set := NewSet()
	for _, layer := range m.Layers {
		for ii, v := range layer.Variables {
			if err := set.AddTensor(layer.Name, ii, layer.ParameterName(v), v.Value); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}
