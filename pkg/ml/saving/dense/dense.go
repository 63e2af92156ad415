// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dense implements a hierarchical dense-matrix file: a tree of named groups, each with
// attributes, sub-groups and datasets (dense tensors).
//
// It is the storage used for the weights of both the archive (`.keras`, `.weights.h5`) and the
// legacy (`.h5`, `.hdf5`) formats.
//
// The file layout is:
//
//	| signature (8 bytes) | flags (1 byte) | digest length (uint16, big endian) | digest | payload |
//
// The payload is the msgpack encoding of the root Group, gzip compressed if flagged. The digest
// (see github.com/opencontainers/go-digest) is computed over the payload as stored, and it is
// verified when reading.
package dense

import (
	"bytes"
	"slices"

	"github.com/pkg/errors"

	"github.com/gomlx/modelio/pkg/core/shapes"
	"github.com/gomlx/modelio/pkg/core/tensors"
)

// Group is a node of the tree. Sub-groups and datasets are kept in insertion order.
type Group struct {
	Name     string         `msgpack:"name"`
	Attrs    map[string]any `msgpack:"attrs,omitempty"`
	Groups   []*Group       `msgpack:"groups,omitempty"`
	Datasets []*Dataset     `msgpack:"datasets,omitempty"`
}

// Dataset is a dense tensor stored in a Group.
type Dataset struct {
	Name       string `msgpack:"name"`
	DType      string `msgpack:"dtype"`
	Dimensions []int  `msgpack:"dims"`
	Data       []byte `msgpack:"data"`
}

// NewGroup returns an empty group with the given name.
func NewGroup(name string) *Group {
	return &Group{Name: name, Attrs: make(map[string]any)}
}

// Group returns the sub-group with the given name, or nil if not found.
func (g *Group) Group(name string) *Group {
	for _, child := range g.Groups {
		if child.Name == name {
			return child
		}
	}
	return nil
}

// RequireGroup returns the sub-group with the given name, creating it if it doesn't exist yet.
func (g *Group) RequireGroup(name string) *Group {
	if child := g.Group(name); child != nil {
		return child
	}
	child := NewGroup(name)
	g.Groups = append(g.Groups, child)
	return child
}

// GroupPath follows a "/" separated path of sub-groups. It returns nil if any of them is missing.
func (g *Group) GroupPath(path ...string) *Group {
	current := g
	for _, name := range path {
		if current = current.Group(name); current == nil {
			return nil
		}
	}
	return current
}

// Dataset returns the dataset with the given name, or nil if not found.
func (g *Group) Dataset(name string) *Dataset {
	for _, ds := range g.Datasets {
		if ds.Name == name {
			return ds
		}
	}
	return nil
}

// CreateDataset stores a copy of the tensor value under the given name.
// It returns an error if the name is already used.
func (g *Group) CreateDataset(name string, value *tensors.Tensor) (*Dataset, error) {
	if g.Dataset(name) != nil {
		return nil, errors.Errorf("dataset %q already exists in group %q", name, g.Name)
	}
	ds := &Dataset{
		Name:       name,
		DType:      value.DType().String(),
		Dimensions: slices.Clone(value.Shape().Dimensions),
	}
	value.ConstBytes(func(data []byte) {
		ds.Data = bytes.Clone(data)
	})
	g.Datasets = append(g.Datasets, ds)
	return ds, nil
}

// Shape of the dataset. It returns an error if the dtype or dimensions stored are invalid.
func (ds *Dataset) Shape() (shapes.Shape, error) {
	dtype := shapes.DTypeFromName(ds.DType)
	shape, err := shapes.FromDimensions(dtype, ds.Dimensions)
	if err != nil {
		return shape, errors.WithMessagef(err, "dataset %q (dtype %q)", ds.Name, ds.DType)
	}
	return shape, nil
}

// Tensor returns a new tensor with a copy of the dataset contents.
func (ds *Dataset) Tensor() (*tensors.Tensor, error) {
	shape, err := ds.Shape()
	if err != nil {
		return nil, err
	}
	t, err := tensors.FromRaw(shape, bytes.Clone(ds.Data))
	if err != nil {
		return nil, errors.WithMessagef(err, "dataset %q", ds.Name)
	}
	return t, nil
}

// SetAttr sets an attribute. Values should be strings, []string, int64, float64 or bool.
func (g *Group) SetAttr(name string, value any) {
	if g.Attrs == nil {
		g.Attrs = make(map[string]any)
	}
	g.Attrs[name] = value
}

// HasAttr returns whether the group has the attribute.
func (g *Group) HasAttr(name string) bool {
	_, found := g.Attrs[name]
	return found
}

// StringAttr returns a string attribute. It returns false if it is missing or not a string.
func (g *Group) StringAttr(name string) (string, bool) {
	value, found := g.Attrs[name]
	if !found {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// StringsAttr returns a list of strings attribute.
func (g *Group) StringsAttr(name string) ([]string, error) {
	value, found := g.Attrs[name]
	if !found {
		return nil, errors.Errorf("group %q has no attribute %q", g.Name, name)
	}
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		values := make([]string, len(v))
		for ii, item := range v {
			switch s := item.(type) {
			case string:
				values[ii] = s
			case []byte:
				values[ii] = string(s)
			default:
				return nil, errors.Errorf("group %q attribute %q element #%d is %T, not a string", g.Name, name, ii, item)
			}
		}
		return values, nil
	default:
		return nil, errors.Errorf("group %q attribute %q is %T, not a list of strings", g.Name, name, value)
	}
}

// IntAttr returns an integer attribute. It returns false if it is missing or not an integer.
func (g *Group) IntAttr(name string) (int64, bool) {
	value, found := g.Attrs[name]
	if !found {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}
