// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implements a generic Set, used to track names (layers, variables, files) already seen.
package sets

import (
	"cmp"
	"maps"
	"slices"
)

// Set of comparable keys.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set, optionally with the given initial capacity.
func Make[T comparable](size ...int) Set[T] {
	if len(size) > 0 {
		return make(Set[T], size[0])
	}
	return make(Set[T])
}

// MakeWith returns a Set with the given elements.
func MakeWith[T comparable](elements ...T) Set[T] {
	s := Make[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns whether key is in the Set.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into the Set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// InsertNew inserts key and returns true, or returns false if it was already in the Set.
func (s Set[T]) InsertNew(key T) bool {
	if s.Has(key) {
		return false
	}
	s[key] = struct{}{}
	return true
}

// Sorted returns the keys of the Set in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return slices.Sorted(maps.Keys(s))
}
