// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"path/filepath"
	"slices"
	"strings"
)

// MinimalUniquePaths returns for each path the shortest label that distinguishes it from the others: the
// path component where they differ, "first...last" differing components if they differ in more than one,
// or the base name if they don't differ.
//
// Remote URLs are treated as paths, so "https://a/m.keras" and "https://b/m.keras" become "a" and "b".
func MinimalUniquePaths(paths ...string) []string {
	if len(paths) <= 1 {
		return paths
	}
	split := make([][]string, len(paths))
	for ii, p := range paths {
		split[ii] = strings.Split(filepath.Clean(p), string(filepath.Separator))
	}
	labels := make([]string, len(paths))
	for ii, parts := range split {
		var differ []int
		for jj, others := range split {
			if ii == jj {
				continue
			}
			for k := range min(len(parts), len(others)) {
				if parts[k] != others[k] && !slices.Contains(differ, k) {
					differ = append(differ, k)
				}
			}
		}
		slices.Sort(differ)
		switch len(differ) {
		case 0:
			labels[ii] = parts[len(parts)-1]
		case 1:
			labels[ii] = parts[differ[0]]
		default:
			labels[ii] = parts[differ[0]] + "..." + parts[differ[len(differ)-1]]
		}
	}
	return labels
}
