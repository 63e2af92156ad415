// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	s := MakeWith("dense", "embedding")
	require.True(t, s.Has("dense"))
	require.False(t, s.Has("dropout"))
	require.True(t, s.InsertNew("dropout"))
	require.False(t, s.InsertNew("dense"))
	require.Equal(t, []string{"dense", "dropout", "embedding"}, Sorted(s))

	empty := Make[int](10)
	require.Empty(t, empty)
	empty.Insert(3, 1, 3)
	require.Equal(t, []int{1, 3}, Sorted(empty))
}
