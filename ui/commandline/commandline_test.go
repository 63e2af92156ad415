// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompt(strings.NewReader("maybe\nY\n"), &out)
	require.True(t, p.ConfirmOverwrite("/tmp/model.keras"))
	assert.Equal(t, 2, strings.Count(out.String(), "[WARNING] /tmp/model.keras already exists - overwrite? [y/n]"))
	assert.Contains(t, out.String(), "[TIP]")

	p = NewPrompt(strings.NewReader("\nno\n"), &out)
	require.False(t, p.ConfirmOverwrite("/tmp/model.keras"))

	// Input closed without an answer.
	p = NewPrompt(strings.NewReader("what?"), &out)
	require.False(t, p.ConfirmOverwrite("/tmp/model.keras"))

	// Enter to proceed.
	out.Reset()
	p = NewPrompt(strings.NewReader("\n"), &out)
	p.DefaultYes = true
	require.True(t, p.ConfirmOverwrite("/tmp/model.keras"))
	assert.Contains(t, out.String(), "Enter to proceed")
}

func TestFixed(t *testing.T) {
	require.True(t, AssumeYes.ConfirmOverwrite("x"))
	require.False(t, AssumeNo.ConfirmOverwrite("x"))
}
