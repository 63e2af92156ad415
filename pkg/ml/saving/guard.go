// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/support/fsutil"
)

// Guard decides whether a file can be written.
type Guard struct {
	prompt Prompt
}

// Proceed returns true if overwrite is set or path doesn't exist. Failures checking the existence of the
// file (e.g. a non-filesystem path) count as "doesn't exist".
//
// Otherwise, it asks the prompt, and false means the caller must not write anything. Without a prompt it
// returns false.
func (g Guard) Proceed(path string, overwrite bool) bool {
	if overwrite || !fsutil.Exists(path) {
		return true
	}
	if g.prompt == nil {
		klog.Warningf("%q already exists and no prompt is configured: not overwriting", path)
		return false
	}
	return g.prompt.ConfirmOverwrite(path)
}
