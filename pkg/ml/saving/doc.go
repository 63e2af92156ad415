// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package saving saves and loads models, routing each request to the backend that owns the format.
//
// The format is decided by the path suffix:
//
//   - `.keras`: modern archive (see package archive), holding architecture, weights and optional
//     optimizer state.
//   - `.weights.h5`: weights-only archive, only accepted by SaveWeights and LoadWeights.
//   - `.h5` and `.hdf5`: legacy dense format (see package legacy). Supported but deprecated for saving.
//
// Any other suffix is rejected before the filesystem is touched. A `.keras` file is also probed: if it is not
// a valid archive it is reported as CorruptArchiveError, and never handed to another backend.
//
// Remote paths (see fsutil.IsRemotePath) are copied to a local staging directory before being loaded.
//
// The simplest usage is through the package level functions, which use the Default Handler:
//
//	err := saving.SaveModel(m, "~/models/classifier.keras")
//	...
//	m, err := saving.LoadModel("https://example.com/models/classifier.keras")
//	...
//	report, err := saving.LoadWeights(m, "classifier.h5", saving.ByName(), saving.WithSkipMismatch())
//
// To configure the collaborators (backends, prompt, remote filesystem or staging directory) build a Handler:
//
//	h := saving.Build().NoLegacy().Prompt(commandline.AssumeNo).MustDone()
//	defer h.Close()
package saving
