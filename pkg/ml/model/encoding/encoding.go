// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package encoding defines the types used during the encoding and decoding of saved models: the
// architecture configuration (`config.json` in an archive, `model_config` in a legacy file),
// the training configuration and the archive metadata.
//
// This is only used by the saving backends and by tools handling the saved models themselves.
package encoding

import (
	"time"
)

const (
	// Version1 of the archive encoding format. The only one for now.
	Version1 = "modelio.v1"

	// LibraryVersion is written to every artifact, informative only.
	LibraryVersion = "0.1.0"
)

// ModelConfig is the serializable architecture of a model.
type ModelConfig struct {
	ClassName     string         `json:"class_name"`
	Name          string         `json:"name"`
	Layers        []LayerConfig  `json:"layers"`
	CompileConfig *CompileConfig `json:"compile_config,omitempty"`
}

// LayerConfig is the serializable architecture of one layer. ClassName is the key used to find the
// layer constructor during deserialization.
type LayerConfig struct {
	ClassName string         `json:"class_name"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config"`
}

// CompileConfig holds the training configuration of a compiled model.
type CompileConfig struct {
	Optimizer    string         `json:"optimizer"`
	Loss         string         `json:"loss,omitempty"`
	Metrics      []string       `json:"metrics,omitempty"`
	OptimizerCfg map[string]any `json:"optimizer_config,omitempty"`
}

// Metadata is stored in the archive's `metadata.json`.
type Metadata struct {
	Version        string    `json:"format_version"`
	LibraryVersion string    `json:"library_version"`
	DateSaved      time.Time `json:"date_saved"`
	WriterID       string    `json:"writer_id"`

	// WeightsDigest of the weights store entry, verified when reading.
	WeightsDigest string `json:"weights_digest"`

	// Variables lists every parameter in the weights store, in the order they were written.
	Variables []EncodedVariable `json:"variables"`
}

// EncodedVariable describes one parameter saved in an artifact.
type EncodedVariable struct {
	// Name is the hierarchical parameter name, e.g. "dense_1/kernel".
	Name       string `json:"name"`
	DType      string `json:"dtype"`
	Dimensions []int  `json:"shape"`
	Trainable  bool   `json:"trainable"`
}
