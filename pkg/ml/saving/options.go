// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package saving

import (
	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
)

// SaveOption configures SaveModel and SaveWeights.
type SaveOption func(req *SaveRequest)

// NewSaveRequest returns the request for saving m to path with the default options (overwrite and
// include the optimizer state) modified by options.
func NewSaveRequest(m *model.Model, path string, options ...SaveOption) SaveRequest {
	req := SaveRequest{Model: m, Path: path, Overwrite: true, IncludeOptimizerState: true}
	for _, option := range options {
		option(&req)
	}
	return req
}

// WithOverwrite sets whether to overwrite an existing file without asking. Default is true.
func WithOverwrite(overwrite bool) SaveOption {
	return func(req *SaveRequest) {
		req.Overwrite = overwrite
	}
}

// WithoutOptimizerState doesn't save the optimizer variables.
func WithoutOptimizerState() SaveOption {
	return func(req *SaveRequest) {
		req.IncludeOptimizerState = false
	}
}

// WithSaveFormat sets the deprecated format selector, see SaveRequest.SaveFormat.
//
// Deprecated: the format is given by the path suffix.
func WithSaveFormat(format string) SaveOption {
	return func(req *SaveRequest) {
		req.SaveFormat = format
	}
}

// LoadOption configures LoadModel.
type LoadOption func(req *LoadRequest)

// NewLoadRequest returns the request for loading path with the default options (compile and safe mode)
// modified by options.
func NewLoadRequest(path string, options ...LoadOption) LoadRequest {
	req := LoadRequest{Path: path, Compile: true, SafeMode: true}
	for _, option := range options {
		option(&req)
	}
	return req
}

// WithCustomObjects adds constructors for custom classes.
func WithCustomObjects(registry model.Registry) LoadOption {
	return func(req *LoadRequest) {
		if req.CustomObjects == nil {
			req.CustomObjects = make(model.Registry, len(registry))
		}
		for name, constructor := range registry {
			req.CustomObjects[name] = constructor
		}
	}
}

// WithoutCompile doesn't restore the training configuration nor the optimizer state.
func WithoutCompile() LoadOption {
	return func(req *LoadRequest) {
		req.Compile = false
	}
}

// WithSafeMode sets whether to forbid deserializing code embedded in the configuration. Default is true:
// only disable it for trusted files.
func WithSafeMode(safeMode bool) LoadOption {
	return func(req *LoadRequest) {
		req.SafeMode = safeMode
	}
}

// WeightsOption configures LoadWeights.
type WeightsOption func(req *WeightsRequest)

// NewWeightsRequest returns the request for loading the weights at path into m, by position and strict,
// modified by options.
func NewWeightsRequest(m *model.Model, path string, options ...WeightsOption) WeightsRequest {
	req := WeightsRequest{Model: m, Path: path, MatchMode: weights.ByPosition}
	for _, option := range options {
		option(&req)
	}
	return req
}

// WithSkipMismatch skips mismatched weights instead of failing.
func WithSkipMismatch() WeightsOption {
	return func(req *WeightsRequest) {
		req.SkipMismatch = true
	}
}

// ByName pairs the stored weights with the model's by name. Only accepted for legacy files.
func ByName() WeightsOption {
	return func(req *WeightsRequest) {
		req.MatchMode = weights.ByName
	}
}

// SaveModel saves m to path using the Default Handler. See Handler.Save.
func SaveModel(m *model.Model, path string, options ...SaveOption) error {
	return Default().Save(NewSaveRequest(m, path, options...))
}

// SaveWeights saves the weights of m to path using the Default Handler. Only WithOverwrite applies.
// See Handler.SaveWeights.
func SaveWeights(m *model.Model, path string, options ...SaveOption) error {
	req := NewSaveRequest(m, path, options...)
	return Default().SaveWeights(m, path, req.Overwrite)
}

// LoadModel loads the model at path using the Default Handler. See Handler.Load.
func LoadModel(path string, options ...LoadOption) (*model.Model, error) {
	return Default().Load(NewLoadRequest(path, options...))
}

// LoadWeights loads the weights at path into m using the Default Handler. See Handler.LoadWeights.
func LoadWeights(m *model.Model, path string, options ...WeightsOption) (*weights.Report, error) {
	return Default().LoadWeights(NewWeightsRequest(m, path, options...))
}
