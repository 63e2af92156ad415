// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/model/encoding"
	"github.com/gomlx/modelio/pkg/ml/saving/dense"
)

// Write saves the model architecture, weights and, if includeOptimizer, its optimizer state to path.
//
// The archive is written to a temporary file in the same directory and renamed to path when complete.
// Any existing file at path is replaced: overwrite policy is the caller's responsibility.
func Write(m *model.Model, path string, includeOptimizer bool) error {
	if err := m.Validate(); err != nil {
		return errors.WithMessagef(err, "cannot save model to %q", path)
	}
	root, err := buildWeightsTree(m, includeOptimizer)
	if err != nil {
		return errors.WithMessagef(err, "cannot save model to %q", path)
	}
	if includeOptimizer && m.Optimizer != nil && m.Optimizer.Config != nil {
		root.Group(optimizerGroup).SetAttr(optConfigAttr, m.Optimizer.Config)
	}
	var weightsBlob bytes.Buffer
	dgst, err := dense.Encode(&weightsBlob, root, dense.Options{})
	if err != nil {
		return errors.WithMessagef(err, "cannot save model to %q", path)
	}

	metadata := encoding.Metadata{
		Version:        encoding.Version1,
		LibraryVersion: encoding.LibraryVersion,
		DateSaved:      time.Now().UTC(),
		WriterID:       uuid.NewString(),
		WeightsDigest:  dgst.String(),
	}
	for pv := range m.IterAllVariables() {
		if !includeOptimizer && strings.HasPrefix(pv.Path, model.OptimizerScope+"/") {
			continue
		}
		shape := pv.Variable.Shape()
		metadata.Variables = append(metadata.Variables, encoding.EncodedVariable{
			Name:       pv.Path,
			DType:      shape.DType.String(),
			Dimensions: shape.Dimensions,
			Trainable:  pv.Variable.Trainable,
		})
	}
	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize metadata of model %q", m.Name)
	}
	configJSON, err := json.MarshalIndent(m.Config(), "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize configuration of model %q", m.Name)
	}

	entries := []zipEntry{
		{name: MetadataEntry, contents: metadataJSON, method: zip.Deflate},
		{name: ConfigEntry, contents: configJSON, method: zip.Deflate},
		// Weights are already compressed.
		{name: WeightsEntry, contents: weightsBlob.Bytes(), method: zip.Store},
	}
	if err = writeZipAtomically(path, entries); err != nil {
		return err
	}
	klog.V(1).Infof("model %q saved to %q (%d variables, weights %s)", m.Name, path, len(metadata.Variables), dgst)
	return nil
}

// WriteWeightsOnly saves only the layer variables of the model to path, in the standalone weights-only
// format: a dense file.
func WriteWeightsOnly(m *model.Model, path string) error {
	if err := m.Validate(); err != nil {
		return errors.WithMessagef(err, "cannot save weights to %q", path)
	}
	root, err := buildWeightsTree(m, false)
	if err != nil {
		return errors.WithMessagef(err, "cannot save weights to %q", path)
	}
	_, err = dense.WriteFile(path, root, dense.Options{})
	return err
}

type zipEntry struct {
	name     string
	contents []byte
	method   uint16
}

func writeZipAtomically(path string, entries []zipEntry) error {
	tmpPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", tmpPath)
	}
	err = writeZip(f, entries)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "failed to close %q", tmpPath)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return errors.WithMessagef(err, "writing archive %q", path)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to rename %q to %q", tmpPath, path)
	}
	return nil
}

func writeZip(f *os.File, entries []zipEntry) error {
	zw := zip.NewWriter(f)
	for _, entry := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry.name,
			Method:   entry.method,
			Modified: time.Now(),
		})
		if err != nil {
			return errors.Wrapf(err, "failed to create entry %q", entry.name)
		}
		if _, err = w.Write(entry.contents); err != nil {
			return errors.Wrapf(err, "failed to write entry %q", entry.name)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to finish zip container")
	}
	return nil
}
