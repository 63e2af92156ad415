// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package weights

import (
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/core/tensors"
	"github.com/gomlx/modelio/pkg/ml/model"
)

// MatchMode is the discipline used to pair stored parameters with model variables.
type MatchMode int

const (
	// ByPosition pairs the model's layers with weights with the stored layers, in order, and within each
	// layer the weights in order. Names are ignored.
	ByPosition MatchMode = iota

	// ByName pairs parameters by their hierarchical names.
	ByName
)

func (mode MatchMode) String() string {
	switch mode {
	case ByPosition:
		return "ByPosition"
	case ByName:
		return "ByName"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(mode))
	}
}

// Options for Reconcile.
type Options struct {
	Mode MatchMode

	// SkipMismatch makes mismatches non-fatal: the mismatched entries are skipped (the model variables keep
	// their current values) and reported as discrepancies.
	SkipMismatch bool
}

// DiscrepancyKind classifies a skipped entry.
type DiscrepancyKind string

const (
	LayerCountDiscrepancy  DiscrepancyKind = "layer_count"
	WeightCountDiscrepancy DiscrepancyKind = "weight_count"
	ShapeDiscrepancy       DiscrepancyKind = "shape"
	NameDiscrepancy        DiscrepancyKind = "name"
)

// Discrepancy is a mismatch tolerated because of Options.SkipMismatch.
type Discrepancy struct {
	Kind DiscrepancyKind

	// Name of the parameter or layer involved, and its Index when matching by position.
	Name  string
	Index int

	// Err is the error that would have been returned without SkipMismatch.
	Err error
}

// Message describing the discrepancy.
func (d Discrepancy) Message() string { return d.Err.Error() }

// Report of a reconciliation.
type Report struct {
	// Applied lists the model parameters (hierarchical names) overwritten, in the order they were paired.
	Applied []string

	// Skipped lists the tolerated discrepancies, in the order they were found.
	Skipped []Discrepancy
}

// OK returns whether there were no discrepancies.
func (r *Report) OK() bool { return len(r.Skipped) == 0 }

// assignment of a stored parameter to a model variable.
type assignment struct {
	name     string
	variable *model.Variable
	stored   *Descriptor
	value    *tensors.Tensor
}

// reconciler holds the state of one Reconcile call.
type reconciler struct {
	m       *model.Model
	stored  *Set
	options Options
	plan    []assignment
	report  *Report
}

// Reconcile loads the stored parameters into the model variables, in place, pairing them according to
// options.Mode.
//
// Without SkipMismatch the first mismatch is returned as a *CountMismatchError, *ShapeMismatchError or
// *NameNotFoundError. With SkipMismatch mismatched entries are skipped and reported, each one is also
// logged as a warning.
//
// Reconcile is atomic: on error no model variable has been modified.
func Reconcile(m *model.Model, stored *Set, options Options) (*Report, error) {
	if m == nil {
		return nil, errors.New("weights.Reconcile: nil model")
	}
	if stored == nil {
		return nil, errors.New("weights.Reconcile: nil stored weights")
	}
	r := &reconciler{m: m, stored: stored, options: options, report: &Report{}}
	var err error
	switch options.Mode {
	case ByPosition:
		err = r.planByPosition()
	case ByName:
		err = r.planByName()
	default:
		err = errors.Errorf("weights.Reconcile: invalid match mode %s", options.Mode)
	}
	if err != nil {
		return nil, err
	}
	if err = r.load(); err != nil {
		return nil, err
	}
	r.apply()
	return r.report, nil
}

// mismatch either returns err, or records it as a discrepancy if skipping mismatches.
func (r *reconciler) mismatch(kind DiscrepancyKind, name string, index int, err error) error {
	if !r.options.SkipMismatch {
		return err
	}
	klog.Warningf("loading weights into model %q: skipping mismatch: %v", r.m.Name, err)
	r.report.Skipped = append(r.report.Skipped, Discrepancy{Kind: kind, Name: name, Index: index, Err: err})
	return nil
}

func (r *reconciler) planByPosition() error {
	modelLayers := r.m.LayersWithWeights()
	storedLayers := r.stored.Layers()
	numLayers := len(modelLayers)
	if len(storedLayers) != len(modelLayers) {
		err := r.mismatch(LayerCountDiscrepancy, r.m.Name, -1, &CountMismatchError{
			Kind:     CountLayers,
			Expected: len(modelLayers),
			Actual:   len(storedLayers),
		})
		if err != nil {
			return err
		}
		numLayers = min(len(modelLayers), len(storedLayers))
	}
	for layerIdx := range numLayers {
		layer, storedLayer := modelLayers[layerIdx], storedLayers[layerIdx]
		if len(layer.Variables) != len(storedLayer.Params) {
			err := r.mismatch(WeightCountDiscrepancy, layer.Name, layerIdx, &CountMismatchError{
				Kind:       CountWeights,
				Layer:      layer.Name,
				StoredName: storedLayer.Name,
				Index:      layerIdx,
				Expected:   len(layer.Variables),
				Actual:     len(storedLayer.Params),
			})
			if err != nil {
				return err
			}
			continue
		}
		for ii, v := range layer.Variables {
			if err := r.pair(layer.ParameterName(v), ii, v, storedLayer.Params[ii]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *reconciler) planByName() error {
	var modelNames []string
	variables := make(map[string]*model.Variable)
	indices := make(map[string]int)
	for _, layer := range r.m.Layers {
		for ii, v := range layer.Variables {
			name := layer.ParameterName(v)
			modelNames = append(modelNames, name)
			variables[name] = v
			indices[name] = ii
		}
	}

	// Stored names, in file order.
	for desc := range r.stored.All() {
		v, found := variables[desc.Name]
		if !found {
			err := r.mismatch(NameDiscrepancy, desc.Name, desc.Index, &NameNotFoundError{
				Name:        desc.Name,
				MissingFrom: MissingFromModel,
				Suggestions: suggest(desc.Name, modelNames),
			})
			if err != nil {
				return err
			}
			continue
		}
		if err := r.pair(desc.Name, indices[desc.Name], v, desc); err != nil {
			return err
		}
	}

	// Model names not stored, in model order.
	storedNames := r.stored.Names()
	for _, name := range modelNames {
		if _, found := r.stored.Get(name); found {
			continue
		}
		err := r.mismatch(NameDiscrepancy, name, indices[name], &NameNotFoundError{
			Name:        name,
			MissingFrom: MissingFromFile,
			Suggestions: suggest(name, storedNames),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// pair checks the shapes and adds the assignment to the plan.
func (r *reconciler) pair(name string, index int, v *model.Variable, desc *Descriptor) error {
	if !v.Shape().Equal(desc.Shape) {
		return r.mismatch(ShapeDiscrepancy, name, index, &ShapeMismatchError{
			Name:       name,
			StoredName: desc.Name,
			Index:      index,
			Expected:   v.Shape(),
			Actual:     desc.Shape,
		})
	}
	r.plan = append(r.plan, assignment{name: name, variable: v, stored: desc})
	return nil
}

// load reads every planned stored value. Nothing is modified yet.
func (r *reconciler) load() error {
	for ii := range r.plan {
		a := &r.plan[ii]
		if a.stored.Load == nil {
			return errors.Errorf("stored parameter %q has no loader", a.stored.Name)
		}
		value, err := a.stored.Load()
		if err != nil {
			return errors.WithMessagef(err, "failed to read stored parameter %q", a.stored.Name)
		}
		if !value.Shape().Equal(a.stored.Shape) {
			return errors.Errorf("stored parameter %q declares shape %s, but its value has shape %s",
				a.stored.Name, a.stored.Shape, value.Shape())
		}
		a.value = value
	}
	return nil
}

// apply overwrites the model variables. Shapes were checked, so it can't fail.
func (r *reconciler) apply() {
	for _, a := range r.plan {
		if err := a.variable.Value.CopyFrom(a.value); err != nil {
			// Unreachable: shapes were checked when planning and loading.
			panic(errors.WithMessagef(err, "loading %q", a.name))
		}
		r.report.Applied = append(r.report.Applied, a.name)
	}
	if klog.V(1).Enabled() {
		klog.Infof("loaded %d parameters into model %q (%s), %d discrepancies skipped",
			len(r.report.Applied), r.m.Name, r.options.Mode, len(r.report.Skipped))
	}
}
