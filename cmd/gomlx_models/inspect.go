// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gomlx/modelio/pkg/ml/model"
	"github.com/gomlx/modelio/pkg/ml/saving"
)

func newInspectCmd(out io.Writer, flags *globalFlags) *cobra.Command {
	var showVars, showGlossary bool
	cmd := &cobra.Command{
		Use:   "inspect MODEL [MODEL...]",
		Short: "Summarizes one or more saved models, side by side",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := flags.handler(out)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()
			models := make([]*model.Model, len(args))
			for ii, path := range args {
				if models[ii], err = h.Load(saving.NewLoadRequest(path, flags.loadOptions()...)); err != nil {
					return err
				}
			}
			Summary(out, args, models)
			if showVars {
				for ii, m := range models {
					ListVariables(out, args[ii], m, showGlossary)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showVars, "vars", false, "List the variables of each model.")
	cmd.Flags().BoolVar(&showGlossary, "glossary", false, "Explain the variables statistics.")
	return cmd
}

// Summary prints a table with one column per model.
func Summary(out io.Writer, paths []string, models []*model.Model) {
	_, _ = fmt.Fprintln(out, titleStyle.Render("Summary"))
	table := newPlainTable(false, lipgloss.Right, lipgloss.Left)
	table.Row(append([]string{"model"}, MinimalUniquePaths(paths...)...)...)

	addRow := func(title string, fn func(path string, m *model.Model) string) {
		row := make([]string, 0, len(models)+1)
		row = append(row, title)
		for ii, m := range models {
			row = append(row, fn(paths[ii], m))
		}
		table.Row(row...)
	}
	addRow("format", func(path string, _ *model.Model) string {
		return saving.FormatFromSuffix(path).String()
	})
	addRow("name", func(_ string, m *model.Model) string { return m.Name })
	addRow("class", func(_ string, m *model.Model) string { return m.Class })
	addRow("# layers", func(_ string, m *model.Model) string { return humanize.Comma(int64(len(m.Layers))) })
	addRow("# variables", func(_ string, m *model.Model) string {
		return humanize.Comma(int64(len(m.Parameters())))
	})
	addRow("# parameters", func(_ string, m *model.Model) string { return humanize.Comma(int64(m.NumParameters())) })
	addRow("# bytes", func(_ string, m *model.Model) string { return humanize.Bytes(uint64(m.Memory())) })
	addRow("compiled", func(_ string, m *model.Model) string {
		if !m.IsCompiled() {
			return "no"
		}
		return fmt.Sprintf("optimizer=%s, loss=%s", m.Compile.Optimizer, m.Compile.Loss)
	})
	addRow("optimizer state", func(_ string, m *model.Model) string {
		if m.Optimizer == nil {
			return "-"
		}
		return fmt.Sprintf("%s, %s variables", m.Optimizer.Name, humanize.Comma(int64(len(m.Optimizer.Variables))))
	})
	_, _ = fmt.Fprintln(out, table.Render())
}

// ListVariables prints the variables of a model, with their shape and MAV (mean absolute value), RMS
// (root-mean-square) and MaxAV (max absolute value) values.
func ListVariables(out io.Writer, path string, m *model.Model, glossary bool) {
	_, _ = fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Variables of %q", path)))
	table := newPlainTable(true, lipgloss.Left, lipgloss.Left, lipgloss.Left, lipgloss.Right)
	table.Headers("Path", "Shape", "Trainable", "Size", "Bytes", "Scalar/MAV", "RMS", "MaxAV")
	for pv := range m.IterAllVariables() {
		value := pv.Variable.Value
		shape := value.Shape()
		var mav, rms, maxAV string
		if shape.Size() == 1 {
			mav = fmt.Sprintf("%8v", value.Value(0))
		} else if stats, ok := computeStats(value); ok {
			mav = fmt.Sprintf("%.3g", stats.MAV)
			rms = fmt.Sprintf("%.3g", stats.RMS)
			maxAV = fmt.Sprintf("%.3g", stats.MaxAV)
		}
		table.Row(pv.Path, shape.String(), fmt.Sprintf("%v", pv.Variable.Trainable),
			humanize.Comma(int64(shape.Size())),
			humanize.Bytes(uint64(shape.Memory())),
			mav, rms, maxAV)
	}
	_, _ = fmt.Fprintln(out, table.Render())
	if glossary {
		_, _ = fmt.Fprintf(out, "  %s:\n", sectionStyle.Render("Glossary"))
		_, _ = fmt.Fprintf(out, "   ◦ %s: %s\n", emphasisStyle.Render("Scalar/MAV"),
			italicStyle.Render("If variable is a scalar then the value itself, else the Mean Absolute Value"))
		_, _ = fmt.Fprintf(out, "   ◦ %s: %s\n", emphasisStyle.Render("RMS"), italicStyle.Render("Root Mean Square"))
		_, _ = fmt.Fprintf(out, "   ◦ %s: %s\n", emphasisStyle.Render("MaxAV"), italicStyle.Render("Max Absolute Value"))
	}
}
