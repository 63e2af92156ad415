// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gomlx/modelio/pkg/ml/saving"
	"github.com/gomlx/modelio/pkg/ml/saving/weights"
)

func newLoadWeightsCmd(out io.Writer, flags *globalFlags) *cobra.Command {
	var byName, skipMismatch, overwrite bool
	cmd := &cobra.Command{
		Use:   "load-weights MODEL WEIGHTS OUTPUT",
		Short: "Loads the weights of a file into a model, and saves the result",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath, weightsPath, outputPath := args[0], args[1], args[2]
			h, err := flags.handler(out)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()
			m, err := h.Load(saving.NewLoadRequest(modelPath, flags.loadOptions()...))
			if err != nil {
				return err
			}
			var options []saving.WeightsOption
			if byName {
				options = append(options, saving.ByName())
			}
			if skipMismatch {
				options = append(options, saving.WithSkipMismatch())
			}
			report, err := h.LoadWeights(saving.NewWeightsRequest(m, weightsPath, options...))
			if err != nil {
				return err
			}
			Report(out, weightsPath, report)
			return h.Save(saving.NewSaveRequest(m, outputPath, saving.WithOverwrite(overwrite || flags.assumeYes)))
		},
	}
	cmd.Flags().BoolVar(&byName, "by_name", false,
		"Match the weights by name instead of by position. Only for legacy weights files.")
	cmd.Flags().BoolVar(&skipMismatch, "skip_mismatch", false,
		"Skip weights that don't match the model, instead of failing.")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite the output if it exists, without asking.")
	return cmd
}

// Report prints the weights applied and, in red, the ones skipped.
func Report(out io.Writer, weightsPath string, report *weights.Report) {
	_, _ = fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Weights loaded from %q", weightsPath)))
	table := newTableWithReds(true, lipgloss.Left, lipgloss.Left, lipgloss.Left)
	table.Table.Headers("Status", "Name", "Details")
	for _, name := range report.Applied {
		table.Row(false, "applied", name, "")
	}
	for _, d := range report.Skipped {
		table.Row(true, "skipped ("+string(d.Kind)+")", d.Name, d.Message())
	}
	_, _ = fmt.Fprintln(out, table.Table.Render())
	_, _ = fmt.Fprintf(out, "%d weights applied, %d skipped\n", len(report.Applied), len(report.Skipped))
}
