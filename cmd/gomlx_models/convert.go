// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gomlx/modelio/pkg/ml/saving"
)

func newConvertCmd(out io.Writer, flags *globalFlags) *cobra.Command {
	var noOptimizer, overwrite bool
	cmd := &cobra.Command{
		Use:   "convert SOURCE DESTINATION",
		Short: "Loads a model and saves it again, in the format given by the destination suffix",
		Long: "Loads a model and saves it again, in the format given by the destination suffix: " +
			"`.keras` for the archive format, `.h5` or `.hdf5` for the legacy format.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			h, err := flags.handler(out)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()
			m, err := h.Load(saving.NewLoadRequest(src, flags.loadOptions()...))
			if err != nil {
				return err
			}
			options := []saving.SaveOption{saving.WithOverwrite(overwrite || flags.assumeYes)}
			if noOptimizer {
				options = append(options, saving.WithoutOptimizerState())
			}
			if err = h.Save(saving.NewSaveRequest(m, dst, options...)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Model %q converted: %s (%s) -> %s (%s)\n", m.Name,
				src, saving.FormatFromSuffix(src), dst, saving.FormatFromSuffix(dst))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOptimizer, "no_optimizer", false, "Don't save the optimizer state.")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite the destination if it exists, without asking.")
	return cmd
}
