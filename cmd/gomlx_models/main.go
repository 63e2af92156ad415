// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// gomlx_models inspects, converts and patches saved models.
//
// Examples:
//
//	gomlx_models inspect --vars ~/models/classifier.keras
//	gomlx_models inspect https://example.com/models/v1.keras ~/models/v2.keras
//	gomlx_models convert old_model.h5 new_model.keras
//	gomlx_models load-weights --by_name --skip_mismatch model.keras pretrained.h5 patched.keras
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/gomlx/modelio/pkg/ml/saving"
	"github.com/gomlx/modelio/pkg/support/fsutil"
	"github.com/gomlx/modelio/ui/commandline"
)

func main() {
	if err := newCLI(os.Stdout).Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by all commands.
type globalFlags struct {
	assumeYes     bool
	noLegacy      bool
	noProgressBar bool
	unsafe        bool
	stagingDir    string
}

func newCLI(out io.Writer) *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "gomlx_models",
		Short:         "Inspects, converts and patches saved models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.PersistentFlags().BoolVarP(&flags.assumeYes, "yes", "y", false,
		"Overwrite existing files without asking.")
	rootCmd.PersistentFlags().BoolVar(&flags.noLegacy, "no_legacy", false,
		"Disable support for the legacy `.h5` and `.hdf5` formats.")
	rootCmd.PersistentFlags().BoolVar(&flags.noProgressBar, "no_progress", false,
		"Don't display a progress bar when copying remote files.")
	rootCmd.PersistentFlags().BoolVar(&flags.unsafe, "unsafe", false,
		"Allow loading code embedded in the model configuration (Lambda layers). Only use it with trusted files.")
	rootCmd.PersistentFlags().StringVar(&flags.stagingDir, "staging_dir", "",
		"Directory where remote files are copied to. Defaults to a temporary directory.")

	for _, cmd := range []*cobra.Command{
		newInspectCmd(out, flags),
		newConvertCmd(out, flags),
		newLoadWeightsCmd(out, flags),
	} {
		rootCmd.AddCommand(cmd)
	}
	return rootCmd
}

// handler creates the saving.Handler configured by the flags. Close it to remove the staged files.
func (f *globalFlags) handler(out io.Writer) (*saving.Handler, error) {
	var prompt saving.Prompt = commandline.AssumeYes
	if !f.assumeYes {
		prompt = commandline.NewPrompt(os.Stdin, out)
	}
	remote := fsutil.NewRemote()
	remote.ShowProgressBar = !f.noProgressBar
	staging := fsutil.NewStagingDir("gomlx_models")
	if f.stagingDir != "" {
		dir, err := fsutil.ReplaceTildeInDir(f.stagingDir)
		if err != nil {
			return nil, err
		}
		staging.Parent = dir
	}
	config := saving.Build().Prompt(prompt).RemoteFS(remote).Staging(staging)
	if f.noLegacy {
		config.NoLegacy()
	}
	return config.Done()
}

// loadOptions for the models given in the command line.
func (f *globalFlags) loadOptions() []saving.LoadOption {
	if f.unsafe {
		return []saving.LoadOption{saving.WithSafeMode(false)}
	}
	return nil
}
