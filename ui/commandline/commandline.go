// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI tools for the command line: interactive confirmation
// prompts used when saving over existing files.
package commandline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// Prompt asks the user, on the terminal, whether to overwrite existing files.
//
// It is safe for concurrent use: questions are asked one at a time.
type Prompt struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer

	// DefaultYes makes an empty answer (just pressing Enter) mean "yes". By default, the question is
	// repeated until "y" or "n" is answered.
	DefaultYes bool
}

// NewPrompt returns a Prompt reading answers from in and writing questions to out.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// Terminal returns a Prompt that uses the standard input and output.
func Terminal() *Prompt {
	return NewPrompt(os.Stdin, os.Stdout)
}

// ConfirmOverwrite asks whether to overwrite the file at path. It returns false if the input is closed
// before a valid answer is given.
func (p *Prompt) ConfirmOverwrite(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		_, _ = fmt.Fprintf(p.out, "[WARNING] %s already exists - overwrite? [y/n]", path)
		if p.DefaultYes {
			_, _ = fmt.Fprint(p.out, " (Enter to proceed)")
		}
		_, _ = fmt.Fprint(p.out, " ")
		line, err := p.in.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		switch {
		case answer == "y" || answer == "yes":
			_, _ = fmt.Fprintln(p.out, "[TIP] Next time specify overwrite=true!")
			return true
		case answer == "n" || answer == "no":
			return false
		case answer == "" && p.DefaultYes && err == nil:
			return true
		}
		if err != nil {
			if err != io.EOF {
				klog.Warningf("failed to read answer: %v", err)
			}
			_, _ = fmt.Fprintln(p.out)
			return false
		}
	}
}

// Fixed is a non-interactive prompt that always gives the same answer.
type Fixed bool

const (
	// AssumeYes always confirms.
	AssumeYes Fixed = true

	// AssumeNo never confirms.
	AssumeNo Fixed = false
)

// ConfirmOverwrite returns the fixed answer.
func (f Fixed) ConfirmOverwrite(path string) bool {
	klog.V(1).Infof("overwrite %q: answering %v without asking", path, bool(f))
	return bool(f)
}
