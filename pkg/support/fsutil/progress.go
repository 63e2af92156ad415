// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// copyBytesBar copies bytes from an io.Reader to an io.Writer while displaying a progressbar.
// It requires knowing the contentLength.
type copyBytesBar struct {
	w                             io.Writer
	bar                           *progressbar.ProgressBar
	contentLength, amountWritten  int64
	barUnit, numUnits, addedUnits int64
}

// newCopyBytesBar creates a new copyBytesBar. It requires knowing the contentLength.
func newCopyBytesBar(w io.Writer, contentLength int64, description string) *copyBytesBar {
	bar := &copyBytesBar{w: w, contentLength: contentLength}
	bar.barUnit = 1
	for contentLength > bar.barUnit*1024*1024 {
		bar.barUnit *= 1024
	}
	bar.numUnits = (contentLength + bar.barUnit - 1) / bar.barUnit
	bar.bar = progressbar.NewOptions(int(bar.numUnits),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(fmt.Sprintf("%s (%s)", description, humanize.IBytes(uint64(contentLength)))),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: ".",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return bar
}

// Write implements io.Write, while updating the progress bar.
func (c *copyBytesBar) Write(p []byte) (n int, err error) {
	n, err = c.w.Write(p)
	c.amountWritten += int64(n)
	currentUnits := c.amountWritten / c.barUnit
	if currentUnits > c.addedUnits {
		_ = c.bar.Add(int(currentUnits - c.addedUnits))
		c.addedUnits = currentUnits
	}
	return
}

// CopyWithProgressBar is a replacement for io.Copy that displays a progress bar on stderr.
// If contentLength is not known (<= 0), it falls back to a plain io.Copy.
func CopyWithProgressBar(dst io.Writer, src io.Reader, contentLength int64, description string) (n int64, err error) {
	if contentLength <= 0 {
		return io.Copy(dst, src)
	}
	bar := newCopyBytesBar(dst, contentLength, description)
	n, err = io.Copy(bar, src)
	if bar.addedUnits < bar.numUnits {
		_ = bar.bar.Add(int(bar.numUnits - bar.addedUnits))
	}
	_ = bar.bar.Close()
	_, _ = fmt.Fprintln(os.Stderr)
	return
}
