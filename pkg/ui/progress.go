package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"

	progressWidth = 20
)

// ProgressPercent returns the integer completion percentage. An empty run
// counts as fully complete.
func ProgressPercent(completed, total int) int {
	if total == 0 {
		return 100
	}
	return completed * 100 / total
}

// RenderProgress returns the one-line progress bar for completed/total
func RenderProgress(completed, total int) string {
	percent := ProgressPercent(completed, total)
	filled := progressWidth * percent / 100

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, progressWidth-filled)

	return fmt.Sprintf("[%s] %d/%d (%d%%)", bar, completed, total, percent)
}

// ProgressPrinter rewrites a single terminal line as a run advances
type ProgressPrinter struct {
	out io.Writer
}

// NewProgressPrinter creates a printer writing to stdout
func NewProgressPrinter() *ProgressPrinter {
	return &ProgressPrinter{out: os.Stdout}
}

// Update redraws the progress line
func (p *ProgressPrinter) Update(completed, total int) {
	fmt.Fprintf(p.out, "\r%s %s", Green("[DOWNLOAD]"), RenderProgress(completed, total))
	if completed >= total {
		fmt.Fprintln(p.out)
	}
}
