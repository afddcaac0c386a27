// Package ui renders CLI output. Color goes to the terminal only; piped
// output stays plain.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phaserhq/phaser/internal/contract"
	"github.com/phaserhq/phaser/internal/manifest"
)

// ANSI color codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	yellow = "\033[33m"
	green  = "\033[32m"
	red    = "\033[31m"
	cyan   = "\033[36m"
)

// Printer writes formatted output to a destination.
type Printer struct {
	out   io.Writer
	color bool
}

// New returns a Printer on stdout, colored when stdout is a terminal.
func New() *Printer {
	return &Printer{out: os.Stdout, color: isTerminal(os.Stdout)}
}

// NewPlain returns an uncolored Printer on w, for tests and pipes.
func NewPlain(w io.Writer) *Printer {
	return &Printer{out: w}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + reset
}

// Success prints a green check line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.out, p.paint(green, "✓ ")+format+"\n", args...)
}

// Error prints a red cross line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.out, p.paint(red, "✗ ")+format+"\n", args...)
}

// Warn prints a yellow warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.out, p.paint(yellow, "! ")+format+"\n", args...)
}

// Info prints an unadorned line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Header prints a bold section header.
func (p *Printer) Header(text string) {
	fmt.Fprintln(p.out, p.paint(bold+cyan, text))
}

// Dim prints a de-emphasized line.
func (p *Printer) Dim(format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(dim, fmt.Sprintf(format, args...)))
}

// CheckResults renders contract check results, violations indented under
// their rule.
func (p *Printer) CheckResults(results []*contract.CheckResult) {
	for _, res := range results {
		rule := res.Contract.Rule
		if res.Passed {
			p.Success("%s (%s)", rule.ID, rule.Severity)
			continue
		}
		p.Error("%s (%s): %d violation(s)", rule.ID, rule.Severity, len(res.Violations))
		for _, v := range res.Violations {
			loc := v.Path
			if v.Line > 0 {
				loc = fmt.Sprintf("%s:%d", v.Path, v.Line)
			}
			p.Dim("    %s  %s", loc, v.Message)
		}
	}
}

// DiffSummary renders a manifest comparison.
func (p *Printer) DiffSummary(diff *manifest.DiffResult) {
	if diff.Empty() {
		p.Info("No changes")
		return
	}
	for _, c := range diff.Added {
		p.Info("%s %s", p.paint(green, "A"), c.Path)
	}
	for _, c := range diff.Modified {
		p.Info("%s %s", p.paint(yellow, "M"), c.Path)
	}
	for _, c := range diff.Deleted {
		p.Info("%s %s", p.paint(red, "D"), c.Path)
	}
	p.Dim("%d added, %d modified, %d deleted, %d unchanged",
		len(diff.Added), len(diff.Modified), len(diff.Deleted), diff.UnchangedCount)
}

// KV prints aligned key: value pairs in the given key order.
func (p *Printer) KV(pairs [][2]string) {
	width := 0
	for _, kv := range pairs {
		if len(kv[0]) > width {
			width = len(kv[0])
		}
	}
	for _, kv := range pairs {
		fmt.Fprintf(p.out, "  %s%s  %s\n", kv[0], strings.Repeat(" ", width-len(kv[0])), kv[1])
	}
}
