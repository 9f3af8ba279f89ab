// Package ui prints PROBE's console output: prefixed status lines styled
// with lipgloss, and markdown rendered with glamour.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Printer writes status lines. Errors and warnings go to the error writer.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	plain  bool
}

// NewPrinter creates a printer. Styling is disabled when plain is true,
// which keeps output stable for logs and tests.
func NewPrinter(out, errOut io.Writer, plain bool) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Printer{out: out, errOut: errOut, plain: plain}
}

// Out returns the writer used for regular output.
func (p *Printer) Out() io.Writer {
	return p.out
}

func (p *Printer) line(w io.Writer, style lipgloss.Style, prefix, format string, args ...any) {
	msg := prefix + fmt.Sprintf(format, args...)
	if !p.plain {
		msg = style.Render(msg)
	}
	fmt.Fprintln(w, msg)
}

// Infof prints a progress line.
func (p *Printer) Infof(format string, args ...any) {
	p.line(p.out, InfoStyle, InfoPrefix, format, args...)
}

// Successf prints a completed step.
func (p *Printer) Successf(format string, args ...any) {
	p.line(p.out, SuccessStyle, SuccessPrefix, format, args...)
}

// Warnf prints a non-fatal problem.
func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.errOut, WarnStyle, WarnPrefix, format, args...)
}

// Errorf prints a fatal problem.
func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.errOut, ErrorStyle, ErrorPrefix, format, args...)
}

// Heading prints a section title.
func (p *Printer) Heading(title string) {
	if p.plain {
		fmt.Fprintln(p.out, title)
		return
	}
	fmt.Fprintln(p.out, HeadingStyle.Render(title))
}

// Detail prints indented secondary text, such as captured stderr.
func (p *Printer) Detail(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, l := range strings.Split(text, "\n") {
		l = "  " + l
		if !p.plain {
			l = DimStyle.Render(l)
		}
		fmt.Fprintln(p.errOut, l)
	}
}

// Markdown renders md with glamour. It returns false when rendering is
// unavailable so the caller can fall back to plain output.
func (p *Printer) Markdown(md string) bool {
	if p.plain {
		return false
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return false
	}

	out, err := renderer.Render(md)
	if err != nil {
		return false
	}

	fmt.Fprint(p.out, out)
	return true
}
