package status

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Printer writes one colored line per call.
type Printer struct {
	out     io.Writer
	info    *color.Color
	success *color.Color
	warn    *color.Color
	failure *color.Color
}

// New returns a Printer writing to out. A nil out means color.Output (stdout).
func New(out io.Writer) *Printer {
	if out == nil {
		out = color.Output
	}

	return &Printer{
		out:     out,
		info:    color.New(color.FgBlue),
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		failure: color.New(color.FgRed),
	}
}

// Writer exposes the destination, for prompts that must share it.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Info reports progress.
func (p *Printer) Info(format string, args ...any) {
	p.line(p.info, format, args...)
}

// Success reports a completed step.
func (p *Printer) Success(format string, args ...any) {
	p.line(p.success, format, args...)
}

// Warn reports a skipped step or a recoverable problem.
func (p *Printer) Warn(format string, args ...any) {
	p.line(p.warn, format, args...)
}

// Error reports a failure.
func (p *Printer) Error(format string, args ...any) {
	p.line(p.failure, format, args...)
}

// Prompt writes a question without a trailing newline.
func (p *Printer) Prompt(format string, args ...any) {
	_, _ = p.info.Fprint(p.out, fmt.Sprintf(format, args...))
}

// Raw writes text without color, used for tool output such as stderr dumps.
func (p *Printer) Raw(text string) {
	if text == "" {
		return
	}

	_, _ = fmt.Fprintln(p.out, text)
}

func (p *Printer) line(c *color.Color, format string, args ...any) {
	_, _ = c.Fprintln(p.out, fmt.Sprintf(format, args...))
}
