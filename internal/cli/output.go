package cli

import (
	"fmt"
	"io"

	"connectorctl/internal/formatting"
)

// Printer writes command results to stdout and messages to stderr, so
// structured output stays parseable.
type Printer struct {
	out       io.Writer
	errOut    io.Writer
	quiet     bool
	formatter formatting.Formatter
}

// NewPrinter creates a Printer.
func NewPrinter(out, errOut io.Writer, quiet bool, opts formatting.Options) *Printer {
	return &Printer{
		out:       out,
		errOut:    errOut,
		quiet:     quiet,
		formatter: formatting.New(opts),
	}
}

// Print writes v in the selected output format.
func (p *Printer) Print(v interface{}) error {
	return p.formatter.Write(p.out, v)
}

// Structured reports whether the output format is json or yaml.
func (p *Printer) Structured() bool {
	switch p.formatter.Options().Format {
	case formatting.FormatJSON, formatting.FormatYAML:
		return true
	}
	return false
}

// Success prints a success message unless quiet.
func (p *Printer) Success(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.errOut, FormatSuccess(fmt.Sprintf(format, args...)))
}

// Info prints a plain message unless quiet.
func (p *Printer) Info(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.errOut, format+"\n", args...)
}

// Warn prints a warning, even in quiet mode.
func (p *Printer) Warn(format string, args ...interface{}) {
	fmt.Fprintln(p.errOut, FormatWarning(fmt.Sprintf(format, args...)))
}

// Progress starts a spinner on the message stream.
func (p *Printer) Progress(message string) *Progress {
	return StartProgress(p.errOut, p.quiet, message)
}
