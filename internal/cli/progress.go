package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Progress shows a spinner while a command waits. In quiet mode, or when
// created with a nil writer, every method is a no-op.
type Progress struct {
	s *spinner.Spinner
	w io.Writer
}

// StartProgress starts a spinner on w with message as its suffix.
func StartProgress(w io.Writer, quiet bool, message string) *Progress {
	if quiet || w == nil {
		return &Progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	s.Start()
	return &Progress{s: s, w: w}
}

// Update replaces the spinner message.
func (p *Progress) Update(message string) {
	if p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = " " + message
	p.s.Unlock()
}

// Succeed stops the spinner leaving a success line.
func (p *Progress) Succeed(message string) {
	p.finish(text.FgGreen.Sprint(FormatSuccess(message)))
}

// Fail stops the spinner leaving a failure line.
func (p *Progress) Fail(message string) {
	p.finish(text.FgRed.Sprint(message))
}

// Stop stops the spinner without a final line.
func (p *Progress) Stop() {
	p.finish("")
}

func (p *Progress) finish(final string) {
	if p.s == nil {
		return
	}
	// The spinner does not start on non-terminals; the final line is still wanted.
	switch {
	case final == "":
	case p.s.Active():
		p.s.FinalMSG = final + "\n"
	default:
		fmt.Fprintln(p.w, final)
	}
	p.s.Stop()
	p.s = nil
}

// FormatError formats an error message for CLI output
func FormatError(err error) string {
	return fmt.Sprintf("Error: %v", err)
}

// FormatSuccess formats a success message for CLI output
func FormatSuccess(msg string) string {
	return fmt.Sprintf("✓ %s", msg)
}

// FormatWarning formats a warning message for CLI output
func FormatWarning(msg string) string {
	return fmt.Sprintf("⚠ %s", msg)
}
