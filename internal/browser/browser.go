// Package browser opens authorization URLs in the user's web browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
)

// Opener opens a URL in a new browsing context.
type Opener interface {
	Open(rawURL string) error
}

// launcher starts the command; replaced in tests.
var launcher = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// SystemOpener opens URLs with the platform's default browser.
type SystemOpener struct{}

// Open starts the browser without waiting for it to exit.
func (SystemOpener) Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("refusing to open non-HTTP URL %q", rawURL)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", rawURL)
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := launcher(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// NoopOpener never opens anything. Used with --no-browser.
type NoopOpener struct{}

func (NoopOpener) Open(string) error { return nil }

// RecordingOpener remembers every URL it was asked to open.
type RecordingOpener struct {
	mu   sync.Mutex
	urls []string
	Err  error
}

func (r *RecordingOpener) Open(rawURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, rawURL)
	return r.Err
}

// URLs returns the opened URLs in order.
func (r *RecordingOpener) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}
