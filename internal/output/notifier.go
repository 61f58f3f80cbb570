package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/adamancini/updraft/internal/update"
)

// ConsoleNotifier prints update events for a terminal user
type ConsoleNotifier struct {
	mu             sync.Mutex
	w              io.Writer
	currentVersion string
	quiet          bool

	ok   *color.Color
	warn *color.Color
	fail *color.Color
	dim  *color.Color

	progressShown bool
}

var _ update.Notifier = (*ConsoleNotifier)(nil)

// NotifierOption configures a ConsoleNotifier.
type NotifierOption func(*ConsoleNotifier)

// WithoutColor disables ANSI colors regardless of the terminal.
func WithoutColor() NotifierOption {
	return func(n *ConsoleNotifier) {
		for _, c := range []*color.Color{n.ok, n.warn, n.fail, n.dim} {
			c.DisableColor()
		}
	}
}

// Quiet suppresses everything but errors.
func Quiet() NotifierOption {
	return func(n *ConsoleNotifier) {
		n.quiet = true
	}
}

// SetQuiet toggles quiet mode after construction.
func (n *ConsoleNotifier) SetQuiet(quiet bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quiet = quiet
}

// NewConsoleNotifier creates a notifier writing to w.
func NewConsoleNotifier(w io.Writer, currentVersion string, opts ...NotifierOption) *ConsoleNotifier {
	n := &ConsoleNotifier{
		w:              w,
		currentVersion: currentVersion,
		ok:             color.New(color.FgGreen),
		warn:           color.New(color.FgYellow, color.Bold),
		fail:           color.New(color.FgRed),
		dim:            color.New(color.Faint),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyNoUpdate implements update.Notifier.
func (n *ConsoleNotifier) NotifyNoUpdate(bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.quiet {
		return
	}
	n.endProgress()
	_, _ = n.ok.Fprintf(n.w, "%s is up to date.\n", n.currentVersion)
}

// NotifyUpdateAvailable implements update.Notifier.
func (n *ConsoleNotifier) NotifyUpdateAvailable(a update.Appcast, autoInstall bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.quiet {
		return
	}
	n.endProgress()

	_, _ = n.warn.Fprintf(n.w, "Update available: %s", a.DisplayVersion())
	_, _ = fmt.Fprintf(n.w, " (you have %s)\n", n.currentVersion)
	if a.Title != "" {
		_, _ = fmt.Fprintf(n.w, "  %s\n", a.Title)
	}
	if a.ReleaseNotesURL != "" {
		_, _ = n.dim.Fprintf(n.w, "  Release notes: %s\n", a.ReleaseNotesURL)
	}
	switch {
	case a.DownloadURL != "":
		_, _ = n.dim.Fprintf(n.w, "  Download:      %s\n", a.DownloadURL)
	case a.WebBrowserURL != "":
		_, _ = n.dim.Fprintf(n.w, "  Get it from:   %s\n", a.WebBrowserURL)
	}
	if autoInstall {
		_, _ = n.dim.Fprintln(n.w, "  Automatic installation is enabled.")
	}
}

// NotifyDownloadProgress implements update.Notifier. Progress is redrawn
// in place on a single line.
func (n *ConsoleNotifier) NotifyDownloadProgress(downloaded, total uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.quiet {
		return
	}
	n.progressShown = true

	if total == 0 {
		_, _ = fmt.Fprintf(n.w, "\rDownloading: %s", humanize.Bytes(downloaded))
		return
	}
	pct := float64(downloaded) * 100 / float64(total)
	_, _ = fmt.Fprintf(n.w, "\rDownloading: %s / %s (%.0f%%)", humanize.Bytes(downloaded), humanize.Bytes(total), pct)
}

// NotifyError implements update.Notifier.
func (n *ConsoleNotifier) NotifyError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endProgress()

	if update.IsKind(err, update.KindCancelled) {
		_, _ = n.dim.Fprintln(n.w, "Update cancelled.")
		return
	}
	_, _ = n.fail.Fprintf(n.w, "Update failed: %v\n", err)
}

// endProgress terminates an in-place progress line. Callers hold mu.
func (n *ConsoleNotifier) endProgress() {
	if n.progressShown {
		_, _ = fmt.Fprintln(n.w)
		n.progressShown = false
	}
}
