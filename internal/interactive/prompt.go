// Package interactive provides interactive prompts for update decisions.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/adamancini/updraft/internal/update"
)

// Response represents the user's answer to an update offer.
type Response int

const (
	ResponseLater   Response = iota // Leave the update for the next check
	ResponseInstall                 // Download and install now
	ResponseSkip                    // Never offer this version again
)

func (r Response) String() string {
	switch r {
	case ResponseInstall:
		return "install"
	case ResponseSkip:
		return "skip"
	default:
		return "later"
	}
}

// Prompter handles interactive prompts for update confirmation.
type Prompter struct {
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readAnswer reads one trimmed, lower-cased line. ok is false at EOF.
func (p *Prompter) readAnswer() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(p.scanner.Text())), true
}

// AskUpdate offers an available update and returns the user's choice.
// EOF or unrecognised input means later.
func (p *Prompter) AskUpdate(a update.Appcast, current string) Response {
	_, _ = fmt.Fprintf(p.out, "\n%s is available (you have %s).\n", a.DisplayVersion(), current)
	if a.Title != "" {
		_, _ = fmt.Fprintf(p.out, "  %s\n", a.Title)
	}
	if a.ReleaseNotesURL != "" {
		_, _ = fmt.Fprintf(p.out, "  Release notes: %s\n", a.ReleaseNotesURL)
	}

	if a.DownloadURL == "" {
		// Nothing to install; the user can only visit the page or skip.
		if a.WebBrowserURL != "" {
			_, _ = fmt.Fprintf(p.out, "  Download it from %s\n", a.WebBrowserURL)
		}
		_, _ = fmt.Fprint(p.out, "Skip this version? [s/l] ")
	} else {
		_, _ = fmt.Fprint(p.out, "Install now? [i/s/l] ")
	}

	input, ok := p.readAnswer()
	if !ok {
		_, _ = fmt.Fprintln(p.out)
		return ResponseLater
	}
	switch input {
	case "i", "install", "y", "yes":
		if a.DownloadURL == "" {
			_, _ = fmt.Fprintln(p.out, "Nothing to install, remind me later.")
			return ResponseLater
		}
		return ResponseInstall
	case "s", "skip":
		return ResponseSkip
	case "l", "later", "n", "no", "":
		return ResponseLater
	default:
		_, _ = fmt.Fprintln(p.out, "Invalid response, remind me later.")
		return ResponseLater
	}
}

// Confirm asks a yes/no question. Anything but yes is no.
func (p *Prompter) Confirm(format string, args ...interface{}) bool {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n] ")
	input, ok := p.readAnswer()
	if !ok {
		return false
	}
	return input == "y" || input == "yes"
}
