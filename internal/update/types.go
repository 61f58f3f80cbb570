package update

import (
	"context"

	"github.com/adamancini/updraft/internal/download"
)

// Appcast describes the latest release advertised by the update feed
type Appcast struct {
	Version         string // Machine-comparable version (sparkle:version)
	ShortVersion    string // Human-readable version, display only
	DownloadURL     string // Installer download URL
	ReleaseNotesURL string // Release notes page
	WebBrowserURL   string // Page to open instead of downloading
	Title           string
	Description     string
	Signature       string // Base64 detached Ed25519 signature of the installer
	SilentInstall   bool   // Install without asking the user
	OS              string // Target operating system, empty for any
}

// IsValid reports whether the appcast carries enough to act on.
// Silent installs need a download URL; user notifications need somewhere
// to send the user.
func (a Appcast) IsValid() bool {
	if a.Version == "" {
		return false
	}
	if a.SilentInstall {
		return a.DownloadURL != ""
	}
	return a.DownloadURL != "" || a.WebBrowserURL != ""
}

// DisplayVersion returns the short version if present, otherwise Version.
func (a Appcast) DisplayVersion() string {
	if a.ShortVersion != "" {
		return a.ShortVersion
	}
	return a.Version
}

// Downloader fetches a URL into a sink
type Downloader interface {
	Download(ctx context.Context, url string, sink download.Sink, opts ...download.Option) error
}

// FeedParser turns raw feed bytes into an Appcast
type FeedParser interface {
	Parse(data []byte) (Appcast, error)
}

// Notifier receives user-facing events from a check
type Notifier interface {
	NotifyNoUpdate(autoInstall bool)
	NotifyUpdateAvailable(a Appcast, autoInstall bool)
	NotifyDownloadProgress(downloaded, total uint64)
	NotifyError(err error)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) NotifyNoUpdate(bool)                   {}
func (NopNotifier) NotifyUpdateAvailable(Appcast, bool)   {}
func (NopNotifier) NotifyDownloadProgress(uint64, uint64) {}
func (NopNotifier) NotifyError(error)                     {}

// Launcher starts a downloaded installer
type Launcher interface {
	Launch(path string) error
}

// AlternateResult is returned by an application-supplied appcast resolver.
type AlternateResult int

const (
	// HandledNoUpdate means the application resolved the feed and found nothing newer.
	HandledNoUpdate AlternateResult = iota
	// HandledUpdateAvailable means the returned Appcast should be used.
	HandledUpdateAvailable
	// NotHandled means the default feed download should run.
	NotHandled
	// UnknownError means the resolver failed in an unexpected way.
	UnknownError
)

// String returns the string representation of the AlternateResult.
func (r AlternateResult) String() string {
	switch r {
	case HandledNoUpdate:
		return "handled-no-update"
	case HandledUpdateAvailable:
		return "handled-update-available"
	case NotHandled:
		return "not-handled"
	default:
		return "unknown-error"
	}
}

// Hooks are optional application callbacks. Nil fields are skipped.
type Hooks struct {
	// AlternateAppcast lets the application resolve update information
	// itself instead of downloading the feed.
	AlternateAppcast func(ctx context.Context, manual bool) (Appcast, AlternateResult)
	DidFindUpdate    func(a Appcast)
	DidNotFindUpdate func()
	UpdateCancelled  func()
	// RunInstaller lets the application launch the verified installer
	// itself. Returning true means it was handled.
	RunInstaller func(path string) (bool, error)
}
