package output

import (
	"fmt"
	"strings"

	"github.com/adamancini/updraft/internal/update"
)

// CheckReport is the printable outcome of one update session.
type CheckReport struct {
	Session          string `json:"session" yaml:"session"`
	Phase            string `json:"phase" yaml:"phase"`
	Decision         string `json:"decision" yaml:"decision"`
	CurrentVersion   string `json:"current_version" yaml:"current_version"`
	AvailableVersion string `json:"available_version,omitempty" yaml:"available_version,omitempty"`
	DisplayVersion   string `json:"display_version,omitempty" yaml:"display_version,omitempty"`
	DownloadURL      string `json:"download_url,omitempty" yaml:"download_url,omitempty"`
	ReleaseNotesURL  string `json:"release_notes_url,omitempty" yaml:"release_notes_url,omitempty"`
	WebBrowserURL    string `json:"web_browser_url,omitempty" yaml:"web_browser_url,omitempty"`
	InstallerPath    string `json:"installer_path,omitempty" yaml:"installer_path,omitempty"`
	Verification     string `json:"verification,omitempty" yaml:"verification,omitempty"`
	ErrorKind        string `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error            string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewCheckReport builds a report from a session result. res may be nil
// when the session never started.
func NewCheckReport(current string, res *update.Result, err error) CheckReport {
	r := CheckReport{CurrentVersion: current}
	if res != nil {
		r.Session = res.ID
		r.Phase = res.Phase.String()
		r.Decision = res.Decision.String()
		r.AvailableVersion = res.Appcast.Version
		if res.Appcast.Version != "" {
			r.DisplayVersion = res.Appcast.DisplayVersion()
		}
		r.DownloadURL = res.Appcast.DownloadURL
		r.ReleaseNotesURL = res.Appcast.ReleaseNotesURL
		r.WebBrowserURL = res.Appcast.WebBrowserURL
		r.InstallerPath = res.InstallerPath
		if res.InstallerPath != "" {
			r.Verification = res.Verification.String()
		}
	}
	if err != nil {
		r.ErrorKind = string(update.KindOf(err))
		r.Error = err.Error()
	}
	return r
}

// String renders the report for text output.
func (r CheckReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %s\n", r.CurrentVersion)
	if r.DisplayVersion != "" {
		fmt.Fprintf(&b, "Latest version:  %s\n", r.DisplayVersion)
	}
	if r.Decision != "" {
		fmt.Fprintf(&b, "Decision:        %s\n", r.Decision)
	}
	if r.InstallerPath != "" {
		fmt.Fprintf(&b, "Installer:       %s (%s)\n", r.InstallerPath, r.Verification)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error:           %s (%s)\n", r.Error, r.ErrorKind)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Comparison is the result of comparing two version strings.
type Comparison struct {
	A      string `json:"a" yaml:"a"`
	B      string `json:"b" yaml:"b"`
	Result int    `json:"result" yaml:"result"` // -1, 0 or 1
}

// NewComparison compares a and b.
func NewComparison(a, b string) Comparison {
	return Comparison{A: a, B: b, Result: update.CompareVersions(a, b)}
}

// String renders the comparison as "a < b", "a = b" or "a > b".
func (c Comparison) String() string {
	op := "="
	switch {
	case c.Result < 0:
		op = "<"
	case c.Result > 0:
		op = ">"
	}
	return fmt.Sprintf("%s %s %s", c.A, op, c.B)
}

// Setting is one persisted key and its value.
type Setting struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
	Set   bool   `json:"set" yaml:"set"`
}

// String renders the setting as "key = value".
func (s Setting) String() string {
	if !s.Set {
		return fmt.Sprintf("%s (unset)", s.Key)
	}
	return fmt.Sprintf("%s = %s", s.Key, s.Value)
}

// SettingsList renders several settings one per line.
type SettingsList []Setting

// String renders the settings one per line.
func (l SettingsList) String() string {
	lines := make([]string, len(l))
	for i, s := range l {
		lines[i] = s.String()
	}
	return strings.Join(lines, "\n")
}
