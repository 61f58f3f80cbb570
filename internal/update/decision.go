package update

import (
	"github.com/adamancini/updraft/internal/settings"
)

// Decision is the outcome of comparing the running version against an appcast.
type Decision int

const (
	NoUpdate Decision = iota
	SilentInstallReady
	NotifyUser
)

// String returns the string representation of the Decision.
func (d Decision) String() string {
	switch d {
	case SilentInstallReady:
		return "silent-install-ready"
	case NotifyUser:
		return "notify-user"
	default:
		return "no-update"
	}
}

// SkipPolicy decides whether an otherwise newer release should be ignored.
type SkipPolicy interface {
	ShouldSkip(a Appcast) bool
}

// HonorSkipList skips the version the user asked to stop hearing about.
type HonorSkipList struct {
	Store settings.Store
}

// ShouldSkip implements SkipPolicy.
func (p HonorSkipList) ShouldSkip(a Appcast) bool {
	if p.Store == nil {
		return false
	}
	toSkip, ok, err := settings.ReadString(p.Store, settings.KeySkipThisVersion)
	if err != nil {
		log.Warnw("failed to read skipped version", "error", err)
		return false
	}
	return ok && toSkip == a.Version
}

// ManualSkipOverride never skips: a check the user explicitly asked for
// always reports the newest version, even one they skipped before.
type ManualSkipOverride struct{}

// ShouldSkip implements SkipPolicy.
func (ManualSkipOverride) ShouldSkip(Appcast) bool { return false }

// Decide derives the action for one check. Equal versions count as no update.
func Decide(current string, a Appcast, skip SkipPolicy) Decision {
	if !a.IsValid() || CompareVersions(current, a.Version) >= 0 {
		return NoUpdate
	}
	if skip != nil && skip.ShouldSkip(a) {
		return NoUpdate
	}
	if a.SilentInstall {
		return SilentInstallReady
	}
	return NotifyUser
}
