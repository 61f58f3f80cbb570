package update

import (
	"runtime"
	"strings"
)

// Platform identifies an operating system and architecture
type Platform struct {
	OS   string // GOOS spelling
	Arch string // GOARCH spelling
}

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// String returns the platform as "os-arch"
func (p Platform) String() string {
	return p.OS + "-" + p.Arch
}

// Matches reports whether an appcast OS marker applies to this platform.
// Markers are an OS name optionally followed by an architecture, e.g.
// "windows", "windows-x64", "macos" or "linux-arm64". An empty marker
// matches every platform.
func (p Platform) Matches(marker string) bool {
	marker = strings.ToLower(strings.TrimSpace(marker))
	if marker == "" {
		return true
	}

	osName, arch, hasArch := strings.Cut(marker, "-")
	if normalizeOS(osName) != p.OS {
		return false
	}
	if !hasArch {
		return true
	}
	return normalizeArch(arch) == p.Arch
}

func normalizeOS(name string) string {
	switch name {
	case "macos", "osx", "mac":
		return "darwin"
	case "win", "win32":
		return "windows"
	default:
		return name
	}
}

func normalizeArch(arch string) string {
	switch arch {
	case "x64", "x86_64":
		return "amd64"
	case "x86", "i386":
		return "386"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}
