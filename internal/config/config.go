// Package config handles Updraftfile parsing and location resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adamancini/updraft/internal/types"
	"github.com/adamancini/updraft/internal/update"
)

// CurrentVersion is the Updraftfile schema version this build understands.
const CurrentVersion = 1

// App describes the host application being updated.
type App struct {
	Name    string `yaml:"name" toml:"name" json:"name"`
	Version string `yaml:"version" toml:"version" json:"version"` // Running version, compared against the feed
}

// StoreConfig selects the persistent settings backend.
type StoreConfig struct {
	Backend types.StoreBackend `yaml:"backend,omitempty" toml:"backend,omitempty" json:"backend,omitempty"`
	Path    string             `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"` // Defaults under the state directory
}

// Updraftfile represents the parsed configuration file.
type Updraftfile struct {
	Version        int               `yaml:"version" toml:"version" json:"version"`
	App            App               `yaml:"app" toml:"app" json:"app"`
	AppcastURL     string            `yaml:"appcast_url" toml:"appcast_url" json:"appcast_url"`
	PublicKey      string            `yaml:"public_key,omitempty" toml:"public_key,omitempty" json:"public_key,omitempty"`
	HTTPHeaders    map[string]string `yaml:"http_headers,omitempty" toml:"http_headers,omitempty" json:"http_headers,omitempty"`
	AllowedSchemes []string          `yaml:"allowed_schemes,omitempty" toml:"allowed_schemes,omitempty" json:"allowed_schemes,omitempty"`
	CheckInterval  string            `yaml:"check_interval,omitempty" toml:"check_interval,omitempty" json:"check_interval,omitempty"` // Go duration, e.g. "24h"
	PollInterval   string            `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" json:"poll_interval,omitempty"`
	InstallerArgs  []string          `yaml:"installer_args,omitempty" toml:"installer_args,omitempty" json:"installer_args,omitempty"`
	TempRoot       string            `yaml:"temp_root,omitempty" toml:"temp_root,omitempty" json:"temp_root,omitempty"`
	Store          StoreConfig       `yaml:"store,omitempty" toml:"store,omitempty" json:"store,omitempty"`
}

// CheckIntervalDuration returns the configured check interval, or 0 when unset.
func (c *Updraftfile) CheckIntervalDuration() (time.Duration, error) {
	return parseDuration(c.CheckInterval)
}

// PollIntervalDuration returns the configured poll quantum, or 0 when unset.
func (c *Updraftfile) PollIntervalDuration() (time.Duration, error) {
	return parseDuration(c.PollInterval)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// CheckerConfig converts the file into the update checker's settings.
func (c *Updraftfile) CheckerConfig() update.Config {
	userAgent := ""
	if c.App.Name != "" {
		userAgent = fmt.Sprintf("%s/%s", c.App.Name, c.App.Version)
	}
	return update.Config{
		AppVersion:  c.App.Version,
		AppcastURL:  c.AppcastURL,
		HTTPHeaders: c.HTTPHeaders,
		UserAgent:   userAgent,
		TempRoot:    c.TempRoot,
		URLPolicy:   update.URLPolicy{AllowedSchemes: c.AllowedSchemes},
	}
}

// StorePath returns the settings location, defaulting to a file in the
// state directory named after the backend.
func (c *Updraftfile) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	switch c.Store.Backend.Default() {
	case types.StoreSQLite:
		return filepath.Join(dir, "settings.db"), nil
	default:
		return filepath.Join(dir, "settings.yaml"), nil
	}
}

// StateDir returns the directory updraft keeps its own state in.
func StateDir() (string, error) {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine home directory: %w", err)
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "updraft"), nil
}

// fileNames are the Updraftfile spellings searched in each directory.
var fileNames = []string{
	"Updraftfile",
	"Updraftfile.yaml",
	"Updraftfile.yml",
	"Updraftfile.toml",
	"Updraftfile.json",
	".Updraftfile",
	".Updraftfile.yaml",
	".Updraftfile.yml",
	".Updraftfile.toml",
	".Updraftfile.json",
}

// FindUpdraftfile searches for an Updraftfile in the standard locations.
// Returns the path to the first Updraftfile found, or an error if none exists.
func FindUpdraftfile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified Updraftfile not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv("UPDRAFTFILE"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	stateDir, err := StateDir()
	if err != nil {
		return "", err
	}

	// Precedence: XDG config, ~/.updraft, home
	searchPaths := []string{stateDir, filepath.Join(home, ".updraft"), home}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("no Updraftfile found in standard locations")
}

// Load reads, parses and validates an Updraftfile.
func Load(path string) (*Updraftfile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Updraftfile: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	file, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	if err := Validate(file); err != nil {
		return nil, err
	}

	return file, nil
}
