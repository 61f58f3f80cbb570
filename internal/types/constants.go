// Package types provides type-safe constants for the updraft configuration system.
//
// Enumerated configuration values live here so that the config loader, the
// CLI flags and the settings backends agree on spelling and validation.
package types

import (
	"fmt"
	"strings"
)

// StoreBackend selects where persistent check state is kept.
type StoreBackend string

const (
	// StoreFile keeps settings in a YAML file.
	StoreFile StoreBackend = "file"
	// StoreSQLite keeps settings in a SQLite database.
	StoreSQLite StoreBackend = "sqlite"
	// StoreMemory keeps settings for the lifetime of the process only.
	StoreMemory StoreBackend = "memory"
)

// AllStoreBackends returns all valid store backends.
func AllStoreBackends() []StoreBackend {
	return []StoreBackend{StoreFile, StoreSQLite, StoreMemory}
}

// Validate checks if the StoreBackend is a valid value.
// Empty is valid and means the default (file).
func (b StoreBackend) Validate() error {
	switch b {
	case StoreFile, StoreSQLite, StoreMemory, "":
		return nil
	default:
		return fmt.Errorf("invalid store backend '%s' (must be file, sqlite, or memory)", b)
	}
}

// String returns the string representation of the StoreBackend.
func (b StoreBackend) String() string {
	return string(b)
}

// Default returns the file backend if empty, otherwise the current backend.
func (b StoreBackend) Default() StoreBackend {
	if b == "" {
		return StoreFile
	}
	return b
}

// IsPersistent returns true if values survive a restart.
func (b StoreBackend) IsPersistent() bool {
	return b.Default() != StoreMemory
}

// ParseStoreBackend parses a string into a StoreBackend.
// Returns an error if the string is not a valid backend.
func ParseStoreBackend(s string) (StoreBackend, error) {
	b := StoreBackend(strings.ToLower(s))
	if err := b.Validate(); err != nil {
		return "", err
	}
	return b, nil
}

// OutputFormat selects how the CLI renders results.
type OutputFormat string

const (
	// OutputText is human-readable output.
	OutputText OutputFormat = "text"
	// OutputJSON is one JSON document per result.
	OutputJSON OutputFormat = "json"
	// OutputYAML is one YAML document per result.
	OutputYAML OutputFormat = "yaml"
)

// AllOutputFormats returns all valid output formats.
func AllOutputFormats() []OutputFormat {
	return []OutputFormat{OutputText, OutputJSON, OutputYAML}
}

// Validate checks if the OutputFormat is a valid value.
func (f OutputFormat) Validate() error {
	switch f {
	case OutputText, OutputJSON, OutputYAML:
		return nil
	case "":
		return fmt.Errorf("output format is required")
	default:
		return fmt.Errorf("invalid output format '%s' (must be text, json, or yaml)", f)
	}
}

// String returns the string representation of the OutputFormat.
func (f OutputFormat) String() string {
	return string(f)
}

// IsStructured returns true for machine-readable formats.
func (f OutputFormat) IsStructured() bool {
	return f == OutputJSON || f == OutputYAML
}

// ParseOutputFormat parses a string into an OutputFormat.
// Returns an error if the string is not a valid format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(s))
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// URLScheme is a transport scheme a feed or download URL may use.
type URLScheme string

const (
	// SchemeHTTPS is TLS-protected HTTP.
	SchemeHTTPS URLScheme = "https"
	// SchemeHTTP is plain HTTP, only for testing and trusted networks.
	SchemeHTTP URLScheme = "http"
	// SchemeFile is a local file, only for testing.
	SchemeFile URLScheme = "file"
)

// AllURLSchemes returns all recognised schemes.
func AllURLSchemes() []URLScheme {
	return []URLScheme{SchemeHTTPS, SchemeHTTP, SchemeFile}
}

// Validate checks if the URLScheme is a valid value.
func (s URLScheme) Validate() error {
	switch s {
	case SchemeHTTPS, SchemeHTTP, SchemeFile:
		return nil
	case "":
		return fmt.Errorf("scheme is required")
	default:
		return fmt.Errorf("invalid scheme '%s' (must be https, http, or file)", s)
	}
}

// String returns the string representation of the URLScheme.
func (s URLScheme) String() string {
	return string(s)
}

// IsSecure returns true if the scheme protects the transfer.
func (s URLScheme) IsSecure() bool {
	return s == SchemeHTTPS
}

// ParseURLScheme parses a string into a URLScheme.
func ParseURLScheme(s string) (URLScheme, error) {
	scheme := URLScheme(strings.ToLower(s))
	if err := scheme.Validate(); err != nil {
		return "", err
	}
	return scheme, nil
}
