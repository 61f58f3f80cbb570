// Package output handles formatting output in different formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/adamancini/updraft/internal/types"
)

// Writer handles output in the specified format.
type Writer struct {
	format types.OutputFormat
	w      io.Writer
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, format types.OutputFormat) *Writer {
	return &Writer{format: format, w: w}
}

// Format returns the configured format.
func (w *Writer) Format() types.OutputFormat {
	return w.format
}

// Write outputs the given value in the configured format.
func (w *Writer) Write(v interface{}) error {
	switch w.format {
	case types.OutputJSON:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case types.OutputYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		// Text format - assume v implements fmt.Stringer or use default
		if s, ok := v.(fmt.Stringer); ok {
			_, err := fmt.Fprintln(w.w, s.String())
			return err
		}
		_, err := fmt.Fprintf(w.w, "%+v\n", v)
		return err
	}
}

// ParseFormat parses a format string into an output format.
// Empty means text and "yml" is accepted for yaml.
func ParseFormat(s string) (types.OutputFormat, error) {
	switch s {
	case "":
		return types.OutputText, nil
	case "yml":
		return types.OutputYAML, nil
	}
	f, err := types.ParseOutputFormat(s)
	if err != nil {
		return "", fmt.Errorf("unknown format: %s", s)
	}
	return f, nil
}
