// Package templates provides embedded Updraftfile templates for updraft init.
//
// Each template starts with a "# template: <description>" line and may
// reference ${NAME} or ${NAME:-default} placeholders that are filled in when
// the template is rendered.
package templates

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

//go:embed *.yaml
var templatesFS embed.FS

const descriptionPrefix = "# template:"

// Template is one embedded Updraftfile.
type Template struct {
	Name        string
	Description string
	Content     []byte
}

// Placeholder is a ${NAME} or ${NAME:-default} reference in a template.
type Placeholder struct {
	Name    string
	Default string
}

// List returns the template names, sorted.
func List() []string {
	matches, err := fs.Glob(templatesFS, "*.yaml")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(m, path.Ext(m)))
	}
	sort.Strings(names)
	return names
}

// Get returns the unexpanded template called name.
func Get(name string) (*Template, error) {
	content, err := templatesFS.ReadFile(name + ".yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unknown template %q (available: %s)", name, strings.Join(List(), ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %q: %w", name, err)
	}
	return &Template{Name: name, Description: description(content), Content: content}, nil
}

// GetDescription returns the one-line summary of a template.
func GetDescription(name string) string {
	if tmpl, err := Get(name); err == nil && tmpl.Description != "" {
		return tmpl.Description
	}
	return "Custom template"
}

// GetExpanded returns a template with its placeholders filled from the
// environment.
func GetExpanded(name string) (*Template, error) {
	tmpl, err := Get(name)
	if err != nil {
		return nil, err
	}
	tmpl.Content = ExpandEnvVars(tmpl.Content)
	return tmpl, nil
}

func description(content []byte) string {
	line, _, _ := bytes.Cut(content, []byte("\n"))
	desc, ok := strings.CutPrefix(strings.TrimSpace(string(line)), descriptionPrefix)
	if !ok {
		return ""
	}
	return strings.TrimSpace(desc)
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Placeholders lists the placeholders in content in order of first use.
func Placeholders(content []byte) []Placeholder {
	var out []Placeholder
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		for _, m := range placeholderPattern.FindAllStringSubmatch(scanner.Text(), -1) {
			if seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			out = append(out, Placeholder{Name: m[1], Default: m[2]})
		}
	}
	return out
}

// Expand fills placeholders using lookup. An empty or missing value falls
// back to the placeholder's default.
func Expand(content []byte, lookup func(string) (string, bool)) []byte {
	return placeholderPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		m := placeholderPattern.FindSubmatch(match)
		if value, _ := lookup(string(m[1])); value != "" {
			return []byte(value)
		}
		return m[2]
	})
}

// ExpandEnvVars fills placeholders from the process environment.
func ExpandEnvVars(content []byte) []byte {
	return Expand(content, os.LookupEnv)
}
