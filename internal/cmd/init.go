package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/config"
	"github.com/adamancini/updraft/internal/download"
	"github.com/adamancini/updraft/internal/templates"
	"github.com/adamancini/updraft/internal/update"
)

func newInitCmd() *cobra.Command {
	var (
		templateName string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new Updraftfile from a template",
		Long: `Create a new Updraftfile from a built-in or remote template.

Available templates:
  minimal  - Feed URL and app version only
  signed   - Signed installers with silent install arguments
  full     - Every option, sqlite settings store

Placeholders such as ${UPDRAFT_APP_NAME:-MyApp} are filled from the
environment (UPDRAFT_APP_NAME, UPDRAFT_APP_VERSION, UPDRAFT_APPCAST_URL,
UPDRAFT_PUBLIC_KEY) or fall back to their defaults.

Examples:
  updraft init                              # minimal template
  updraft init --template=signed
  updraft init --template=https://...       # Remote template
  updraft init --config ./Updraftfile.yaml  # Custom output location`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), templateName, configPath, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "minimal", "Template name or https URL")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing Updraftfile")

	// Register completion for template flag
	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit writes a validated template to outputPath.
func runInit(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, templateName, outputPath string, force bool) error {
	if outputPath == "" {
		dir, err := config.StateDir()
		if err != nil {
			return err
		}
		outputPath = filepath.Join(dir, "Updraftfile.yaml")
	}
	outputPath = expandHomePath(outputPath)

	if _, err := os.Stat(outputPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "Updraftfile already exists at %s\n", outputPath)
		if !newPrompter(stdin, stdout).Confirm("Overwrite?") {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	// 1. Template content
	var raw []byte
	if strings.Contains(templateName, "://") {
		var err error
		raw, err = fetchRemoteTemplate(ctx, templateName)
		if err != nil {
			return fmt.Errorf("failed to fetch template: %w", err)
		}
	} else {
		tmpl, err := templates.Get(templateName)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		raw = tmpl.Content
	}
	content := templates.ExpandEnvVars(raw)

	// 2. Refuse anything that would not load
	if err := validateTemplateContent(content); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	// 3. Write
	//nolint:gosec // G301: the Updraftfile lives under the user's config dir
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(outputPath), err)
	}
	//nolint:gosec // G306: the Updraftfile holds no secrets
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write Updraftfile: %w", err)
	}

	if !quiet {
		_, _ = fmt.Fprintf(stdout, "Created %s\n", outputPath)
		if names := defaultedPlaceholders(raw); len(names) > 0 {
			_, _ = fmt.Fprintf(stdout, "Defaults used for %s\n", strings.Join(names, ", "))
		}
		_, _ = fmt.Fprintln(stdout, "\nNext steps:")
		_, _ = fmt.Fprintln(stdout, "  1. Set app.version and appcast_url for your application")
		_, _ = fmt.Fprintln(stdout, "  2. Run 'updraft check' to test the feed")
		_, _ = fmt.Fprintln(stdout, "  3. Run 'updraft watch --enable' to check periodically")
	}
	return nil
}

// defaultedPlaceholders names the placeholders the environment left empty.
func defaultedPlaceholders(content []byte) []string {
	var names []string
	for _, p := range templates.Placeholders(content) {
		if os.Getenv(p.Name) == "" {
			names = append(names, p.Name)
		}
	}
	return names
}

// fetchRemoteTemplate downloads a template over https.
func fetchRemoteTemplate(ctx context.Context, rawURL string) ([]byte, error) {
	if err := (update.URLPolicy{}).Check(rawURL, "template"); err != nil {
		return nil, err
	}
	sink := &download.StringSink{MaxSize: 1 << 20}
	if err := download.NewHTTPDownloader().Download(ctx, rawURL, sink); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// validateTemplateContent loads content through the normal Updraftfile path.
func validateTemplateContent(content []byte) error {
	tmpFile, err := os.CreateTemp("", "updraftfile-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	_, err = config.Load(tmpName)
	return err
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
