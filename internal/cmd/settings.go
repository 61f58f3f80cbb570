package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/output"
	"github.com/adamancini/updraft/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change persisted update settings",
		Long: `Settings reads and writes the values update checks keep between runs.

Keys:
  CheckForUpdates   true to let watch check periodically
  AutomaticInstall  true when the host installs updates without asking
  UpdateInterval    seconds between periodic checks (minimum 3600)
  SkipThisVersion   release version that is no longer offered
  LastCheckTime     unix time of the last check
  UpdateTempDir     download directory of the last attempt

Examples:
  updraft settings list
  updraft settings get LastCheckTime
  updraft settings set CheckForUpdates true
  updraft settings set SkipThisVersion ""   # clear`,
	}

	cmd.AddCommand(newSettingsListCmd())
	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())

	return cmd
}

func newSettingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store settings.Store, w *output.Writer) error {
				list := make(output.SettingsList, 0, len(settings.AllKeys()))
				for _, key := range settings.AllKeys() {
					s, err := readSetting(store, key)
					if err != nil {
						return err
					}
					list = append(list, s)
				}
				return w.Write(list)
			})
		},
	}
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get KEY",
		Short:             "Show one setting",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSettingKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := canonicalKey(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, func(store settings.Store, w *output.Writer) error {
				s, err := readSetting(store, key)
				if err != nil {
					return err
				}
				return w.Write(s)
			})
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "set KEY VALUE",
		Short:             "Change one setting; an empty value clears it",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeSettingKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := canonicalKey(args[0])
			if err != nil {
				return err
			}
			value, err := normalizeValue(key, args[1])
			if err != nil {
				return err
			}
			return withStore(cmd, func(store settings.Store, w *output.Writer) error {
				if err := store.Write(key, value); err != nil {
					return fmt.Errorf("failed to write %s: %w", key, err)
				}
				return w.Write(output.Setting{Key: key, Value: value, Set: value != ""})
			})
		},
	}
}

// withStore loads the Updraftfile, opens its store and runs fn.
func withStore(cmd *cobra.Command, fn func(settings.Store, *output.Writer) error) error {
	writer, err := newWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	file, err := loadUpdraftfile(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(file)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	return fn(store, writer)
}

func readSetting(store settings.Store, key string) (output.Setting, error) {
	value, ok, err := store.Read(key)
	if err != nil {
		return output.Setting{}, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return output.Setting{Key: key, Value: value, Set: ok}, nil
}

// canonicalKey matches key case-insensitively against the known keys.
func canonicalKey(key string) (string, error) {
	for _, known := range settings.AllKeys() {
		if strings.EqualFold(key, known) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(settings.AllKeys(), ", "))
}

// normalizeValue checks a value against the type its key holds.
func normalizeValue(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	switch key {
	case settings.KeyCheckForUpdates, settings.KeyAutomaticInstall:
		b, err := settings.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%s must be true or false (or yes/no), got %q", key, value)
		}
		return strconv.FormatBool(b), nil
	case settings.KeyUpdateInterval, settings.KeyLastCheckTime:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
		}
		return strconv.FormatInt(n, 10), nil
	}
	return value, nil
}

func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return settings.AllKeys(), cobra.ShellCompDirectiveNoFileComp
}
