package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/update"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove installer downloads left by earlier update attempts",
		Long: `Cleanup deletes the download directory recorded by the last update attempt
and any other updraft download directory under temp_root. Every check does
this before downloading; the command is for hosts that want it done sooner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := loadUpdraftfile(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(file)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			if err := update.CleanLeftovers(store, file.TempRoot); err != nil {
				return fmt.Errorf("failed to clean up downloads: %w", err)
			}
			if !quiet {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Leftover downloads removed.")
			}
			return nil
		},
	}
}
