package cmd

import (
	"errors"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	verbose      bool
	quiet        bool

	// Build information injected by main
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// reportedError marks an error the console notifier already showed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported reports whether err was already printed to the user.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

func Execute(version, commit, date string) error {
	buildVersion, buildCommit, buildDate = version, commit, date
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "updraft",
		Short: "Appcast-driven update checker",
		Long: `updraft checks an appcast feed for a newer release of your application,
downloads the installer, verifies its signature and launches it.

Describe the application in an Updraftfile, then run updraft check or updraft watch.`,
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setLogLevel()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to Updraftfile")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newCompareCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// setLogLevel maps --verbose and --quiet onto every updraft logger.
func setLogLevel() error {
	if verbose && quiet {
		return errors.New("--verbose and --quiet are mutually exclusive")
	}
	level := "warn"
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	return logging.SetLogLevel("*", level)
}
