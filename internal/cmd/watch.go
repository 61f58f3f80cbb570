package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/output"
	"github.com/adamancini/updraft/internal/settings"
	"github.com/adamancini/updraft/internal/update"
)

func newWatchCmd() *cobra.Command {
	var enable bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check for updates periodically until interrupted",
		Long: `Watch runs the periodic update check in the background and blocks until
interrupted. A check runs whenever check_interval has elapsed since the last
recorded check, and only while CheckForUpdates is enabled in the settings.

Failed checks are logged and retried at the next interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, enable)
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "Turn on CheckForUpdates before watching")

	return cmd
}

// runWatch drives the periodic strategy on its own thread.
func runWatch(cmd *cobra.Command, enable bool) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	file, err := loadUpdraftfile(stderr)
	if err != nil {
		return err
	}
	interval, err := file.CheckIntervalDuration()
	if err != nil {
		return fmt.Errorf("invalid check_interval: %w", err)
	}
	pollQuantum, err := file.PollIntervalDuration()
	if err != nil {
		return fmt.Errorf("invalid poll_interval: %w", err)
	}

	store, closeStore, err := openStore(file)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	if enable {
		if err := settings.WriteBool(store, settings.KeyCheckForUpdates, true); err != nil {
			return fmt.Errorf("failed to enable update checks: %w", err)
		}
	}
	enabled, err := settings.ReadBool(store, settings.KeyCheckForUpdates, false)
	if err != nil {
		return err
	}
	if !enabled && !quiet {
		_, _ = fmt.Fprintf(stderr, "Warning: %s is off; no checks will run. Use --enable to turn it on.\n", settings.KeyCheckForUpdates)
	}

	var opts []output.NotifierOption
	if quiet {
		opts = append(opts, output.Quiet())
	}
	checker, err := buildChecker(file, store, output.NewConsoleNotifier(stdout, file.App.Version, opts...))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strategy := &update.Periodic{
		Checker:     checker,
		Interval:    interval,
		PollQuantum: pollQuantum,
	}
	thread := update.Start(ctx, "watch", strategy)
	log.Infow("watching for updates", "interval", strategy.CheckInterval(), "feed", file.AppcastURL)

	<-thread.Done()
	return thread.Join()
}
