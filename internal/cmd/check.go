package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adamancini/updraft/internal/interactive"
	"github.com/adamancini/updraft/internal/output"
	"github.com/adamancini/updraft/internal/settings"
	"github.com/adamancini/updraft/internal/types"
	"github.com/adamancini/updraft/internal/update"
)

// Replaced in tests.
var (
	newPrompter = func(in io.Reader, out io.Writer) *interactive.Prompter {
		return interactive.NewPrompterWithIO(in, out)
	}
	isTerminal = interactive.IsTerminal
)

func newCheckCmd() *cobra.Command {
	var (
		interactiveMode bool
		honorSkip       bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the appcast once for a newer release",
		Long: `Check downloads the appcast named in the Updraftfile and compares the newest
release for this platform with app.version.

If the release is marked for silent installation it is downloaded, its
signature verified and the installer launched. Otherwise the release is
reported; with --interactive you are asked whether to install it now, skip
this version or be reminded later.

A manual check ignores the skipped version unless --honor-skip is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCheck(ctx, cmd, interactiveMode, honorSkip)
		},
	}

	cmd.Flags().BoolVarP(&interactiveMode, "interactive", "i", false, "Prompt to install, skip or postpone an available update")
	cmd.Flags().BoolVar(&honorSkip, "honor-skip", false, "Respect the skipped version like a scheduled check")

	return cmd
}

// runCheck executes a single update session.
func runCheck(ctx context.Context, cmd *cobra.Command, interactiveMode, honorSkip bool) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	writer, err := newWriter(stdout)
	if err != nil {
		return err
	}

	// 1. Load Updraftfile and settings
	file, err := loadUpdraftfile(stderr)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(file)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	// 2. Wire the checker. Structured output keeps stdout for the report.
	notifierOut := stdout
	if writer.Format().IsStructured() {
		notifierOut = stderr
	}
	var opts []output.NotifierOption
	if quiet || writer.Format().IsStructured() {
		opts = append(opts, output.Quiet())
	}
	notifier := output.NewConsoleNotifier(notifierOut, file.App.Version, opts...)
	if interactiveMode {
		// the prompt shows the offer itself
		notifier.SetQuiet(true)
	}

	checker, err := buildChecker(file, store, notifier)
	if err != nil {
		return err
	}

	// 3. Check
	checkOpts := update.CheckOptions{Manual: true, Skip: update.ManualSkipOverride{}}
	if honorSkip {
		checkOpts.Skip = update.HonorSkipList{Store: store}
	}
	res, err := checker.Check(ctx, checkOpts)

	// 4. Let the user decide
	if err == nil && interactiveMode && res.Decision == update.NotifyUser {
		notifier.SetQuiet(quiet || writer.Format().IsStructured())
		var installed *update.Result
		installed, err = promptForUpdate(ctx, cmd, checker, store, res.Appcast, file.App.Version)
		if installed != nil {
			res = installed
		}
	}

	// 5. Report
	if writer.Format() != types.OutputText || verbose {
		if werr := writer.Write(output.NewCheckReport(file.App.Version, res, err)); werr != nil {
			return fmt.Errorf("failed to write output: %w", werr)
		}
	}
	switch {
	case err == nil:
		return nil
	case update.KindOf(err) == update.KindUnknown:
		// not from a session, so the notifier never saw it
		return err
	default:
		return reportedError{err}
	}
}

// promptForUpdate asks whether to install an available update. It returns
// the install session result when the user accepted.
func promptForUpdate(ctx context.Context, cmd *cobra.Command, checker *update.Checker, store settings.Store, a update.Appcast, current string) (*update.Result, error) {
	if !isTerminal() {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: --interactive requires a terminal; not prompting.")
		return nil, nil
	}

	prompter := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	switch prompter.AskUpdate(a, current) {
	case interactive.ResponseInstall:
		return checker.Install(ctx, a)
	case interactive.ResponseSkip:
		if err := store.Write(settings.KeySkipThisVersion, a.Version); err != nil {
			return nil, fmt.Errorf("failed to skip version %s: %w", a.Version, err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Version %s will not be offered again.\n", a.DisplayVersion())
		}
	default:
		log.Debugw("update postponed", "version", a.Version)
	}
	return nil, nil
}
