package cmd

import (
	"fmt"
	"io"

	logging "github.com/ipfs/go-log/v2"

	"github.com/adamancini/updraft/internal/appcast"
	"github.com/adamancini/updraft/internal/config"
	"github.com/adamancini/updraft/internal/output"
	"github.com/adamancini/updraft/internal/settings"
	"github.com/adamancini/updraft/internal/types"
	"github.com/adamancini/updraft/internal/update"
)

var log = logging.Logger("updraft/cmd")

// loadUpdraftfile finds and loads the Updraftfile named by --config or
// the standard search path.
func loadUpdraftfile(w io.Writer) (*config.Updraftfile, error) {
	path, err := config.FindUpdraftfile(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		_, _ = fmt.Fprintf(w, "Using Updraftfile: %s\n", path)
	}
	return config.Load(path)
}

// openStore opens the settings backend the Updraftfile selects. The
// returned close function is never nil.
func openStore(file *config.Updraftfile) (settings.Store, func() error, error) {
	noop := func() error { return nil }

	backend := file.Store.Backend.Default()
	if backend == types.StoreMemory {
		return settings.NewMemory(), noop, nil
	}

	path, err := file.StorePath()
	if err != nil {
		return nil, noop, err
	}
	log.Debugw("opening settings store", "backend", backend, "path", path)

	switch backend {
	case types.StoreSQLite:
		store, err := settings.OpenSQLite(path)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return settings.NewFileStore(path), noop, nil
	}
}

// buildChecker wires the checker's collaborators from the Updraftfile.
func buildChecker(file *config.Updraftfile, store settings.Store, notifier update.Notifier) (*update.Checker, error) {
	verifier, err := update.NewVerifier(file.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key: %w", err)
	}

	return update.NewChecker(file.CheckerConfig(), store,
		update.WithFeedParser(appcast.NewParser()),
		update.WithVerifier(verifier),
		update.WithLauncher(update.ProcessLauncher{Args: file.InstallerArgs}),
		update.WithNotifier(notifier),
	), nil
}

// newWriter returns an output writer for the --output flag.
func newWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}
