package update

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/adamancini/updraft/internal/settings"
)

// TempDirPrefix names every directory an update download is written to.
const TempDirPrefix = "updraft-"

// CreateUniqueTempDirectory creates a fresh download directory under root
// (os.TempDir() when empty). The name combines the process id and the
// current time so that concurrent checkers never share a directory.
func CreateUniqueTempDirectory(root string) (string, error) {
	if root == "" {
		root = os.TempDir()
	}

	base := fmt.Sprintf("%s%d-%d", TempDirPrefix, os.Getpid(), time.Now().UnixNano())
	for attempt := 0; attempt < 100; attempt++ {
		dir := filepath.Join(root, base)
		if attempt > 0 {
			dir = fmt.Sprintf("%s-%d", dir, attempt)
		}
		err := os.Mkdir(dir, 0700)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", newError(KindFilesystem, "failed to create temporary directory", err)
		}
	}
	return "", newError(KindFilesystem, "failed to create a unique temporary directory", nil)
}

// processAlive reports whether pid names a running process.
var processAlive = pidAlive

// CleanLeftovers removes download directories left behind by earlier
// attempts: the one recorded in the store and any other prefixed
// directory under root whose owning process has exited. Directories of
// running processes, this one included, are kept. Running it again is a
// no-op.
func CleanLeftovers(store settings.Store, root string) error {
	if root == "" {
		root = os.TempDir()
	}

	var result *multierror.Error

	// 1. Directory recorded by the previous attempt
	if store != nil {
		recorded, ok, err := store.Read(settings.KeyUpdateTempDir)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to read %s: %w", settings.KeyUpdateTempDir, err))
		} else if ok {
			if err := removeLeftover(recorded); err != nil {
				result = multierror.Append(result, err)
			} else if err := store.Write(settings.KeyUpdateTempDir, ""); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to clear %s: %w", settings.KeyUpdateTempDir, err))
			}
		}
	}

	// 2. Any other prefixed directory under root
	matches, err := filepath.Glob(filepath.Join(root, TempDirPrefix+"*"))
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to scan %s: %w", root, err))
	}
	for _, match := range matches {
		if pid, ok := ownerPID(match); ok && (pid == os.Getpid() || processAlive(pid)) {
			log.Debugw("keeping download of running process", "dir", match, "pid", pid)
			continue
		}
		if err := removeLeftover(match); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return newError(KindFilesystem, "failed to clean update leftovers", err)
	}
	return nil
}

// ownerPID extracts the process id CreateUniqueTempDirectory put in the
// directory name.
func ownerPID(dir string) (int, bool) {
	rest, ok := strings.CutPrefix(filepath.Base(dir), TempDirPrefix)
	if !ok {
		return 0, false
	}
	field, _, _ := strings.Cut(rest, "-")
	pid, err := strconv.Atoi(field)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func removeLeftover(dir string) error {
	if !strings.HasPrefix(filepath.Base(dir), TempDirPrefix) {
		return fmt.Errorf("refusing to remove %s: not an update directory", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	log.Debugw("removed update leftovers", "dir", dir)
	return nil
}
