package update

import (
	"fmt"
	"os/exec"
)

// DefaultInstallerArgs request an unattended install that neither reboots
// nor prompts for a reboot.
var DefaultInstallerArgs = []string{"/s", "REBOOT=ReallySuppress", "REBOOTPROMPT=Suppress"}

// ProcessLauncher starts an installer as a detached process
type ProcessLauncher struct {
	Args []string // Defaults to DefaultInstallerArgs when nil
}

// Launch starts the installer at path. The child is detached so it
// outlives this process, and its handle is released immediately.
func (l ProcessLauncher) Launch(path string) error {
	if path == "" {
		return newError(KindProcessLaunch, "no installer to launch", nil)
	}

	args := l.Args
	if args == nil {
		args = DefaultInstallerArgs
	}

	//nolint:gosec // G204: path is a verified installer we downloaded
	cmd := exec.Command(path, args...)
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return newError(KindProcessLaunch, fmt.Sprintf("failed to start installer %s", path), err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		log.Warnw("failed to release installer process", "pid", pid, "error", err)
	}

	log.Infow("installer launched", "path", path, "pid", pid)
	return nil
}
