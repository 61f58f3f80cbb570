//go:build unix

package update

import (
	"errors"
	"syscall"
)

// detachedProcAttr starts the installer in its own session.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// pidAlive sends signal 0 to pid. EPERM still means the process exists.
func pidAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
