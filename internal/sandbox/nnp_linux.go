//go:build linux && !cgo

package sandbox

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func noNewPrivs() error {
	if _, _, errno := syscall.AllThreadsSyscall(unix.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0); errno != 0 {
		return errno
	}
	return nil
}
