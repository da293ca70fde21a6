//go:build linux && cgo

package sandbox

/*
#include <errno.h>
#include <sys/prctl.h>

static int nnp_errno = -1;

// Runs before the Go runtime starts its first thread, so every thread
// inherits the bit.
__attribute__((constructor)) static void sandbox_no_new_privs(void) {
	nnp_errno = prctl(PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0) == 0 ? 0 : errno;
}

static int sandbox_nnp_errno(void) { return nnp_errno; }
*/
import "C"

import (
	"errors"
	"syscall"
)

// noNewPrivs reports the result of the prctl issued at process start.
// AllThreadsSyscall is unavailable once cgo is linked in.
func noNewPrivs() error {
	switch errno := int(C.sandbox_nnp_errno()); errno {
	case 0:
		return nil
	case -1:
		return errors.New("startup hook did not run")
	default:
		return syscall.Errno(errno)
	}
}
