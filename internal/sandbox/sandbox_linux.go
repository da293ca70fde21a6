//go:build linux

package sandbox

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func stage1() error {
	if err := noNewPrivs(); err != nil {
		return fmt.Errorf("sandbox: set no_new_privs: %w", err)
	}
	return nil
}

// stage2 resolves the user before chroot since /etc/passwd may be outside it.
// The credential calls go through package syscall, which applies them to
// every thread of the process.
func stage2(opts Options) error {
	var creds *credentials
	if opts.User != "" {
		c, err := lookup(opts.User)
		if err != nil {
			return err
		}
		creds = &c
	}

	if opts.Chroot != "" {
		if err := unix.Chroot(opts.Chroot); err != nil {
			return fmt.Errorf("sandbox: chroot %s: %w", opts.Chroot, err)
		}
		if err := unix.Chdir("/"); err != nil {
			return fmt.Errorf("sandbox: chdir: %w", err)
		}
	}

	if creds == nil {
		return nil
	}
	if err := syscall.Setgroups(creds.groups); err != nil {
		return fmt.Errorf("sandbox: setgroups: %w", err)
	}
	if err := syscall.Setgid(creds.gid); err != nil {
		return fmt.Errorf("sandbox: setgid %d: %w", creds.gid, err)
	}
	if err := syscall.Setuid(creds.uid); err != nil {
		return fmt.Errorf("sandbox: setuid %d: %w", creds.uid, err)
	}
	return nil
}
