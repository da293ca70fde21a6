// Package sandbox reduces process privileges in two steps: Stage1 before any
// capture handle is opened, Stage2 once the handle is held.
package sandbox

import (
	"fmt"
	"os/user"
	"strconv"

	"firestige.xyz/sniffer/internal/log"
)

// Options configures Stage2.
type Options struct {
	User   string `mapstructure:"user"`   // account to switch to, empty keeps the current one
	Chroot string `mapstructure:"chroot"` // directory to confine the process to, empty for none
}

type credentials struct {
	uid, gid int
	groups   []int
}

func lookup(name string) (credentials, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return credentials{}, fmt.Errorf("sandbox: lookup user %q: %w", name, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return credentials{}, fmt.Errorf("sandbox: uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return credentials{}, fmt.Errorf("sandbox: gid %q: %w", u.Gid, err)
	}
	return credentials{uid: uid, gid: gid, groups: []int{gid}}, nil
}

// Stage1 applies restrictions that do not affect opening the capture handle.
// no_new_privs covers every thread of the process. In cgo builds it is set
// before the runtime starts, and Stage1 reports whether that succeeded.
func Stage1() error {
	if err := stage1(); err != nil {
		return err
	}
	log.GetLogger().Debug("sandbox stage 1 applied")
	return nil
}

// Stage2 drops to opts.User, optionally inside opts.Chroot.
func Stage2(opts Options) error {
	if opts.User == "" && opts.Chroot == "" {
		return nil
	}
	if err := stage2(opts); err != nil {
		return err
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"user":   opts.User,
		"chroot": opts.Chroot,
	}).Info("privileges dropped")
	return nil
}
