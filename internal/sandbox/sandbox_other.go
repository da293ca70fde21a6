//go:build !linux

package sandbox

import "errors"

func stage1() error { return nil }

func stage2(opts Options) error {
	return errors.New("sandbox: dropping privileges is only supported on linux")
}
