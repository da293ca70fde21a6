//go:build !linux

package source

import "errors"

// OpenAFPacket is only available on Linux.
func OpenAFPacket(Options) (Source, error) {
	return nil, errors.New("af_packet capture is only supported on linux")
}
