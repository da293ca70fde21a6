// Package source opens capture handles and reads frames from them.
package source

import (
	"errors"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	DefaultSnapLen = 65535
	DefaultTimeout = 100 * time.Millisecond
)

// ErrTimeout is returned by ReadFrame when no frame arrived within the read
// timeout. Callers should simply read again.
var ErrTimeout = errors.New("source: read timeout")

// Source yields raw link-layer frames. The returned slice is only valid until
// the next call to ReadFrame; callers that keep it must copy it.
//
// ReadFrame returns io.EOF at the end of a capture file.
type Source interface {
	ReadFrame() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	Close() error
}

// Options configures a capture handle.
type Options struct {
	Device  string
	SnapLen int
	Promisc bool
	Timeout time.Duration
	Filter  string // BPF expression, empty for none

	// AF_PACKET only
	BufferSizeMB int
	FanoutID     uint16
}

func (o Options) withDefaults() Options {
	if o.SnapLen <= 0 {
		o.SnapLen = DefaultSnapLen
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.BufferSizeMB <= 0 {
		o.BufferSizeMB = 8
	}
	return o
}
