// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Decode failures are recovered inside the cascade and never
// leave a worker; the remaining ones are fatal at startup or end a capture.
var (
	// Cascade errors
	ErrPacketTooShort = errors.New("sniffer: packet too short")
	ErrWrongProtocol  = errors.New("sniffer: wrong protocol")
	ErrParsing        = errors.New("sniffer: parsing error")
	ErrInvalidPacket  = errors.New("sniffer: invalid packet")

	// Session errors
	ErrUnsupportedLinkType = errors.New("sniffer: unsupported link type")
	ErrPipelineRunning     = errors.New("sniffer: pipeline already running")

	// Configuration errors
	ErrConfigInvalid = errors.New("sniffer: invalid configuration")
)

// UnsupportedLinkTypeError reports a capture link type the cascade cannot frame.
type UnsupportedLinkTypeError struct {
	Code        int
	Name        string
	Description string
}

func (e *UnsupportedLinkTypeError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("sniffer: unsupported link type %d (%s)", e.Code, e.Name)
	}
	return fmt.Sprintf("sniffer: unsupported link type %d (%s: %s)", e.Code, e.Name, e.Description)
}

// Unwrap allows errors.Is(err, ErrUnsupportedLinkType).
func (e *UnsupportedLinkTypeError) Unwrap() error {
	return ErrUnsupportedLinkType
}
