// Package sniffer classifies transport payloads into application protocols.
//
// Every sniffer is a pure function over the payload: it either returns a
// value or one of core.ErrWrongProtocol, core.ErrParsing, core.ErrInvalidPacket,
// and never keeps state between calls. That makes trying them one after the
// other deterministic.
package sniffer

import (
	"unicode/utf8"

	"firestige.xyz/sniffer/internal/core"
)

// Ports carries the transport ports of the segment being sniffed.
type Ports struct {
	Src uint16
	Dst uint16
}

// Has reports whether either side uses port p.
func (p Ports) Has(port uint16) bool {
	return p.Src == port || p.Dst == port
}

// Sniffer recognises one application protocol.
type Sniffer interface {
	Name() string
	Sniff(payload []byte, ports Ports) (core.Application, error)
}

// SnifferFunc adapts a plain function to Sniffer.
type SnifferFunc struct {
	name string
	fn   func(payload []byte) (core.Application, error)
}

// Func wraps fn as a Sniffer that ignores ports.
func Func(name string, fn func(payload []byte) (core.Application, error)) Sniffer {
	return SnifferFunc{name: name, fn: fn}
}

func (s SnifferFunc) Name() string { return s.name }

func (s SnifferFunc) Sniff(payload []byte, _ Ports) (core.Application, error) {
	return s.fn(payload)
}

type portGated struct {
	Sniffer
	ports []uint16
}

// OnPorts restricts s to segments where either side uses one of ports.
func OnPorts(s Sniffer, ports ...uint16) Sniffer {
	return portGated{Sniffer: s, ports: ports}
}

func (g portGated) Sniff(payload []byte, ports Ports) (core.Application, error) {
	for _, p := range g.ports {
		if ports.Has(p) {
			return g.Sniffer.Sniff(payload, ports)
		}
	}
	return nil, core.ErrWrongProtocol
}

// Chain tries its sniffers in order. The first success wins; when none
// matches the payload becomes Text if it is valid UTF-8 and Binary otherwise.
type Chain []Sniffer

// Classify returns the application layer for payload. It never fails.
func (c Chain) Classify(payload []byte, ports Ports) core.Application {
	if len(payload) == 0 {
		return &core.Empty{}
	}
	for _, s := range c {
		if app, err := s.Sniff(payload, ports); err == nil {
			return app
		}
	}
	if utf8.Valid(payload) {
		return &core.Text{Text: string(payload)}
	}
	return &core.Binary{Data: payload}
}

// Well-known ports for the UDP sniffers.
const (
	PortDNS            uint16 = 53
	PortMDNS           uint16 = 5353
	PortDHCPServer     uint16 = 67
	PortDHCPClient     uint16 = 68
	PortSSDP           uint16 = 1900
	PortDropboxLANSync uint16 = 17500
)

// TCP is the fixed chain for TCP payloads: HTTP, then TLS, then the beacon.
var TCP = Chain{
	Func("http", HTTP),
	Func("tls", TLS),
	Func("dropbox", DropboxBeacon),
}

// UDP is the fixed chain for UDP payloads.
var UDP = Chain{
	OnPorts(Func("dns", DNS), PortDNS, PortMDNS),
	OnPorts(Func("dhcp", DHCP), PortDHCPServer, PortDHCPClient),
	OnPorts(Func("ssdp", SSDP), PortSSDP),
	OnPorts(Func("dropbox", DropboxBeacon), PortDropboxLANSync),
}
