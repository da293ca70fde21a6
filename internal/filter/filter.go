// Package filter decides which decoded packets reach the sinks.
package filter

import (
	"go.uber.org/atomic"

	"firestige.xyz/sniffer/internal/core"
)

// MaxVerbosity shows every packet, including frames that did not decode.
const MaxVerbosity = 4

// Filter inspects a record and passes it down the chain, or drops it by
// returning without calling chain.Filter.
type Filter interface {
	Filter(rec *core.Record, chain *Chain)
}

// Policy is the output policy: a packet is shown when its noise level does
// not exceed Verbosity.
type Policy struct {
	Verbosity int
}

// Matches reports whether p should be shown under the policy.
func (p Policy) Matches(pkt core.Packet) bool {
	return NoiseLevel(pkt) <= p.Verbosity
}

func (p Policy) Filter(rec *core.Record, chain *Chain) {
	if p.Matches(rec.Packet) {
		chain.Filter(rec)
	}
}

// NoiseLevel ranks a packet from 0 (always interesting) to 4 (undecodable).
//
//	0  HTTP request, TLS ClientHello, DNS, DHCP
//	1  ARP
//	2  text, SSDP, Dropbox beacon
//	3  binary or empty payload
//	4  raw frame, unknown network or transport
func NoiseLevel(pkt core.Packet) int {
	switch core.NetworkOf(pkt).(type) {
	case nil, *core.UnknownNetwork:
		return 4
	case *core.ARP:
		return 1
	}

	switch core.ApplicationOf(pkt).(type) {
	case *core.HTTPRequest, *core.TLSClientHello, *core.DNS, *core.DHCP:
		return 0
	case *core.Text, *core.SSDP, *core.DropboxBeacon:
		return 2
	case *core.Binary, *core.Empty:
		return 3
	}
	// UnknownTransport
	return 4
}

// Counter counts the records that reach it and passes them on. The count is
// safe to read from other goroutines.
type Counter struct {
	count atomic.Int64
}

func NewCounter() *Counter {
	return &Counter{}
}

func (f *Counter) Filter(rec *core.Record, chain *Chain) {
	f.count.Inc()
	chain.Filter(rec)
}

func (f *Counter) Count() int64 {
	return f.count.Load()
}
