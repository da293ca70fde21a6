package filter

import (
	"net/netip"

	"firestige.xyz/sniffer/internal/core"
)

// LocalOnly keeps IPv4 packets addressed to Addr and drops everything else.
type LocalOnly struct {
	Addr netip.Addr
}

func (f LocalOnly) Filter(rec *core.Record, chain *Chain) {
	ip, ok := core.NetworkOf(rec.Packet).(*core.IPv4)
	if !ok || ip.Header.DstIP != f.Addr {
		return
	}
	chain.Filter(rec)
}
