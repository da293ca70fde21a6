package sniffer

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/sniffer/internal/core"
)

// dhcpFixedLen is the BOOTP header plus the magic cookie.
const dhcpFixedLen = 240

// DHCP decodes a BOOTP/DHCPv4 message with gopacket's DHCPv4 layer, which
// rejects payloads without the magic cookie.
func DHCP(payload []byte) (core.Application, error) {
	if len(payload) < dhcpFixedLen {
		return nil, core.ErrParsing
	}
	// layers.DHCPv4 slices chaddr with uint8 arithmetic; check in int first.
	if 28+int(payload[2]) > len(payload) {
		return nil, core.ErrParsing
	}

	var d layers.DHCPv4
	if err := d.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		return nil, core.ErrParsing
	}

	out := &core.DHCP{
		Operation: d.Operation.String(),
		ClientMAC: d.ClientHWAddr.String(),
	}
	if d.ClientIP != nil && !d.ClientIP.IsUnspecified() {
		out.ClientIP = d.ClientIP.String()
	}
	if d.YourClientIP != nil && !d.YourClientIP.IsUnspecified() {
		out.YourIP = d.YourClientIP.String()
	}
	for _, opt := range d.Options {
		switch opt.Type {
		case layers.DHCPOptMessageType:
			if len(opt.Data) == 1 {
				out.MessageType = layers.DHCPMsgType(opt.Data[0]).String()
			}
		case layers.DHCPOptHostname:
			out.Hostname = string(opt.Data)
		}
	}
	return out, nil
}
