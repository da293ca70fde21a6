// Package decoder implements the link-to-application decoding cascade.
//
// Decode is a pure function: it never blocks, never panics on malformed
// input and never reads outside the frame. Each layer is entered only when
// the layer below produced a valid header; when a layer cannot be read the
// remaining bytes are kept verbatim in the fallback variant for that
// position.
package decoder

import (
	"firestige.xyz/sniffer/internal/core"
	"firestige.xyz/sniffer/internal/core/sniffer"
)

// Decode turns one captured frame into a packet tree.
func Decode(data []byte, link core.LinkStrategy) core.Packet {
	header, etherType, rest, err := stripLink(data, link)
	if err != nil {
		return &core.Raw{Data: data}
	}
	return &core.Link{
		Header: header,
		Next:   decodeNetwork(etherType, rest),
	}
}

func decodeNetwork(etherType uint16, data []byte) core.Network {
	switch etherType {
	case core.EtherTypeIPv4:
		ip, rest, err := decodeIPv4(data)
		if err != nil {
			break
		}
		return &core.IPv4{Header: ip, Next: decodeTransport(ip.Protocol, rest)}
	case core.EtherTypeIPv6:
		ip, rest, err := decodeIPv6(data)
		if err != nil {
			break
		}
		return &core.IPv6{Header: ip, Next: decodeTransport(ip.NextHeader, rest)}
	case core.EtherTypeARP:
		arp, err := decodeARP(data)
		if err != nil {
			break
		}
		return &core.ARP{Header: arp}
	}
	return &core.UnknownNetwork{EtherType: etherType, Data: data}
}

func decodeTransport(protocol uint8, data []byte) core.Transport {
	switch protocol {
	case core.ProtocolTCP:
		tcp, rest, err := decodeTCP(data)
		if err != nil {
			break
		}
		ports := sniffer.Ports{Src: tcp.SrcPort, Dst: tcp.DstPort}
		return &core.TCP{Header: tcp, Next: sniffer.TCP.Classify(rest, ports)}
	case core.ProtocolUDP:
		udp, rest, err := decodeUDP(data)
		if err != nil {
			break
		}
		ports := sniffer.Ports{Src: udp.SrcPort, Dst: udp.DstPort}
		return &core.UDP{Header: udp, Next: sniffer.UDP.Classify(rest, ports)}
	}
	return &core.UnknownTransport{Protocol: protocol, Data: data}
}
