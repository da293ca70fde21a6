// Package core defines protocol header types with zero external dependencies.
package core

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// LinkStrategy selects how the outermost header of a frame is stripped.
// Resolved once per capture session and shared by value afterwards.
type LinkStrategy uint8

const (
	LinkUnsupported LinkStrategy = iota
	LinkEthernet
	LinkLinuxCooked
	LinkRawIP
)

func (l LinkStrategy) String() string {
	switch l {
	case LinkEthernet:
		return "ethernet"
	case LinkLinuxCooked:
		return "linux-sll"
	case LinkRawIP:
		return "raw-ip"
	default:
		return "unsupported"
	}
}

// EtherType values used by the cascade.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeVLAN uint16 = 0x8100
	EtherTypeIPv6 uint16 = 0x86DD
	EtherTypeQinQ uint16 = 0x88A8
)

// IP protocol numbers used by the cascade.
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// MAC is a 48-bit hardware address.
type MAC [6]byte

func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

// MarshalText renders the address in colon notation.
func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	DstMAC    MAC      `json:"dst_mac" yaml:"dst_mac"`
	SrcMAC    MAC      `json:"src_mac" yaml:"src_mac"`
	EtherType uint16   `json:"ether_type" yaml:"ether_type"` // innermost type after VLAN tags
	VLANs     []uint16 `json:"vlans,omitempty" yaml:"vlans,omitempty"`
}

// CookedHeader is the 16-byte Linux "cooked" (SLL) capture header.
type CookedHeader struct {
	PacketType uint16 `json:"packet_type" yaml:"packet_type"`
	ARPHRDType uint16 `json:"arphrd_type" yaml:"arphrd_type"`
	AddrLen    uint16 `json:"addr_len" yaml:"addr_len"`
	Addr       []byte `json:"addr,omitempty" yaml:"addr,omitempty"`
	EtherType  uint16 `json:"ether_type" yaml:"ether_type"`
}

// RawIPHeader marks frames captured without any link header.
type RawIPHeader struct {
	EtherType uint16 `json:"ether_type" yaml:"ether_type"` // derived from the IP version nibble
}

// IPv4Header represents an IPv4 header. Options are kept verbatim.
type IPv4Header struct {
	Version    uint8      `json:"version" yaml:"version"`
	IHL        uint8      `json:"ihl" yaml:"ihl"` // header length in bytes
	TOS        uint8      `json:"tos" yaml:"tos"`
	TotalLen   uint16     `json:"length" yaml:"length"`
	ID         uint16     `json:"id" yaml:"id"`
	Flags      uint8      `json:"flags" yaml:"flags"`
	FragOffset uint16     `json:"fragment_offset" yaml:"fragment_offset"`
	TTL        uint8      `json:"ttl" yaml:"ttl"`
	Protocol   uint8      `json:"protocol" yaml:"protocol"`
	Checksum   uint16     `json:"checksum" yaml:"checksum"`
	SrcIP      netip.Addr `json:"source_addr" yaml:"source_addr"`
	DstIP      netip.Addr `json:"dest_addr" yaml:"dest_addr"`
	Options    []byte     `json:"options,omitempty" yaml:"options,omitempty"`
}

// IPv6Header represents the fixed 40-byte IPv6 header.
type IPv6Header struct {
	Version      uint8      `json:"version" yaml:"version"`
	TrafficClass uint8      `json:"traffic_class" yaml:"traffic_class"`
	FlowLabel    uint32     `json:"flow_label" yaml:"flow_label"`
	PayloadLen   uint16     `json:"length" yaml:"length"`
	NextHeader   uint8      `json:"next_header" yaml:"next_header"`
	HopLimit     uint8      `json:"hop_limit" yaml:"hop_limit"`
	SrcIP        netip.Addr `json:"source_addr" yaml:"source_addr"`
	DstIP        netip.Addr `json:"dest_addr" yaml:"dest_addr"`
}

// ARPHeader represents an ARP payload for Ethernet/IPv4 or any other pairing.
type ARPHeader struct {
	HardwareType uint16 `json:"hw_type" yaml:"hw_type"`
	ProtocolType uint16 `json:"proto_type" yaml:"proto_type"`
	Operation    uint16 `json:"operation" yaml:"operation"`
	SenderHW     []byte `json:"sender_hw" yaml:"sender_hw"`
	SenderProto  []byte `json:"sender_proto" yaml:"sender_proto"`
	TargetHW     []byte `json:"target_hw" yaml:"target_hw"`
	TargetProto  []byte `json:"target_proto" yaml:"target_proto"`
}

// TCPFlags holds the eight flag bits of byte 13 of the TCP header.
type TCPFlags uint8

const (
	TCPFlagFIN TCPFlags = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
)

var tcpFlagNames = [...]string{"FIN", "SYN", "RST", "PSH", "ACK", "URG", "ECE", "CWR"}

// Has reports whether all bits of f are set.
func (t TCPFlags) Has(f TCPFlags) bool {
	return t&f == f
}

func (t TCPFlags) String() string {
	var names []string
	for i, name := range tcpFlagNames {
		if t&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "|")
}

// TCPHeader represents a TCP header including raw options.
type TCPHeader struct {
	SrcPort    uint16   `json:"source_port" yaml:"source_port"`
	DstPort    uint16   `json:"dest_port" yaml:"dest_port"`
	SeqNum     uint32   `json:"sequence_no" yaml:"sequence_no"`
	AckNum     uint32   `json:"ack_no" yaml:"ack_no"`
	DataOffset uint8    `json:"data_offset" yaml:"data_offset"` // in 32-bit words
	Reserved   uint8    `json:"reserved" yaml:"reserved"`
	Flags      TCPFlags `json:"flags" yaml:"flags"`
	Window     uint16   `json:"window" yaml:"window"`
	Checksum   uint16   `json:"checksum" yaml:"checksum"`
	Urgent     uint16   `json:"urgent_pointer" yaml:"urgent_pointer"`
	Options    []byte   `json:"options,omitempty" yaml:"options,omitempty"`
}

// UDPHeader represents a UDP header.
type UDPHeader struct {
	SrcPort  uint16 `json:"source_port" yaml:"source_port"`
	DstPort  uint16 `json:"dest_port" yaml:"dest_port"`
	Length   uint16 `json:"length" yaml:"length"`
	Checksum uint16 `json:"checksum" yaml:"checksum"`
}

// Endpoint formats an address/port pair, bracketing IPv6 addresses.
func Endpoint(addr netip.Addr, port uint16) string {
	if !addr.IsValid() {
		return fmt.Sprintf("?:%d", port)
	}
	return netip.AddrPortFrom(addr, port).String()
}
