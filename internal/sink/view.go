package sink

import (
	"time"

	"firestige.xyz/sniffer/internal/core"
)

// Node is one layer of a packet rendered for JSON or YAML output.
type Node struct {
	Type   string `json:"type" yaml:"type"`
	Header any    `json:"header,omitempty" yaml:"header,omitempty"`
	Next   *Node  `json:"next,omitempty" yaml:"next,omitempty"`
}

// Document is a whole record for structured output.
type Document struct {
	Seq       uint64    `json:"seq" yaml:"seq"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Length    int       `json:"length" yaml:"length"`
	Packet    *Node     `json:"packet" yaml:"packet"`
}

// NewDocument converts rec into its structured form.
func NewDocument(rec core.Record) Document {
	return Document{
		Seq:       rec.Seq,
		Timestamp: rec.Timestamp,
		Length:    rec.Length,
		Packet:    PacketNode(rec.Packet),
	}
}

type dataHeader struct {
	Data []byte `json:"data" yaml:"data"`
}

type unknownNetworkHeader struct {
	EtherType uint16 `json:"ether_type" yaml:"ether_type"`
	Data      []byte `json:"data" yaml:"data"`
}

type unknownTransportHeader struct {
	Protocol uint8  `json:"protocol" yaml:"protocol"`
	Data     []byte `json:"data" yaml:"data"`
}

// PacketNode walks the packet tree top down.
func PacketNode(p core.Packet) *Node {
	switch p := p.(type) {
	case *core.Raw:
		return &Node{Type: "raw", Header: dataHeader{Data: p.Data}}
	case *core.Link:
		n := linkNode(p.Header)
		n.Next = networkNode(p.Next)
		return n
	}
	return nil
}

func linkNode(h core.LinkHeader) *Node {
	switch h := h.(type) {
	case core.EthernetHeader:
		return &Node{Type: "ether", Header: h}
	case core.CookedHeader:
		return &Node{Type: "sll", Header: h}
	case core.RawIPHeader:
		return &Node{Type: "rawip", Header: h}
	}
	return &Node{Type: "link"}
}

func networkNode(n core.Network) *Node {
	switch n := n.(type) {
	case *core.IPv4:
		return &Node{Type: "ipv4", Header: n.Header, Next: transportNode(n.Next)}
	case *core.IPv6:
		return &Node{Type: "ipv6", Header: n.Header, Next: transportNode(n.Next)}
	case *core.ARP:
		return &Node{Type: "arp", Header: n.Header}
	case *core.UnknownNetwork:
		return &Node{Type: "unknown", Header: unknownNetworkHeader{EtherType: n.EtherType, Data: n.Data}}
	}
	return nil
}

func transportNode(t core.Transport) *Node {
	switch t := t.(type) {
	case *core.TCP:
		return &Node{Type: "tcp", Header: t.Header, Next: applicationNode(t.Next)}
	case *core.UDP:
		return &Node{Type: "udp", Header: t.Header, Next: applicationNode(t.Next)}
	case *core.UnknownTransport:
		return &Node{Type: "unknown", Header: unknownTransportHeader{Protocol: t.Protocol, Data: t.Data}}
	}
	return nil
}

func applicationNode(a core.Application) *Node {
	switch a := a.(type) {
	case *core.HTTPRequest:
		return &Node{Type: "http", Header: a}
	case *core.TLSClientHello:
		return &Node{Type: "tls", Header: a}
	case *core.DropboxBeacon:
		return &Node{Type: "dropbox", Header: a}
	case *core.DNS:
		return &Node{Type: "dns", Header: a}
	case *core.DHCP:
		return &Node{Type: "dhcp", Header: a}
	case *core.SSDP:
		return &Node{Type: "ssdp", Header: a}
	case *core.Text:
		return &Node{Type: "text", Header: a}
	case *core.Binary:
		return &Node{Type: "binary", Header: dataHeader{Data: a.Data}}
	case *core.Empty:
		return &Node{Type: "empty"}
	}
	return nil
}
