// Package core defines the decoded packet tree.
package core

import "time"

// Frame is one capture unit handed from the capture goroutine to a worker.
// Data is an owned copy; nothing else references it.
type Frame struct {
	Seq        uint64 // capture order, starting at 1
	Data       []byte
	Timestamp  time.Time
	CaptureLen int
	OrigLen    int
	Link       LinkStrategy
}

// Record is a decoded frame as delivered to the consumer.
type Record struct {
	Seq       uint64
	Timestamp time.Time
	Length    int
	Packet    Packet
}

// Packet is the top level of the decoded tree: *Raw or *Link.
type Packet interface {
	isPacket()
}

// LinkHeader is one of EthernetHeader, CookedHeader or RawIPHeader.
type LinkHeader interface {
	isLinkHeader()
}

// Network is the layer above the link: *IPv4, *IPv6, *ARP or *UnknownNetwork.
type Network interface {
	isNetwork()
}

// Transport is the layer above IP: *TCP, *UDP or *UnknownTransport.
type Transport interface {
	isTransport()
}

// Application is the payload classification produced by the sniffers.
type Application interface {
	isApplication()
}

// Raw carries a frame whose link header could not be stripped.
type Raw struct {
	Data []byte
}

// Link is a frame with a recognised link header.
type Link struct {
	Header LinkHeader
	Next   Network
}

func (*Raw) isPacket()  {}
func (*Link) isPacket() {}

func (EthernetHeader) isLinkHeader() {}
func (CookedHeader) isLinkHeader()   {}
func (RawIPHeader) isLinkHeader()    {}

// IPv4 is an IPv4 header and the decoded transport layer.
type IPv4 struct {
	Header IPv4Header
	Next   Transport
}

// IPv6 is an IPv6 header and the decoded transport layer.
type IPv6 struct {
	Header IPv6Header
	Next   Transport
}

// ARP is a fully decoded ARP payload.
type ARP struct {
	Header ARPHeader
}

// UnknownNetwork keeps the bytes following an unrecognised or invalid network header.
type UnknownNetwork struct {
	EtherType uint16
	Data      []byte
}

func (*IPv4) isNetwork()           {}
func (*IPv6) isNetwork()           {}
func (*ARP) isNetwork()            {}
func (*UnknownNetwork) isNetwork() {}

// TCP is a TCP header and the sniffed payload.
type TCP struct {
	Header TCPHeader
	Next   Application
}

// UDP is a UDP header and the sniffed payload.
type UDP struct {
	Header UDPHeader
	Next   Application
}

// UnknownTransport keeps the IP payload of an unhandled or invalid transport.
type UnknownTransport struct {
	Protocol uint8
	Data     []byte
}

func (*TCP) isTransport()              {}
func (*UDP) isTransport()              {}
func (*UnknownTransport) isTransport() {}

// HTTPRequest is a single request line plus headers.
type HTTPRequest struct {
	Method        string            `json:"method" yaml:"method"`
	Path          string            `json:"path" yaml:"path"`
	Version       string            `json:"version" yaml:"version"`
	Host          string            `json:"host,omitempty" yaml:"host,omitempty"`
	UserAgent     string            `json:"agent,omitempty" yaml:"agent,omitempty"`
	Referer       string            `json:"referer,omitempty" yaml:"referer,omitempty"`
	Authorization string            `json:"auth,omitempty" yaml:"auth,omitempty"`
	Cookies       string            `json:"cookies,omitempty" yaml:"cookies,omitempty"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Extra         map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// TLSClientHello is a TLS handshake ClientHello; Hostname is empty without SNI.
type TLSClientHello struct {
	Version      uint16 `json:"version" yaml:"version"`
	CipherSuites int    `json:"cipher_suites" yaml:"cipher_suites"`
	Hostname     string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
}

// DropboxBeacon is a Dropbox LAN sync discovery announcement.
type DropboxBeacon struct {
	Version     []int    `json:"version" yaml:"version" mapstructure:"version"`
	HostInt     string   `json:"host_int" yaml:"host_int" mapstructure:"host_int"`
	Namespaces  []uint64 `json:"namespaces" yaml:"namespaces" mapstructure:"namespaces"`
	DisplayName string   `json:"displayname" yaml:"displayname" mapstructure:"displayname"`
	Port        uint16   `json:"port" yaml:"port" mapstructure:"port"`
}

// DNS is a DNS message summary.
type DNS struct {
	ID        uint16   `json:"id" yaml:"id"`
	Response  bool     `json:"response" yaml:"response"`
	Opcode    string   `json:"opcode" yaml:"opcode"`
	Rcode     string   `json:"rcode,omitempty" yaml:"rcode,omitempty"`
	Questions []string `json:"questions,omitempty" yaml:"questions,omitempty"`
	Answers   []string `json:"answers,omitempty" yaml:"answers,omitempty"`
}

// DHCP is a DHCPv4 message summary.
type DHCP struct {
	Operation   string `json:"operation" yaml:"operation"`
	MessageType string `json:"message_type,omitempty" yaml:"message_type,omitempty"`
	ClientMAC   string `json:"client_mac" yaml:"client_mac"`
	ClientIP    string `json:"client_ip,omitempty" yaml:"client_ip,omitempty"`
	YourIP      string `json:"your_ip,omitempty" yaml:"your_ip,omitempty"`
	Hostname    string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
}

// SSDP is an SSDP discovery or notification message.
type SSDP struct {
	Method  string            `json:"method" yaml:"method"`
	Target  string            `json:"target,omitempty" yaml:"target,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Text is a payload that is valid UTF-8 but no known protocol.
type Text struct {
	Text string `json:"text" yaml:"text"`
}

// Binary is a payload no sniffer recognised.
type Binary struct {
	Data []byte `json:"data" yaml:"data"`
}

// Empty is a zero-length payload, e.g. a bare ACK.
type Empty struct{}

func (*HTTPRequest) isApplication()    {}
func (*TLSClientHello) isApplication() {}
func (*DropboxBeacon) isApplication()  {}
func (*DNS) isApplication()            {}
func (*DHCP) isApplication()           {}
func (*SSDP) isApplication()           {}
func (*Text) isApplication()           {}
func (*Binary) isApplication()         {}
func (*Empty) isApplication()          {}

// NetworkOf returns the network layer, or nil for raw frames.
func NetworkOf(p Packet) Network {
	if l, ok := p.(*Link); ok {
		return l.Next
	}
	return nil
}

// TransportOf returns the transport layer, or nil when the frame is not IP.
func TransportOf(p Packet) Transport {
	switch n := NetworkOf(p).(type) {
	case *IPv4:
		return n.Next
	case *IPv6:
		return n.Next
	}
	return nil
}

// ApplicationOf returns the sniffed payload, or nil below TCP/UDP.
func ApplicationOf(p Packet) Application {
	switch t := TransportOf(p).(type) {
	case *TCP:
		return t.Next
	case *UDP:
		return t.Next
	}
	return nil
}
