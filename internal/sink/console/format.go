package console

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"firestige.xyz/sniffer/internal/core"
)

const maxText = 80

// Format renders p as a single line.
func Format(p core.Packet) string {
	switch p := p.(type) {
	case *core.Raw:
		return fmt.Sprintf("raw %d bytes", len(p.Data))
	case *core.Link:
		return formatNetwork(p.Next)
	}
	return "-"
}

func formatNetwork(n core.Network) string {
	switch n := n.(type) {
	case *core.IPv4:
		return formatTransport("ipv4", n.Header.SrcIP, n.Header.DstIP, n.Next)
	case *core.IPv6:
		return formatTransport("ipv6", n.Header.SrcIP, n.Header.DstIP, n.Next)
	case *core.ARP:
		return formatARP(n.Header)
	case *core.UnknownNetwork:
		return fmt.Sprintf("ether 0x%04x %d bytes", n.EtherType, len(n.Data))
	}
	return "-"
}

func formatARP(h core.ARPHeader) string {
	sender, target := arpAddr(h.SenderProto), arpAddr(h.TargetProto)
	switch h.Operation {
	case 1:
		return fmt.Sprintf("arp who-has %s tell %s", target, sender)
	case 2:
		return fmt.Sprintf("arp %s is-at %s", sender, net.HardwareAddr(h.SenderHW))
	}
	return fmt.Sprintf("arp op=%d %s -> %s", h.Operation, sender, target)
}

func arpAddr(b []byte) string {
	if a, ok := netip.AddrFromSlice(b); ok {
		return a.String()
	}
	return fmt.Sprintf("%x", b)
}

func formatTransport(proto string, src, dst netip.Addr, t core.Transport) string {
	switch t := t.(type) {
	case *core.TCP:
		return fmt.Sprintf("tcp %s -> %s [%s] %s",
			core.Endpoint(src, t.Header.SrcPort), core.Endpoint(dst, t.Header.DstPort),
			t.Header.Flags, FormatApplication(t.Next))
	case *core.UDP:
		return fmt.Sprintf("udp %s -> %s %s",
			core.Endpoint(src, t.Header.SrcPort), core.Endpoint(dst, t.Header.DstPort),
			FormatApplication(t.Next))
	case *core.UnknownTransport:
		return fmt.Sprintf("%s %s -> %s proto %d %d bytes", proto, src, dst, t.Protocol, len(t.Data))
	}
	return proto
}

// FormatApplication renders the sniffed payload.
func FormatApplication(a core.Application) string {
	switch a := a.(type) {
	case *core.HTTPRequest:
		s := fmt.Sprintf("http %s %s%s", a.Method, a.Host, a.Path)
		if a.UserAgent != "" {
			s += fmt.Sprintf(" agent=%q", a.UserAgent)
		}
		return s
	case *core.TLSClientHello:
		if a.Hostname == "" {
			return "tls client hello"
		}
		return "tls client hello sni=" + a.Hostname
	case *core.DropboxBeacon:
		return fmt.Sprintf("dropbox beacon %s port=%d namespaces=%d", a.DisplayName, a.Port, len(a.Namespaces))
	case *core.DNS:
		if a.Response {
			return fmt.Sprintf("dns response %s %s", a.Rcode, strings.Join(a.Answers, ", "))
		}
		return "dns query " + strings.Join(a.Questions, ", ")
	case *core.DHCP:
		s := fmt.Sprintf("dhcp %s %s", a.MessageType, a.ClientMAC)
		if a.Hostname != "" {
			s += " hostname=" + a.Hostname
		}
		if a.YourIP != "" {
			s += " yiaddr=" + a.YourIP
		}
		return s
	case *core.SSDP:
		s := "ssdp " + a.Method
		if a.Target != "" {
			s += " " + a.Target
		}
		return s
	case *core.Text:
		return "text " + quoteTruncated(a.Text)
	case *core.Binary:
		return fmt.Sprintf("binary %d bytes", len(a.Data))
	case *core.Empty:
		return "empty"
	}
	return "-"
}

func quoteTruncated(s string) string {
	r := []rune(s)
	if len(r) > maxText {
		return fmt.Sprintf("%q...", string(r[:maxText]))
	}
	return fmt.Sprintf("%q", s)
}
