package decoder

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/sniffer/internal/core"
)

func TestResolveLink(t *testing.T) {
	tests := []struct {
		lt   layers.LinkType
		want core.LinkStrategy
	}{
		{layers.LinkTypeEthernet, core.LinkEthernet},
		{layers.LinkTypeLinuxSLL, core.LinkLinuxCooked},
		{layers.LinkTypeRaw, core.LinkRawIP},
		{layers.LinkTypeIPv4, core.LinkRawIP},
		{layers.LinkTypeIPv6, core.LinkRawIP},
		{layers.LinkType(12), core.LinkRawIP},
		{layers.LinkType(14), core.LinkRawIP},
	}
	for _, tt := range tests {
		got, err := ResolveLink(tt.lt)
		require.NoError(t, err, "link type %d", tt.lt)
		assert.Equal(t, tt.want, got, "link type %d", tt.lt)
	}

	_, err := ResolveLink(layers.LinkTypeIEEE80211Radio)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnsupportedLinkType))

	var lt *core.UnsupportedLinkTypeError
	require.True(t, errors.As(err, &lt))
	assert.Equal(t, int(layers.LinkTypeIEEE80211Radio), lt.Code)
	assert.NotEmpty(t, lt.Name)
}

// ipv4UDP builds an IPv4 header carrying a UDP datagram with payload.
func ipv4UDP(src, dst netip.Addr, sport, dport uint16, payload []byte) []byte {
	udpLen := 8 + len(payload)
	total := 20 + udpLen
	b := []byte{
		0x45, 0x00, byte(total >> 8), byte(total), 0x00, 0x01, 0x00, 0x00, 64, 17, 0x00, 0x00,
	}
	s, d := src.As4(), dst.As4()
	b = append(b, s[:]...)
	b = append(b, d[:]...)
	b = append(b, byte(sport>>8), byte(sport), byte(dport>>8), byte(dport), byte(udpLen>>8), byte(udpLen), 0, 0)
	return append(b, payload...)
}

func dnsQuery(t *testing.T) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeA)
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}

func TestDecodeVLAN(t *testing.T) {
	ip := ipv4UDP(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), 40000, 53, dnsQuery(t))
	frame := []byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x88, 0xa8, 0x00, 0x64, // QinQ, outer VLAN 100
		0x81, 0x00, 0x20, 0xc8, // 802.1Q, PCP 1, inner VLAN 200
		0x08, 0x00,
	}
	frame = append(frame, ip...)

	pkt := Decode(frame, core.LinkEthernet)
	link := pkt.(*core.Link)
	eth := link.Header.(core.EthernetHeader)
	assert.Equal(t, []uint16{100, 200}, eth.VLANs)
	assert.Equal(t, core.EtherTypeIPv4, eth.EtherType)

	udp, ok := core.TransportOf(pkt).(*core.UDP)
	require.True(t, ok)
	assert.Equal(t, uint16(53), udp.Header.DstPort)
	d, ok := udp.Next.(*core.DNS)
	require.True(t, ok)
	assert.Equal(t, []string{"example.com. A"}, d.Questions)
}

func TestDecodeTruncatedVLAN(t *testing.T) {
	frame := []byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x81, 0x00, 0x00,
	}
	raw, ok := Decode(frame, core.LinkEthernet).(*core.Raw)
	require.True(t, ok)
	assert.Equal(t, frame, raw.Data)
}

func TestDecodeIPv6UDP(t *testing.T) {
	payload := []byte("hello over v6")
	udpLen := 8 + len(payload)
	frame := []byte{
		0x33, 0x33, 0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x86, 0xdd,
		0x60, 0x12, 0x34, 0x56, // version 6, traffic class 1, flow label 0x23456
		byte(udpLen >> 8), byte(udpLen), 17, 255,
	}
	src := netip.MustParseAddr("fe80::1").As16()
	dst := netip.MustParseAddr("ff02::1").As16()
	frame = append(frame, src[:]...)
	frame = append(frame, dst[:]...)
	frame = append(frame, 0x30, 0x39, 0x30, 0x3a, byte(udpLen>>8), byte(udpLen), 0, 0)
	frame = append(frame, payload...)
	frame = append(frame, 0xde, 0xad) // trailing junk beyond the UDP length

	pkt := Decode(frame, core.LinkEthernet)
	ip6, ok := core.NetworkOf(pkt).(*core.IPv6)
	require.True(t, ok)
	assert.Equal(t, uint8(1), ip6.Header.TrafficClass)
	assert.Equal(t, uint32(0x23456), ip6.Header.FlowLabel)
	assert.Equal(t, uint8(255), ip6.Header.HopLimit)
	assert.Equal(t, netip.MustParseAddr("fe80::1"), ip6.Header.SrcIP)

	udp := ip6.Next.(*core.UDP)
	assert.Equal(t, uint16(12345), udp.Header.SrcPort)
	assert.Equal(t, &core.Text{Text: "hello over v6"}, udp.Next)
}

func TestDecodeARP(t *testing.T) {
	frame := []byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06,
		0x00, 0x01, 0x08, 0x00, 6, 4, 0x00, 0x01, // ethernet/IPv4 request
		0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 10, 0, 0, 1,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 10, 0, 0, 2,
	}

	arp, ok := core.NetworkOf(Decode(frame, core.LinkEthernet)).(*core.ARP)
	require.True(t, ok)
	assert.Equal(t, uint16(1), arp.Header.HardwareType)
	assert.Equal(t, uint16(0x0800), arp.Header.ProtocolType)
	assert.Equal(t, uint16(1), arp.Header.Operation)
	assert.Equal(t, []byte{10, 0, 0, 1}, arp.Header.SenderProto)
	assert.Equal(t, []byte{10, 0, 0, 2}, arp.Header.TargetProto)

	// address sizes that overflow a byte when summed must not be trusted
	bogus := append([]byte(nil), frame...)
	bogus[18], bogus[19] = 200, 200
	u, ok := core.NetworkOf(Decode(bogus, core.LinkEthernet)).(*core.UnknownNetwork)
	require.True(t, ok)
	assert.Equal(t, core.EtherTypeARP, u.EtherType)
	assert.Equal(t, bogus[14:], u.Data)
}

func TestDecodeLinuxCooked(t *testing.T) {
	ip := ipv4UDP(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), 1000, 2000, []byte{0xff, 0x01})
	frame := []byte{
		0x00, 0x04, // sent by us
		0x00, 0x01, // ARPHRD_ETHER
		0x00, 0x06, // address length
		0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00,
		0x08, 0x00,
	}
	frame = append(frame, ip...)

	pkt := Decode(frame, core.LinkLinuxCooked)
	link := pkt.(*core.Link)
	sll, ok := link.Header.(core.CookedHeader)
	require.True(t, ok)
	assert.Equal(t, uint16(4), sll.PacketType)
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}, sll.Addr)
	assert.Equal(t, core.EtherTypeIPv4, sll.EtherType)
	assert.Equal(t, &core.Binary{Data: []byte{0xff, 0x01}}, core.ApplicationOf(pkt))

	_, ok = Decode(frame[:15], core.LinkLinuxCooked).(*core.Raw)
	assert.True(t, ok)
}

func TestDecodeRawIP(t *testing.T) {
	ip := ipv4UDP(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), 1000, 2000, nil)

	pkt := Decode(ip, core.LinkRawIP)
	link := pkt.(*core.Link)
	assert.Equal(t, core.RawIPHeader{EtherType: core.EtherTypeIPv4}, link.Header)
	assert.Equal(t, &core.Empty{}, core.ApplicationOf(pkt))

	junk := []byte{0x12, 0x34, 0x56}
	raw, ok := Decode(junk, core.LinkRawIP).(*core.Raw)
	require.True(t, ok)
	assert.Equal(t, junk, raw.Data)
}

func TestDecodeHostileDHCP(t *testing.T) {
	payload := make([]byte, 244)
	payload[0] = 1
	payload[2] = 255
	copy(payload[236:240], []byte{0x63, 0x82, 0x53, 0x63})
	ip := ipv4UDP(netip.MustParseAddr("0.0.0.0"), netip.MustParseAddr("255.255.255.255"), 68, 67, payload)

	var pkt core.Packet
	require.NotPanics(t, func() { pkt = Decode(ip, core.LinkRawIP) })
	udp, ok := core.TransportOf(pkt).(*core.UDP)
	require.True(t, ok)
	assert.Equal(t, uint16(67), udp.Header.DstPort)
	assert.IsType(t, &core.Binary{}, core.ApplicationOf(pkt))
}

func TestDecodeUnknownLayers(t *testing.T) {
	t.Run("ethertype", func(t *testing.T) {
		frame := []byte{
			0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e, 0x02, 0x00, 0x00, 0x00, 0x00, 0x01, 0x88, 0xcc, // LLDP
			0x02, 0x07, 0x04,
		}
		u, ok := core.NetworkOf(Decode(frame, core.LinkEthernet)).(*core.UnknownNetwork)
		require.True(t, ok)
		assert.Equal(t, uint16(0x88cc), u.EtherType)
		assert.Equal(t, []byte{0x02, 0x07, 0x04}, u.Data)
	})

	t.Run("protocol", func(t *testing.T) {
		ip := ipv4UDP(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), 0, 0, nil)
		ip[9] = 1 // ICMP
		ip = append(ip[:20], 0x08, 0x00, 0xf7, 0xff)
		ip[2], ip[3] = 0, 24

		u, ok := core.TransportOf(Decode(ip, core.LinkRawIP)).(*core.UnknownTransport)
		require.True(t, ok)
		assert.Equal(t, uint8(1), u.Protocol)
		assert.Equal(t, []byte{0x08, 0x00, 0xf7, 0xff}, u.Data)
	})

	t.Run("bad ihl", func(t *testing.T) {
		ip := ipv4UDP(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), 0, 0, nil)
		ip[0] = 0x44
		u, ok := core.NetworkOf(Decode(ip, core.LinkRawIP)).(*core.UnknownNetwork)
		require.True(t, ok)
		assert.Equal(t, ip, u.Data)
	})
}

func TestDecodeUDPLengthClamp(t *testing.T) {
	ip := ipv4UDP(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2"), 1000, 2000, []byte("abcdef"))
	// shrink the UDP length to cover only "abc"
	ip[24], ip[25] = 0, 11

	udp := core.TransportOf(Decode(ip, core.LinkRawIP)).(*core.UDP)
	assert.Equal(t, &core.Text{Text: "abc"}, udp.Next)
}
