package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/sniffer/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40
)

// decodeIPv4 decodes an IPv4 header. The payload is clamped to TotalLen
// when the frame carries link padding; a TotalLen beyond the captured bytes
// leaves the payload as captured.
func decodeIPv4(data []byte) (core.IPv4Header, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPv4Header{}, nil, core.ErrPacketTooShort
	}
	if data[0]>>4 != 4 {
		return core.IPv4Header{}, nil, core.ErrInvalidPacket
	}

	// IHL is in 32-bit words
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen {
		return core.IPv4Header{}, nil, core.ErrInvalidPacket
	}
	if len(data) < headerLen {
		return core.IPv4Header{}, nil, core.ErrPacketTooShort
	}

	flagsFrag := binary.BigEndian.Uint16(data[6:8])
	ip := core.IPv4Header{
		Version:    4,
		IHL:        uint8(headerLen),
		TOS:        data[1],
		TotalLen:   binary.BigEndian.Uint16(data[2:4]),
		ID:         binary.BigEndian.Uint16(data[4:6]),
		Flags:      uint8(flagsFrag >> 13),
		FragOffset: flagsFrag & 0x1FFF,
		TTL:        data[8],
		Protocol:   data[9],
		Checksum:   binary.BigEndian.Uint16(data[10:12]),
		SrcIP:      netip.AddrFrom4([4]byte(data[12:16])),
		DstIP:      netip.AddrFrom4([4]byte(data[16:20])),
	}
	if headerLen > ipv4HeaderMinLen {
		ip.Options = data[ipv4HeaderMinLen:headerLen]
	}

	end := len(data)
	if total := int(ip.TotalLen); total >= headerLen && total < end {
		end = total
	}
	return ip, data[headerLen:end], nil
}

// decodeIPv6 decodes the fixed IPv6 header. Extension headers are not
// walked; NextHeader is used as the transport protocol as is.
func decodeIPv6(data []byte) (core.IPv6Header, []byte, error) {
	if len(data) < ipv6HeaderLen {
		return core.IPv6Header{}, nil, core.ErrPacketTooShort
	}
	if data[0]>>4 != 6 {
		return core.IPv6Header{}, nil, core.ErrInvalidPacket
	}

	word := binary.BigEndian.Uint32(data[0:4])
	ip := core.IPv6Header{
		Version:      6,
		TrafficClass: uint8(word >> 20),
		FlowLabel:    word & 0x000FFFFF,
		PayloadLen:   binary.BigEndian.Uint16(data[4:6]),
		NextHeader:   data[6],
		HopLimit:     data[7],
		SrcIP:        netip.AddrFrom16([16]byte(data[8:24])),
		DstIP:        netip.AddrFrom16([16]byte(data[24:40])),
	}

	payload := data[ipv6HeaderLen:]
	if n := int(ip.PayloadLen); n < len(payload) {
		payload = payload[:n]
	}
	return ip, payload, nil
}
