package decoder

import (
	"encoding/binary"

	"firestige.xyz/sniffer/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// decodeTCP decodes a TCP header, honouring the data offset.
func decodeTCP(data []byte) (core.TCPHeader, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TCPHeader{}, nil, core.ErrPacketTooShort
	}

	tcp := core.TCPHeader{
		SrcPort:    binary.BigEndian.Uint16(data[0:2]),
		DstPort:    binary.BigEndian.Uint16(data[2:4]),
		SeqNum:     binary.BigEndian.Uint32(data[4:8]),
		AckNum:     binary.BigEndian.Uint32(data[8:12]),
		DataOffset: data[12] >> 4,
		Reserved:   data[12] & 0x0F,
		Flags:      core.TCPFlags(data[13]),
		Window:     binary.BigEndian.Uint16(data[14:16]),
		Checksum:   binary.BigEndian.Uint16(data[16:18]),
		Urgent:     binary.BigEndian.Uint16(data[18:20]),
	}

	// data offset is in 32-bit words
	headerLen := int(tcp.DataOffset) * 4
	if headerLen < tcpHeaderMinLen {
		return core.TCPHeader{}, nil, core.ErrInvalidPacket
	}
	if len(data) < headerLen {
		return core.TCPHeader{}, nil, core.ErrPacketTooShort
	}
	if headerLen > tcpHeaderMinLen {
		tcp.Options = data[tcpHeaderMinLen:headerLen]
	}

	return tcp, data[headerLen:], nil
}

// decodeUDP decodes a UDP header. The payload is clamped to the length
// field when it is shorter than what was captured.
func decodeUDP(data []byte) (core.UDPHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.UDPHeader{}, nil, core.ErrPacketTooShort
	}

	udp := core.UDPHeader{
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		Length:   binary.BigEndian.Uint16(data[4:6]),
		Checksum: binary.BigEndian.Uint16(data[6:8]),
	}

	end := len(data)
	if n := int(udp.Length); n >= udpHeaderLen && n < end {
		end = n
	}
	return udp, data[udpHeaderLen:end], nil
}
