package decoder

import (
	"encoding/binary"

	"github.com/google/gopacket/layers"

	"firestige.xyz/sniffer/internal/core"
)

// BSD and OpenBSD use their own DLT values for raw IP.
const (
	linkTypeRawBSD     layers.LinkType = 12
	linkTypeRawOpenBSD layers.LinkType = 14
)

// ResolveLink maps the link type reported by a capture handle to the strategy
// used to strip the link header of every frame. It is evaluated once per
// session; an unsupported type ends the run.
func ResolveLink(lt layers.LinkType) (core.LinkStrategy, error) {
	switch lt {
	case layers.LinkTypeEthernet:
		return core.LinkEthernet, nil
	case layers.LinkTypeLinuxSLL:
		return core.LinkLinuxCooked, nil
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6,
		linkTypeRawBSD, linkTypeRawOpenBSD:
		return core.LinkRawIP, nil
	}
	name := "unknown"
	if int(lt) < 256 && lt.String() != "" {
		name = lt.String()
	}
	return core.LinkUnsupported, &core.UnsupportedLinkTypeError{
		Code: int(lt),
		Name: name,
	}
}

const cookedHeaderLen = 16

// decodeCooked strips a Linux SLL header. The address field is fixed at
// 8 bytes on the wire; AddrLen says how many of them are used.
func decodeCooked(data []byte) (core.CookedHeader, []byte, error) {
	if len(data) < cookedHeaderLen {
		return core.CookedHeader{}, nil, core.ErrPacketTooShort
	}

	h := core.CookedHeader{
		PacketType: binary.BigEndian.Uint16(data[0:2]),
		ARPHRDType: binary.BigEndian.Uint16(data[2:4]),
		AddrLen:    binary.BigEndian.Uint16(data[4:6]),
		EtherType:  binary.BigEndian.Uint16(data[14:16]),
	}
	n := int(h.AddrLen)
	if n > 8 {
		n = 8
	}
	h.Addr = data[6 : 6+n]

	return h, data[cookedHeaderLen:], nil
}

// decodeRawIP derives the EtherType from the IP version nibble.
func decodeRawIP(data []byte) (core.RawIPHeader, []byte, error) {
	if len(data) == 0 {
		return core.RawIPHeader{}, nil, core.ErrPacketTooShort
	}
	switch data[0] >> 4 {
	case 4:
		return core.RawIPHeader{EtherType: core.EtherTypeIPv4}, data, nil
	case 6:
		return core.RawIPHeader{EtherType: core.EtherTypeIPv6}, data, nil
	}
	return core.RawIPHeader{}, nil, core.ErrInvalidPacket
}

// stripLink removes the link header chosen by strategy and reports the
// EtherType of what follows.
func stripLink(data []byte, link core.LinkStrategy) (core.LinkHeader, uint16, []byte, error) {
	switch link {
	case core.LinkEthernet:
		h, rest, err := decodeEthernet(data)
		if err != nil {
			return nil, 0, nil, err
		}
		return h, h.EtherType, rest, nil
	case core.LinkLinuxCooked:
		h, rest, err := decodeCooked(data)
		if err != nil {
			return nil, 0, nil, err
		}
		return h, h.EtherType, rest, nil
	case core.LinkRawIP:
		h, rest, err := decodeRawIP(data)
		if err != nil {
			return nil, 0, nil, err
		}
		return h, h.EtherType, rest, nil
	}
	return nil, 0, nil, core.ErrUnsupportedLinkType
}
