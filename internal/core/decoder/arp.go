package decoder

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/sniffer/internal/core"
)

const arpFixedLen = 8

// decodeARP decodes an ARP payload of any hardware/protocol pairing.
func decodeARP(data []byte) (core.ARPHeader, error) {
	if len(data) < arpFixedLen {
		return core.ARPHeader{}, core.ErrPacketTooShort
	}
	// layers.ARP sums the address sizes in a uint8; check in int first.
	if need := arpFixedLen + 2*int(data[4]) + 2*int(data[5]); len(data) < need {
		return core.ARPHeader{}, core.ErrPacketTooShort
	}

	var arp layers.ARP
	if err := arp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return core.ARPHeader{}, core.ErrInvalidPacket
	}

	return core.ARPHeader{
		HardwareType: uint16(arp.AddrType),
		ProtocolType: uint16(arp.Protocol),
		Operation:    arp.Operation,
		SenderHW:     arp.SourceHwAddress,
		SenderProto:  arp.SourceProtAddress,
		TargetHW:     arp.DstHwAddress,
		TargetProto:  arp.DstProtAddress,
	}, nil
}
