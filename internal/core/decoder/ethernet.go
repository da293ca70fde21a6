package decoder

import (
	"encoding/binary"

	"firestige.xyz/sniffer/internal/core"
)

const (
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4
)

// decodeEthernet decodes Ethernet frame header (including VLAN tags).
// Returns EthernetHeader and remaining payload.
func decodeEthernet(data []byte) (core.EthernetHeader, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return core.EthernetHeader{}, nil, core.ErrPacketTooShort
	}

	eth := core.EthernetHeader{}
	copy(eth.DstMAC[:], data[0:6])
	copy(eth.SrcMAC[:], data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	// 802.1Q and 802.1ad tags can be stacked
	for etherType == core.EtherTypeVLAN || etherType == core.EtherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return core.EthernetHeader{}, nil, core.ErrPacketTooShort
		}

		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		eth.VLANs = append(eth.VLANs, tci&0x0FFF)

		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	eth.EtherType = etherType
	return eth, data[offset:], nil
}
