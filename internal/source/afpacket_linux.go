//go:build linux

package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
)

// afpacketSource reads from a TPACKET_V3 memory-mapped ring.
type afpacketSource struct {
	handle *afpacket.TPacket
}

// OpenAFPacket opens an AF_PACKET ring on opts.Device. The ring is sized
// from opts.BufferSizeMB and opts.SnapLen; opts.FanoutID > 0 joins a hash
// fanout group so several processes can share the interface.
func OpenAFPacket(opts Options) (Source, error) {
	opts = opts.withDefaults()
	ring, err := sizeRing(opts.BufferSizeMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(opts.Device),
		afpacket.OptFrameSize(ring.frameSize),
		afpacket.OptBlockSize(ring.blockSize),
		afpacket.OptNumBlocks(ring.numBlocks),
		afpacket.OptPollTimeout(opts.Timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("open af_packet on %s: %w", opts.Device, err)
	}

	if opts.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, opts.FanoutID); err != nil {
			tp.Close()
			return nil, fmt.Errorf("join fanout group %d: %w", opts.FanoutID, err)
		}
	}

	if opts.Filter != "" {
		prog, err := CompileBPF(layers.LinkTypeEthernet, ring.frameSize, opts.Filter)
		if err != nil {
			tp.Close()
			return nil, err
		}
		if err := tp.SetBPF(prog); err != nil {
			tp.Close()
			return nil, fmt.Errorf("attach BPF filter: %w", err)
		}
	}

	return &afpacketSource{handle: tp}, nil
}

func (s *afpacketSource) ReadFrame() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ZeroCopyReadPacketData()
	if errors.Is(err, afpacket.ErrTimeout) {
		return nil, ci, ErrTimeout
	}
	return data, ci, err
}

// LinkType is always Ethernet: the socket is opened in raw mode.
func (s *afpacketSource) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

func (s *afpacketSource) Close() error {
	s.handle.Close()
	return nil
}
