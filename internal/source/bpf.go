package source

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// CompileBPF compiles a filter expression for lt into raw instructions that
// can be attached to a socket.
func CompileBPF(lt layers.LinkType, snapLen int, filter string) ([]bpf.RawInstruction, error) {
	pcapBPF, err := pcap.CompileBPFFilter(lt, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("compile BPF filter %q: %w", filter, err)
	}

	raw := make([]bpf.RawInstruction, len(pcapBPF))
	for i, ins := range pcapBPF {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return raw, nil
}

// ValidateFilter reports whether filter compiles for Ethernet frames.
func ValidateFilter(filter string) error {
	if filter == "" {
		return nil
	}
	prog, err := CompileBPF(layers.LinkTypeEthernet, DefaultSnapLen, filter)
	if err != nil {
		return err
	}
	if _, ok := bpf.Disassemble(prog); !ok {
		return fmt.Errorf("BPF filter %q does not disassemble", filter)
	}
	return nil
}
