package source

import (
	"errors"
	"fmt"
	"io"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/sniffer/internal/core"
)

// pcapSource reads from a libpcap handle, live or offline.
type pcapSource struct {
	handle *pcap.Handle
}

// OpenLive opens a live capture on opts.Device.
func OpenLive(opts Options) (Source, error) {
	opts = opts.withDefaults()
	handle, err := pcap.OpenLive(opts.Device, int32(opts.SnapLen), opts.Promisc, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("open live capture on %s: %w", opts.Device, err)
	}
	if opts.Filter != "" {
		if err := handle.SetBPFFilter(opts.Filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("set BPF filter %q: %w", opts.Filter, err)
		}
	}
	return &pcapSource{handle: handle}, nil
}

// OpenFile opens a pcap file for reading. filter may be empty.
func OpenFile(path, filter string) (Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap file %q: %w", path, err)
	}
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("set BPF filter %q: %w", filter, err)
		}
	}
	return &pcapSource{handle: handle}, nil
}

func (s *pcapSource) ReadFrame() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ZeroCopyReadPacketData()
	switch {
	case err == nil:
		return data, ci, nil
	case errors.Is(err, pcap.NextErrorTimeoutExpired):
		return nil, ci, ErrTimeout
	case errors.Is(err, io.EOF):
		return nil, ci, io.EOF
	}
	return nil, ci, fmt.Errorf("read packet: %w", err)
}

func (s *pcapSource) LinkType() layers.LinkType {
	return s.handle.LinkType()
}

func (s *pcapSource) Close() error {
	s.handle.Close()
	return nil
}

// Device describes a capture interface.
type Device struct {
	Name        string
	Description string
	Addresses   []netip.Addr
}

// ListDevices returns every interface libpcap can capture on.
func ListDevices() ([]Device, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]Device, 0, len(devs))
	for _, d := range devs {
		dev := Device{Name: d.Name, Description: d.Description}
		for _, addr := range d.Addresses {
			if a, ok := netip.AddrFromSlice(addr.IP); ok {
				dev.Addresses = append(dev.Addresses, a.Unmap())
			}
		}
		out = append(out, dev)
	}
	return out, nil
}

// DefaultDevice picks the first interface with a non-loopback address.
func DefaultDevice() (string, error) {
	devs, err := ListDevices()
	if err != nil {
		return "", err
	}
	for _, d := range devs {
		for _, a := range d.Addresses {
			if !a.IsLoopback() {
				return d.Name, nil
			}
		}
	}
	return "", errors.New("no capture device with an address found")
}

// DeviceIPv4 returns the first IPv4 address of the named interface.
func DeviceIPv4(name string) (netip.Addr, error) {
	devs, err := ListDevices()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, d := range devs {
		if d.Name != name {
			continue
		}
		for _, a := range d.Addresses {
			if a.Is4() {
				return a, nil
			}
		}
		return netip.Addr{}, fmt.Errorf("device %s has no IPv4 address", name)
	}
	return netip.Addr{}, fmt.Errorf("device %s not found", name)
}

// DescribeLinkType fills an UnsupportedLinkTypeError in err with libpcap's
// name and description of the link type. Other errors pass through.
func DescribeLinkType(err error) error {
	var lt *core.UnsupportedLinkTypeError
	if !errors.As(err, &lt) {
		return err
	}
	if name := pcap.DatalinkValToName(lt.Code); name != "" {
		lt.Name = name
	}
	if desc := pcap.DatalinkValToDescription(lt.Code); desc != "" {
		lt.Description = desc
	}
	return err
}
