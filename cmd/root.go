// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// NewRootCommand builds the command tree. Each call returns fresh flag state.
func NewRootCommand() *cobra.Command {
	var opts runOptions

	root := &cobra.Command{
		Use:   "sniffer [flags] [device]",
		Short: "Sniffer - decode network traffic from link layer to application layer",
		Long: `Sniffer captures frames from a network interface or capture file and decodes
them through the protocol stack: Ethernet, Linux cooked capture or raw IP, then
ARP, IPv4 and IPv6, then TCP and UDP, then HTTP, TLS ClientHello, DNS, DHCP,
SSDP and Dropbox LAN sync beacons.

Decoding runs on a worker pool. Records are printed in completion order and
filtered by noise level: each -v shows one more level, up to -vvvv for frames
that could not be decoded at all.

Examples:
  sniffer eth0                      # HTTP, TLS, DNS and DHCP on eth0
  sniffer -vv -p eth0               # add ARP and text, promiscuous mode
  sniffer -r dump.pcap -j -vvvv     # every frame of a capture file as JSON
  sniffer --stats --statsd localhost:8125 eth0`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.device = args[0]
			}
			return runSniffer(cmd, opts)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file path")
	flags.BoolP("promisc", "p", false, "set the device to promiscuous mode")
	flags.BoolVarP(&opts.detailed, "detailed", "d", false, "show every header as YAML")
	flags.BoolVarP(&opts.json, "json", "j", false, "print one JSON object per record")
	flags.CountP("verbose", "v", "increase output verbosity (up to -vvvv)")
	flags.StringP("read", "r", "", "read frames from a pcap file instead of a device")
	flags.IntP("cpus", "n", 0, "number of decode workers (default: number of CPUs)")
	flags.String("filter", "", "BPF filter expression")
	flags.Bool("afpacket", false, "capture through an AF_PACKET ring (linux)")
	flags.BoolP("quiet", "q", false, "do not print records")
	flags.Bool("stats", false, "aggregate HTTP, TLS and DNS statistics into metrics")
	flags.Bool("local-only", false, "keep only IPv4 packets addressed to the capture device")
	flags.String("statsd", "", "statsd address (host:port) for aggregated metrics")
	flags.Duration("flush-interval", 10*time.Second, "metrics flush interval")
	flags.String("metrics-listen", "", "serve Prometheus metrics on this address")
	flags.String("ws-listen", "", "stream records to websocket clients on this address")
	flags.String("user", "", "drop privileges to this user after opening the device")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(newDevicesCommand(), newValidateCommand())
	return root
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return NewRootCommand().Execute()
}
