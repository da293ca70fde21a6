package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/sniffer/internal/source"
)

// DeviceLister abstracts interface discovery for tests.
type DeviceLister interface {
	ListDevices() ([]source.Device, error)
}

type pcapDevices struct{}

func (pcapDevices) ListDevices() ([]source.Device, error) { return source.ListDevices() }

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture interfaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevices(pcapDevices{}, cmd.OutOrStdout())
		},
	}
}

func runDevices(lister DeviceLister, out io.Writer) error {
	devs, err := lister.ListDevices()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESSES\tDESCRIPTION")
	for _, d := range devs {
		addrs := make([]string, len(d.Addresses))
		for i, a := range d.Addresses {
			addrs[i] = a.String()
		}
		addr := strings.Join(addrs, ",")
		if addr == "" {
			addr = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, addr, d.Description)
	}
	return w.Flush()
}
