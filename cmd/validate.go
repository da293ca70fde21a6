package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/sniffer/internal/config"
)

func newValidateCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Load a configuration file, apply SNIFFER_ environment overrides and check
every section, including the BPF filter, without opening a capture device.

Examples:
  sniffer validate -f sniffer.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(file, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "configuration file to validate (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	source := "default device"
	switch {
	case cfg.Capture.File != "":
		source = "file " + cfg.Capture.File
	case cfg.Capture.Device != "":
		source = "device " + cfg.Capture.Device
	}
	fmt.Fprintf(out, "VALID: %s, %s layout, verbosity %d\n", source, cfg.Output.Layout, cfg.Output.Verbosity)
	return nil
}
