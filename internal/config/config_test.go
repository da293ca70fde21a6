package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sniffer.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Output.Layout != "compact" {
		t.Errorf("Expected compact layout, got %s", cfg.Output.Layout)
	}
	if cfg.Output.Verbosity != 0 {
		t.Errorf("Expected verbosity 0, got %d", cfg.Output.Verbosity)
	}
	if cfg.Capture.SnapLen != 65535 {
		t.Errorf("Expected snaplen 65535, got %d", cfg.Capture.SnapLen)
	}
	if cfg.Capture.Timeout != 100*time.Millisecond {
		t.Errorf("Expected 100ms read timeout, got %v", cfg.Capture.Timeout)
	}
	if cfg.Metrics.FlushInterval != 10*time.Second {
		t.Errorf("Expected 10s flush interval, got %v", cfg.Metrics.FlushInterval)
	}
	if cfg.Pipeline.BufferSize != 1024 {
		t.Errorf("Expected buffer size 1024, got %d", cfg.Pipeline.BufferSize)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level info, got %s", cfg.Log.Level)
	}
	if cfg.Web.Path != "/ws" {
		t.Errorf("Expected websocket path /ws, got %s", cfg.Web.Path)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
capture:
  device: eth0
  promisc: true
  filter: "tcp port 80"
pipeline:
  workers: 4
output:
  layout: json
  verbosity: 3
metrics:
  statsd: "localhost:8125"
  flush_interval: 30s
  listen: ":9091"
log:
  level: debug
  file:
    filename: /tmp/sniffer.log
sandbox:
  user: nobody
web:
  listen: "127.0.0.1:8080"
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Capture.Device != "eth0" || !cfg.Capture.Promisc {
		t.Errorf("Unexpected capture section %+v", cfg.Capture)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Output.Layout != "json" || cfg.Output.Verbosity != 3 {
		t.Errorf("Unexpected output section %+v", cfg.Output)
	}
	if cfg.Metrics.Statsd != "localhost:8125" || cfg.Metrics.FlushInterval != 30*time.Second {
		t.Errorf("Unexpected metrics section %+v", cfg.Metrics)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File.Filename != "/tmp/sniffer.log" {
		t.Errorf("Unexpected log section %+v", cfg.Log)
	}
	if cfg.Log.File.MaxSize != 100 {
		t.Errorf("Expected default max_size 100, got %d", cfg.Log.File.MaxSize)
	}
	if cfg.Sandbox.User != "nobody" {
		t.Errorf("Expected sandbox user nobody, got %s", cfg.Sandbox.User)
	}

	opts := cfg.Capture.Options()
	if opts.Device != "eth0" || opts.Filter != "tcp port 80" || opts.SnapLen != 65535 {
		t.Errorf("Unexpected source options %+v", opts)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SNIFFER_OUTPUT_VERBOSITY", "2")
	t.Setenv("SNIFFER_METRICS_PREFIX", "edge")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Output.Verbosity != 2 {
		t.Errorf("Expected verbosity 2 from env, got %d", cfg.Output.Verbosity)
	}
	if cfg.Metrics.Prefix != "edge" {
		t.Errorf("Expected prefix edge from env, got %s", cfg.Metrics.Prefix)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
output:
  verbosity: 1
metrics:
  statsd: "localhost:8125"
`)

	flags := pflag.NewFlagSet("sniffer", pflag.ContinueOnError)
	flags.CountP("verbose", "v", "")
	flags.String("statsd", "", "")
	flags.Duration("flush-interval", time.Second, "")
	flags.Bool("promisc", false, "")
	if err := flags.Parse([]string{"-vvv", "--flush-interval", "5s"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Output.Verbosity != 3 {
		t.Errorf("Expected verbosity 3 from flags, got %d", cfg.Output.Verbosity)
	}
	if cfg.Metrics.FlushInterval != 5*time.Second {
		t.Errorf("Expected 5s flush interval from flags, got %v", cfg.Metrics.FlushInterval)
	}
	// unchanged flags do not mask the file
	if cfg.Metrics.Statsd != "localhost:8125" {
		t.Errorf("Expected statsd from file, got %q", cfg.Metrics.Statsd)
	}
	if cfg.Capture.Promisc {
		t.Error("Expected promisc to stay off")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"verbosity too high", "output:\n  verbosity: 5\n"},
		{"unknown layout", "output:\n  layout: xml\n"},
		{"unknown color", "output:\n  color: sometimes\n"},
		{"file and device", "capture:\n  device: eth0\n  file: dump.pcap\n"},
		{"afpacket from file", "capture:\n  afpacket: true\n  file: dump.pcap\n"},
		{"bad filter", "capture:\n  filter: \"tcp port (\"\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"zero flush interval", "metrics:\n  flush_interval: 0s\n"},
		{"bad statsd address", "metrics:\n  statsd: \"not an address\"\n"},
		{"bad listen address", "metrics:\n  listen: \"9091\"\n"},
		{"bad websocket port", "web:\n  listen: \":http-alt\"\n"},
		{"zero buffer", "pipeline:\n  buffer_size: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content), nil); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml"), nil); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}
