// Package config handles configuration loading using viper.
package config

import (
	"errors"
	"net"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"firestige.xyz/sniffer/internal/filter"
	"firestige.xyz/sniffer/internal/log"
	"firestige.xyz/sniffer/internal/sandbox"
	"firestige.xyz/sniffer/internal/source"
)

// Config is the top-level configuration.
type Config struct {
	Capture  CaptureConfig    `mapstructure:"capture"`
	Pipeline PipelineConfig   `mapstructure:"pipeline"`
	Output   OutputConfig     `mapstructure:"output"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
	Log      log.LoggerConfig `mapstructure:"log"`
	Sandbox  sandbox.Options  `mapstructure:"sandbox"`
	Web      WebConfig        `mapstructure:"web"`
}

// ─── Capture ───

// CaptureConfig selects and configures the capture handle. File and Device
// are mutually exclusive; with neither the default device is used.
type CaptureConfig struct {
	Device       string        `mapstructure:"device"`
	File         string        `mapstructure:"file"`
	Promisc      bool          `mapstructure:"promisc"`
	SnapLen      int           `mapstructure:"snaplen"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Filter       string        `mapstructure:"filter"` // BPF expression
	AFPacket     bool          `mapstructure:"afpacket"`
	BufferSizeMB int           `mapstructure:"buffer_mb"` // AF_PACKET ring size
	FanoutID     uint16        `mapstructure:"fanout_id"`
}

// Options converts the capture section for the source package.
func (c CaptureConfig) Options() source.Options {
	return source.Options{
		Device:       c.Device,
		SnapLen:      c.SnapLen,
		Promisc:      c.Promisc,
		Timeout:      c.Timeout,
		Filter:       c.Filter,
		BufferSizeMB: c.BufferSizeMB,
		FanoutID:     c.FanoutID,
	}
}

func (c CaptureConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Device, validation.When(c.File != "", validation.Empty.Error("cannot be combined with capture.file"))),
		validation.Field(&c.AFPacket, validation.When(c.File != "", validation.Empty.Error("cannot read a file"))),
		validation.Field(&c.SnapLen, validation.Min(0), validation.Max(262144)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Filter, validation.By(bpfFilter)),
		validation.Field(&c.BufferSizeMB, validation.Min(0)),
	)
}

// ─── Pipeline ───

// PipelineConfig sizes the decode pool.
type PipelineConfig struct {
	Workers    int `mapstructure:"workers"` // 0 = GOMAXPROCS
	BufferSize int `mapstructure:"buffer_size"`
}

func (c PipelineConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.BufferSize, validation.Min(1)),
	)
}

// ─── Output ───

// OutputConfig controls what reaches the console and how it looks.
type OutputConfig struct {
	Layout    string `mapstructure:"layout"`     // compact | detailed | json
	Verbosity int    `mapstructure:"verbosity"`  // 0..4
	Color     string `mapstructure:"color"`      // auto | always | never
	Quiet     bool   `mapstructure:"quiet"`      // no console output
	LocalOnly bool   `mapstructure:"local_only"` // keep only IPv4 packets addressed to the device
	Stats     bool   `mapstructure:"stats"`      // aggregate HTTP/TLS/DNS into metrics
}

func (c OutputConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Layout, validation.In("compact", "detailed", "json")),
		validation.Field(&c.Verbosity, validation.Min(0), validation.Max(filter.MaxVerbosity)),
		validation.Field(&c.Color, validation.In("auto", "always", "never")),
	)
}

// ─── Metrics ───

// MetricsConfig configures statsd delivery and the Prometheus endpoint.
type MetricsConfig struct {
	Statsd        string        `mapstructure:"statsd"` // host:port, empty disables
	Prefix        string        `mapstructure:"prefix"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Listen        string        `mapstructure:"listen"` // Prometheus, empty disables
	Path          string        `mapstructure:"path"`
}

func (c MetricsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Statsd, is.DialString),
		validation.Field(&c.FlushInterval, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.Listen, validation.By(listenAddr)),
		validation.Field(&c.Path, validation.Required),
	)
}

// ─── Web ───

// WebConfig configures the websocket stream.
type WebConfig struct {
	Listen string `mapstructure:"listen"` // empty disables
	Path   string `mapstructure:"path"`
}

func (c WebConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Listen, validation.By(listenAddr)),
		validation.Field(&c.Path, validation.Required),
	)
}

// Validate checks every section.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Capture),
		validation.Field(&c.Pipeline),
		validation.Field(&c.Output),
		validation.Field(&c.Metrics),
		validation.Field(&c.Log, validation.By(logLevel)),
		validation.Field(&c.Web),
	)
}

func init() {
	validation.ErrorTag = "mapstructure"
}

var logLevels = validation.In("trace", "debug", "info", "warn", "warning", "error", "fatal", "panic")

func logLevel(value interface{}) error {
	cfg, _ := value.(log.LoggerConfig)
	return validation.Validate(cfg.Level, validation.Required, logLevels)
}

func bpfFilter(value interface{}) error {
	s, _ := value.(string)
	return source.ValidateFilter(s)
}

// listenAddr accepts host:port with an optional host, e.g. ":9091".
func listenAddr(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return errors.New("must be host:port")
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return errors.New("must have a numeric port")
	}
	return nil
}
