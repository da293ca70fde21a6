package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"firestige.xyz/sniffer/internal/log"
	"firestige.xyz/sniffer/internal/source"
)

// EnvPrefix prefixes environment overrides, e.g. SNIFFER_OUTPUT_VERBOSITY.
const EnvPrefix = "SNIFFER"

// flagKeys maps configuration keys to the command-line flags that override
// them. Flags missing from the set are skipped.
var flagKeys = map[string]string{
	"capture.promisc":        "promisc",
	"capture.file":           "read",
	"capture.filter":         "filter",
	"capture.afpacket":       "afpacket",
	"pipeline.workers":       "cpus",
	"output.verbosity":       "verbose",
	"output.local_only":      "local-only",
	"output.quiet":           "quiet",
	"output.stats":           "stats",
	"metrics.statsd":         "statsd",
	"metrics.flush_interval": "flush-interval",
	"metrics.listen":         "metrics-listen",
	"web.listen":             "ws-listen",
	"sandbox.user":           "user",
	"log.level":              "log-level",
}

// Load reads path (optional), applies SNIFFER_ environment overrides and
// any changed flags, and validates the result.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	// Capture defaults
	v.SetDefault("capture.device", "")
	v.SetDefault("capture.file", "")
	v.SetDefault("capture.promisc", false)
	v.SetDefault("capture.snaplen", source.DefaultSnapLen)
	v.SetDefault("capture.timeout", source.DefaultTimeout)
	v.SetDefault("capture.filter", "")
	v.SetDefault("capture.afpacket", false)
	v.SetDefault("capture.buffer_mb", 8)
	v.SetDefault("capture.fanout_id", 0)

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.buffer_size", 1024)

	// Output defaults
	v.SetDefault("output.layout", "compact")
	v.SetDefault("output.verbosity", 0)
	v.SetDefault("output.color", "auto")
	v.SetDefault("output.quiet", false)
	v.SetDefault("output.local_only", false)
	v.SetDefault("output.stats", false)

	// Metrics defaults
	v.SetDefault("metrics.statsd", "")
	v.SetDefault("metrics.prefix", "sniffer")
	v.SetDefault("metrics.flush_interval", 10*time.Second)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.path", "/metrics")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pattern", log.DefaultPattern)
	v.SetDefault("log.time", log.DefaultTime)
	v.SetDefault("log.caller", false)
	v.SetDefault("log.file.filename", "")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.compress", true)

	// Sandbox defaults
	v.SetDefault("sandbox.user", "")
	v.SetDefault("sandbox.chroot", "")

	// Web defaults
	v.SetDefault("web.listen", "")
	v.SetDefault("web.path", "/ws")
}
