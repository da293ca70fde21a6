package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/multierr"

	"firestige.xyz/sniffer/internal/config"
	"firestige.xyz/sniffer/internal/core/decoder"
	"firestige.xyz/sniffer/internal/filter"
	"firestige.xyz/sniffer/internal/log"
	"firestige.xyz/sniffer/internal/metrics"
	"firestige.xyz/sniffer/internal/pipeline"
	"firestige.xyz/sniffer/internal/sandbox"
	"firestige.xyz/sniffer/internal/sink"
	"firestige.xyz/sniffer/internal/sink/console"
	"firestige.xyz/sniffer/internal/sink/stats"
	"firestige.xyz/sniffer/internal/sink/websocket"
	"firestige.xyz/sniffer/internal/source"
)

type runOptions struct {
	configFile string
	device     string
	detailed   bool
	json       bool
}

// loadConfig merges the config file, environment and flags, then applies
// the options that only exist on the command line.
func loadConfig(cmd *cobra.Command, opts runOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if opts.device != "" {
		cfg.Capture.Device = opts.device
	}
	switch {
	case opts.json:
		cfg.Output.Layout = "json"
	case opts.detailed:
		cfg.Output.Layout = "detailed"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func runSniffer(cmd *cobra.Command, opts runOptions) (err error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if err := log.Init(&cfg.Log); err != nil {
		return err
	}
	defer log.Close()

	session := uuid.New().String()
	logger := log.GetLogger().WithField("session", session)
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Debugf)); err != nil {
		logger.WithError(err).Warn("failed to set GOMAXPROCS")
	}

	if err := sandbox.Stage1(); err != nil {
		return err
	}

	src, device, err := openSource(cfg.Capture)
	if err != nil {
		return err
	}
	res := &captureResources{src: src}
	defer func() { err = res.release(err) }()

	link, err := decoder.ResolveLink(src.LinkType())
	if err != nil {
		return source.DescribeLinkType(err)
	}
	logger.WithFields(map[string]interface{}{
		"device": device,
		"file":   cfg.Capture.File,
		"link":   src.LinkType().String(),
	}).Info("capture opened")

	filters, err := buildFilters(cfg, device)
	if err != nil {
		return err
	}

	if !cfg.Output.Quiet {
		layout, err := console.ParseLayout(cfg.Output.Layout)
		if err != nil {
			return err
		}
		out, color := consoleWriter(cmd.OutOrStdout(), cfg.Output.Color)
		res.sinks = append(res.sinks, console.NewSink(out, layout, color))
	}

	if cfg.Web.Listen != "" {
		ws := websocket.NewSink(cfg.Web.Listen, cfg.Web.Path, session)
		if err := ws.Start(); err != nil {
			return err
		}
		res.sinks = append(res.sinks, ws)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewPipeline(reg)
	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, reg)
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	var stopFlusher func()
	if cfg.Output.Stats {
		registry := metrics.NewRegistry()
		res.sinks = append(res.sinks, stats.NewSink(registry))
		stopFlusher, err = startFlusher(cfg.Metrics, registry, session)
		if err != nil {
			return err
		}
	}

	if err := sandbox.Stage2(cfg.Sandbox); err != nil {
		if stopFlusher != nil {
			stopFlusher()
		}
		return err
	}

	p := pipeline.NewBuilder().
		WithSource(src).
		WithLink(link).
		WithWorkers(cfg.Pipeline.Workers).
		WithBufferSize(cfg.Pipeline.BufferSize).
		WithFilters(filters...).
		WithPolicy(cfg.Output.Verbosity).
		WithSinks(res.sinks...).
		WithPrometheus(prom).
		Build()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := p.Run(ctx)
	if stopFlusher != nil {
		stopFlusher()
	}
	res.handoff = true
	return multierr.Combine(runErr, p.Close())
}

// captureResources closes the source and sinks when startup fails. Once the
// pipeline has run it owns them and release leaves them alone.
type captureResources struct {
	src     source.Source
	sinks   []sink.Sink
	handoff bool
}

func (r *captureResources) release(err error) error {
	if err == nil || r.handoff {
		return err
	}
	return multierr.Combine(err, r.src.Close(), sink.CloseAll(r.sinks))
}

func openSource(c config.CaptureConfig) (source.Source, string, error) {
	if c.File != "" {
		src, err := source.OpenFile(c.File, c.Filter)
		return src, "", err
	}

	opts := c.Options()
	if opts.Device == "" {
		dev, err := source.DefaultDevice()
		if err != nil {
			return nil, "", err
		}
		opts.Device = dev
	}
	if c.AFPacket {
		src, err := source.OpenAFPacket(opts)
		return src, opts.Device, err
	}
	src, err := source.OpenLive(opts)
	return src, opts.Device, err
}

func buildFilters(cfg *config.Config, device string) ([]filter.Filter, error) {
	if !cfg.Output.LocalOnly {
		return nil, nil
	}
	if device == "" {
		return nil, errors.New("--local-only needs a capture device")
	}
	addr, err := source.DeviceIPv4(device)
	if err != nil {
		return nil, err
	}
	log.GetLogger().WithField("addr", addr.String()).Info("keeping packets addressed to the device only")
	return []filter.Filter{filter.LocalOnly{Addr: addr}}, nil
}

// consoleWriter decides on colour and wraps terminals that need ANSI
// translation.
func consoleWriter(out io.Writer, mode string) (io.Writer, bool) {
	switch mode {
	case "never":
		return out, false
	case "always":
		if f, ok := out.(*os.File); ok {
			return colorable.NewColorable(f), true
		}
		return out, true
	}
	f, ok := out.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return out, false
	}
	return colorable.NewColorable(f), true
}

// startFlusher ships the registry every interval. The returned func stops it
// after a final flush.
func startFlusher(c config.MetricsConfig, registry *metrics.Registry, session string) (func(), error) {
	var target metrics.Sink = metrics.NopSink{}
	var closer io.Closer
	if c.Statsd != "" {
		s, err := metrics.NewStatsdSink(c.Statsd, c.Prefix)
		if err != nil {
			return nil, err
		}
		target, closer = s, s
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		metrics.NewFlusher(registry, target, c.FlushInterval).Run(ctx)
	}()
	log.GetLogger().WithFields(map[string]interface{}{
		"session":  session,
		"statsd":   c.Statsd,
		"interval": c.FlushInterval,
	}).Info("statistics enabled")

	return func() {
		cancel()
		<-done
		if closer != nil {
			closer.Close()
		}
	}, nil
}
