// Package pipeline drives capture, parallel decoding and output.
//
// One goroutine reads frames from the source and submits each to a bounded
// worker pool. Workers decode and send records over a single channel to the
// consumer, which runs the filter chain and writes to every sink. Records
// reach the consumer in completion order, not capture order.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/tevino/abool"
	"go.uber.org/multierr"

	"firestige.xyz/sniffer/internal/core"
	"firestige.xyz/sniffer/internal/core/decoder"
	"firestige.xyz/sniffer/internal/filter"
	"firestige.xyz/sniffer/internal/log"
	"firestige.xyz/sniffer/internal/metrics"
	"firestige.xyz/sniffer/internal/sink"
	"firestige.xyz/sniffer/internal/source"
)

const DefaultBufferSize = 1024

// Config contains pipeline configuration.
type Config struct {
	Source     source.Source
	Link       core.LinkStrategy
	Workers    int // defaults to GOMAXPROCS
	BufferSize int // record channel capacity
	Filters    []filter.Filter
	Sinks      []sink.Sink
	Prom       *metrics.Pipeline // optional
}

// Pipeline runs once per capture session.
type Pipeline struct {
	cfg     Config
	running *abool.AtomicBool
	metrics Metrics
}

// New creates a pipeline. The link strategy must already be resolved.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Prom == nil {
		cfg.Prom = metrics.NewPipeline(nil)
	}
	return &Pipeline{cfg: cfg, running: abool.New()}
}

// Run captures until the source is exhausted, fails, or ctx is cancelled,
// and returns after every captured frame has been decoded and consumed.
// A capture error other than a timeout or end of file is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.SetToIf(false, true) {
		return core.ErrPipelineRunning
	}
	defer p.running.UnSet()

	p.cfg.Prom.Running.Set(1)
	defer p.cfg.Prom.Running.Set(0)

	logger := log.GetLogger().WithFields(map[string]interface{}{
		"workers": p.cfg.Workers,
		"link":    p.cfg.Link,
	})
	logger.Info("pipeline starting")

	records := make(chan core.Record, p.cfg.BufferSize)
	captureErr := make(chan error, 1)
	go func() {
		captureErr <- p.capture(ctx, records)
	}()

	p.consume(records)

	err := <-captureErr
	stats := p.Stats()
	if err != nil {
		logger.WithFields(stats.Fields()).WithError(err).Error("pipeline stopped on capture error")
		return err
	}
	logger.WithFields(stats.Fields()).Info("pipeline stopped")
	return nil
}

// capture owns the source. It closes records once every submitted frame has
// been decoded.
func (p *Pipeline) capture(ctx context.Context, records chan<- core.Record) error {
	workers := pool.New().WithMaxGoroutines(p.cfg.Workers)
	defer func() {
		workers.Wait()
		close(records)
	}()

	var seq uint64
	for ctx.Err() == nil {
		data, ci, err := p.cfg.Source.ReadFrame()
		if errors.Is(err, source.ErrTimeout) {
			p.metrics.Timeouts.Inc()
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		seq++
		frame := core.Frame{
			Seq:        seq,
			Data:       bytes.Clone(data),
			Timestamp:  ci.Timestamp,
			CaptureLen: ci.CaptureLength,
			OrigLen:    ci.Length,
			Link:       p.cfg.Link,
		}
		p.metrics.Captured.Inc()
		p.cfg.Prom.FramesCaptured.Inc()

		workers.Go(func() {
			records <- p.decode(frame)
		})
	}
	return nil
}

func (p *Pipeline) decode(f core.Frame) core.Record {
	start := time.Now()
	pkt := decoder.Decode(f.Data, f.Link)
	p.cfg.Prom.DecodeLatencySeconds.Observe(time.Since(start).Seconds())

	p.metrics.Decoded.Inc()
	if _, ok := pkt.(*core.Raw); ok {
		p.metrics.RawFallbacks.Inc()
	}
	p.cfg.Prom.FramesDecoded.WithLabelValues(layerOf(pkt)).Inc()

	length := f.OrigLen
	if length == 0 {
		length = len(f.Data)
	}
	return core.Record{Seq: f.Seq, Timestamp: f.Timestamp, Length: length, Packet: pkt}
}

// consume drains records until the channel is closed.
func (p *Pipeline) consume(records <-chan core.Record) {
	emitted := filter.NewCounter()
	filters := append(append([]filter.Filter(nil), p.cfg.Filters...), emitted)
	chain := filter.NewChain(p.dispatch, filters...)

	for rec := range records {
		p.metrics.Consumed.Inc()
		before := emitted.Count()
		chain.Filter(&rec)
		if emitted.Count() == before {
			p.metrics.Filtered.Inc()
			p.cfg.Prom.RecordsFiltered.Inc()
		}
	}
}

func (p *Pipeline) dispatch(rec *core.Record) {
	p.metrics.Emitted.Inc()
	p.cfg.Prom.RecordsEmitted.Inc()
	for _, s := range p.cfg.Sinks {
		if err := s.Write(*rec); err != nil {
			p.metrics.SinkErrors.Inc()
			p.cfg.Prom.SinkErrors.WithLabelValues(s.Name()).Inc()
			log.GetLogger().WithError(err).WithField("sink", s.Name()).Warn("sink write failed")
		}
	}
}

// Running reports whether Run is in progress.
func (p *Pipeline) Running() bool {
	return p.running.IsSet()
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}

// Close releases the source and every sink.
func (p *Pipeline) Close() error {
	var err error
	if p.cfg.Source != nil {
		err = multierr.Append(err, p.cfg.Source.Close())
	}
	return multierr.Append(err, sink.CloseAll(p.cfg.Sinks))
}

func layerOf(pkt core.Packet) string {
	switch core.NetworkOf(pkt).(type) {
	case nil:
		return "raw"
	case *core.UnknownNetwork:
		return "link"
	case *core.ARP:
		return "network"
	}
	switch core.ApplicationOf(pkt).(type) {
	case nil:
		if _, ok := core.TransportOf(pkt).(*core.UnknownTransport); ok {
			return "network"
		}
		return "transport"
	case *core.Text, *core.Binary, *core.Empty:
		return "transport"
	}
	return "application"
}
