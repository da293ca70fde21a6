package metrics

import (
	"context"
	"time"

	"firestige.xyz/sniffer/internal/log"
)

// Flusher sends a registry to a sink on a fixed interval.
type Flusher struct {
	registry *Registry
	sink     Sink
	interval time.Duration
}

func NewFlusher(registry *Registry, sink Sink, interval time.Duration) *Flusher {
	return &Flusher{registry: registry, sink: sink, interval: interval}
}

// Run blocks until ctx is cancelled, sending on every tick and once more on
// the way out so nothing counted before shutdown is lost.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	logger := log.GetLogger().WithField("interval", f.interval)
	logger.Debug("metrics flusher started")

	for {
		select {
		case <-ticker.C:
			_ = f.registry.Send(f.sink)
		case <-ctx.Done():
			_ = f.registry.Send(f.sink)
			logger.Debug("metrics flusher stopped")
			return
		}
	}
}
