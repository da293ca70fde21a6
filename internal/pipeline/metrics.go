package pipeline

import (
	"go.uber.org/atomic"
)

// Metrics contains the pipeline's own counters. They are updated from the
// capture, worker and consumer goroutines.
type Metrics struct {
	Captured     atomic.Int64
	Timeouts     atomic.Int64
	Decoded      atomic.Int64
	RawFallbacks atomic.Int64
	Consumed     atomic.Int64
	Emitted      atomic.Int64
	Filtered     atomic.Int64
	SinkErrors   atomic.Int64
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Captured     int64
	Timeouts     int64
	Decoded      int64
	RawFallbacks int64
	Consumed     int64
	Emitted      int64
	Filtered     int64
	SinkErrors   int64
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Captured:     m.Captured.Load(),
		Timeouts:     m.Timeouts.Load(),
		Decoded:      m.Decoded.Load(),
		RawFallbacks: m.RawFallbacks.Load(),
		Consumed:     m.Consumed.Load(),
		Emitted:      m.Emitted.Load(),
		Filtered:     m.Filtered.Load(),
		SinkErrors:   m.SinkErrors.Load(),
	}
}

// Fields renders the stats for structured logging.
func (s Stats) Fields() map[string]interface{} {
	return map[string]interface{}{
		"captured":      s.Captured,
		"timeouts":      s.Timeouts,
		"decoded":       s.Decoded,
		"raw_fallbacks": s.RawFallbacks,
		"emitted":       s.Emitted,
		"filtered":      s.Filtered,
		"sink_errors":   s.SinkErrors,
	}
}
