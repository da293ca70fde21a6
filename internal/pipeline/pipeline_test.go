package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"firestige.xyz/sniffer/internal/core"
	"firestige.xyz/sniffer/internal/filter"
	"firestige.xyz/sniffer/internal/metrics"
	"firestige.xyz/sniffer/internal/sink"
	"firestige.xyz/sniffer/internal/source"
)

// Mock implementations for testing

type step struct {
	data []byte
	err  error
}

// mockSource replays steps and then reports io.EOF. Like a real capture
// handle it reuses one buffer for every frame.
type mockSource struct {
	steps  []step
	next   int
	buf    []byte
	closed bool
}

func (m *mockSource) ReadFrame() ([]byte, gopacket.CaptureInfo, error) {
	if m.next >= len(m.steps) {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	s := m.steps[m.next]
	m.next++
	if s.err != nil {
		return nil, gopacket.CaptureInfo{}, s.err
	}
	m.buf = append(m.buf[:0], s.data...)
	return m.buf, gopacket.CaptureInfo{
		Timestamp:     time.Unix(int64(m.next), 0),
		CaptureLength: len(s.data),
		Length:        len(s.data),
	}, nil
}

func (m *mockSource) LinkType() layers.LinkType { return layers.LinkTypeRaw }

func (m *mockSource) Close() error {
	m.closed = true
	return nil
}

// idleSource times out until its context is cancelled.
type idleSource struct{}

func (idleSource) ReadFrame() ([]byte, gopacket.CaptureInfo, error) {
	time.Sleep(time.Millisecond)
	return nil, gopacket.CaptureInfo{}, source.ErrTimeout
}

func (idleSource) LinkType() layers.LinkType { return layers.LinkTypeRaw }
func (idleSource) Close() error              { return nil }

type recordingSink struct {
	name    string
	fail    bool
	mu      sync.Mutex
	records []core.Record
	closed  bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(rec core.Record) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func (s *recordingSink) Records() []core.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Record(nil), s.records...)
}

// textFrame is a raw IPv4/UDP datagram carrying "frame <n>".
func textFrame(n int) []byte {
	payload := []byte(fmt.Sprintf("frame %d", n))
	udpLen := 8 + len(payload)
	total := 20 + udpLen
	b := []byte{
		0x45, 0x00, byte(total >> 8), byte(total), 0x00, 0x01, 0x00, 0x00, 64, 17, 0x00, 0x00,
		10, 0, 0, 1,
		10, 0, 0, 2,
		0x03, 0xe8, 0x07, 0xd0, byte(udpLen >> 8), byte(udpLen), 0, 0,
	}
	return append(b, payload...)
}

// Test cases

func TestPipeline_DeliversEveryFrame(t *testing.T) {
	const frames = 10
	src := &mockSource{}
	for i := 1; i <= frames; i++ {
		src.steps = append(src.steps, step{data: textFrame(i)})
	}
	out := &recordingSink{name: "recording"}
	prom := metrics.NewPipeline(nil)

	p := New(Config{
		Source:     src,
		Link:       core.LinkRawIP,
		Workers:    4,
		BufferSize: 2,
		Filters:    []filter.Filter{filter.Policy{Verbosity: filter.MaxVerbosity}},
		Sinks:      []sink.Sink{out},
		Prom:       prom,
	})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	records := out.Records()
	if len(records) != frames {
		t.Fatalf("Expected %d records, got %d", frames, len(records))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	for i, rec := range records {
		want := uint64(i + 1)
		if rec.Seq != want {
			t.Errorf("Expected seq %d, got %d", want, rec.Seq)
		}
		text, ok := core.ApplicationOf(rec.Packet).(*core.Text)
		if !ok {
			t.Errorf("Record %d: expected *core.Text, got %T", rec.Seq, core.ApplicationOf(rec.Packet))
			continue
		}
		// the source reuses its buffer, so this fails unless frames were copied
		if text.Text != fmt.Sprintf("frame %d", rec.Seq) {
			t.Errorf("Record %d carries %q", rec.Seq, text.Text)
		}
		if !rec.Timestamp.Equal(time.Unix(int64(rec.Seq), 0)) {
			t.Errorf("Record %d has timestamp %v", rec.Seq, rec.Timestamp)
		}
	}

	stats := p.Stats()
	if stats.Captured != frames || stats.Decoded != frames || stats.Emitted != frames {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if got := testutil.ToFloat64(prom.FramesCaptured); got != frames {
		t.Errorf("Expected %d frames captured in prometheus, got %v", frames, got)
	}
	if got := testutil.ToFloat64(prom.FramesDecoded.WithLabelValues("transport")); got != frames {
		t.Errorf("Expected %d transport frames, got %v", frames, got)
	}
	if p.Running() {
		t.Error("Expected pipeline to be stopped")
	}
}

func TestPipeline_RetriesTimeout(t *testing.T) {
	src := &mockSource{steps: []step{
		{data: textFrame(1)},
		{err: source.ErrTimeout},
		{err: source.ErrTimeout},
		{data: textFrame(2)},
	}}
	out := &recordingSink{name: "recording"}

	p := NewBuilder().WithSource(src).WithLink(core.LinkRawIP).WithPolicy(4).WithSinks(out).Build()
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := len(out.Records()); n != 2 {
		t.Errorf("Expected 2 records, got %d", n)
	}
	if stats := p.Stats(); stats.Timeouts != 2 {
		t.Errorf("Expected 2 timeouts, got %d", stats.Timeouts)
	}
}

func TestPipeline_CaptureErrorTerminates(t *testing.T) {
	boom := errors.New("device went away")
	src := &mockSource{steps: []step{
		{data: textFrame(1)},
		{data: textFrame(2)},
		{err: boom},
		{data: textFrame(3)},
	}}
	out := &recordingSink{name: "recording"}

	p := NewBuilder().WithSource(src).WithLink(core.LinkRawIP).WithWorkers(2).WithPolicy(4).WithSinks(out).Build()
	err := p.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected capture error, got %v", err)
	}

	// frames read before the error are still delivered
	if n := len(out.Records()); n != 2 {
		t.Errorf("Expected 2 records, got %d", n)
	}
	if src.next != 3 {
		t.Errorf("Expected capture to stop after the error, read %d steps", src.next)
	}
}

func TestPipeline_Filter(t *testing.T) {
	src := &mockSource{steps: []step{
		{data: textFrame(1)},
		{data: []byte{0x00, 0x01}}, // not IP
		{data: textFrame(2)},
		{data: []byte{}},
	}}
	out := &recordingSink{name: "recording"}

	p := NewBuilder().WithSource(src).WithLink(core.LinkRawIP).WithPolicy(2).WithSinks(out).Build()
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, rec := range out.Records() {
		if _, ok := rec.Packet.(*core.Raw); ok {
			t.Errorf("Raw record %d was not filtered", rec.Seq)
		}
	}
	stats := p.Stats()
	if stats.Emitted != 2 || stats.Filtered != 2 {
		t.Errorf("Expected 2 emitted and 2 filtered, got %+v", stats)
	}
	if stats.RawFallbacks != 2 {
		t.Errorf("Expected 2 raw fallbacks, got %d", stats.RawFallbacks)
	}
}

func TestPipeline_SinkErrors(t *testing.T) {
	src := &mockSource{steps: []step{{data: textFrame(1)}, {data: textFrame(2)}}}
	broken := &recordingSink{name: "broken", fail: true}
	out := &recordingSink{name: "recording"}
	prom := metrics.NewPipeline(nil)

	p := NewBuilder().WithSource(src).WithLink(core.LinkRawIP).WithPolicy(4).
		WithSinks(broken, out).WithPrometheus(prom).Build()
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if n := len(out.Records()); n != 2 {
		t.Errorf("Expected healthy sink to get 2 records, got %d", n)
	}
	if stats := p.Stats(); stats.SinkErrors != 2 {
		t.Errorf("Expected 2 sink errors, got %d", stats.SinkErrors)
	}
	if got := testutil.ToFloat64(prom.SinkErrors.WithLabelValues("broken")); got != 2 {
		t.Errorf("Expected 2 prometheus sink errors, got %v", got)
	}
}

func TestPipeline_RunTwice(t *testing.T) {
	p := NewBuilder().WithSource(idleSource{}).WithLink(core.LinkEthernet).Build()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	deadline := time.Now().Add(time.Second)
	for !p.Running() {
		if time.Now().After(deadline) {
			t.Fatal("pipeline did not start")
		}
		time.Sleep(time.Millisecond)
	}

	if err := p.Run(ctx); !errors.Is(err, core.ErrPipelineRunning) {
		t.Errorf("Expected ErrPipelineRunning, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
	if p.Stats().Timeouts == 0 {
		t.Error("Expected timeouts to be counted")
	}
}

func TestPipeline_Close(t *testing.T) {
	src := &mockSource{}
	out := &recordingSink{name: "recording"}
	p := NewBuilder().WithSource(src).WithSinks(out).Build()

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !src.closed || !out.closed {
		t.Error("Expected source and sinks to be closed")
	}
}

func TestBuilder_FluentAPI(t *testing.T) {
	p := NewBuilder().
		WithLink(core.LinkLinuxCooked).
		WithWorkers(3).
		WithBufferSize(16).
		WithFilters(filter.NewCounter()).
		WithPolicy(1).
		Build()

	if p.cfg.Workers != 3 || p.cfg.BufferSize != 16 {
		t.Errorf("Unexpected config %+v", p.cfg)
	}
	if p.cfg.Link != core.LinkLinuxCooked {
		t.Errorf("Expected cooked link, got %v", p.cfg.Link)
	}
	if len(p.cfg.Filters) != 2 {
		t.Fatalf("Expected 2 filters, got %d", len(p.cfg.Filters))
	}
	if policy, ok := p.cfg.Filters[1].(filter.Policy); !ok || policy.Verbosity != 1 {
		t.Errorf("Expected policy last, got %#v", p.cfg.Filters[1])
	}
	if p.cfg.Prom == nil {
		t.Error("Expected default prometheus collectors")
	}
}
