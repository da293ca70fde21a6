package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	samples []Sample
	fail    map[string]bool
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[name] {
		return errors.New("unreachable")
	}
	s.samples = append(s.samples, Sample{Name: name, Value: value, Tags: tags})
	return nil
}

func (s *recordingSink) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

func TestCounterConcurrentAdd(t *testing.T) {
	r := NewRegistry()
	const workers, perWorker = 8, 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := r.Counter("http.requests", nil)
			for j := 0; j < perWorker; j++ {
				c.Add(1)
			}
		}()
	}
	wg.Wait()

	samples := r.Flush()
	require.Len(t, samples, 1)
	assert.Equal(t, int64(workers*perWorker), samples[0].Value)

	// flushing resets
	assert.Equal(t, int64(0), r.Flush()[0].Value)
}

func TestCounterFlushDuringAdds(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("http.requests", nil)
	const workers, perWorker = 8, 100000

	var total int64
	stop := make(chan struct{})
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		for {
			select {
			case <-stop:
				return
			default:
				total += r.Flush()[0].Value
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.Add(1)
			}
		}()
	}
	wg.Wait()
	close(stop)
	<-flushed

	total += r.Flush()[0].Value
	assert.Equal(t, int64(workers*perWorker), total)
}

func TestCounterAddReturnsPrevious(t *testing.T) {
	c := NewRegistry().Counter("c", nil)
	assert.Equal(t, int64(0), c.Add(5))
	assert.Equal(t, int64(5), c.Add(2))
	c.Inc()
	assert.Equal(t, int64(8), c.Value())
}

func TestCardinality(t *testing.T) {
	r := NewRegistry()
	c := r.Cardinality("http.hosts", map[string]string{"proto": "http"})

	assert.True(t, c.Add("example.com"))
	assert.False(t, c.Add("example.com"))
	assert.True(t, c.Add("example.org"))
	assert.Equal(t, 2, c.Len())

	samples := r.Flush()
	require.Len(t, samples, 1)
	assert.Equal(t, Sample{Name: "http.hosts", Value: 2, Tags: map[string]string{"proto": "http"}}, samples[0])

	// drained: the same key is new again
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Add("example.com"))
}

func TestRegistryIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("req", map[string]string{"method": "GET", "dir": "in"})
	b := r.Counter("req", map[string]string{"dir": "in", "method": "GET"})
	c := r.Counter("req", map[string]string{"method": "POST"})

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Same(t, r.Cardinality("hosts", nil), r.Cardinality("hosts", nil))
	assert.Len(t, r.Flush(), 3)
}

func TestRegistryTagsAreCopied(t *testing.T) {
	r := NewRegistry()
	tags := map[string]string{"method": "GET"}
	r.Counter("req", tags).Inc()
	tags["method"] = "PUT"

	assert.Equal(t, map[string]string{"method": "GET"}, r.Flush()[0].Tags)
}

func TestSend(t *testing.T) {
	r := NewRegistry()
	r.Counter("requests", nil).Add(3)
	r.Cardinality("hosts", nil).Add("a")
	r.Counter("broken", nil).Add(1)

	sink := &recordingSink{fail: map[string]bool{"broken": true}}
	err := r.Send(sink)
	assert.Error(t, err)

	assert.Equal(t, []Sample{
		{Name: "requests", Value: 3},
		{Name: "hosts", Value: 1},
	}, sink.Samples())

	// values were reset even for the failed metric
	for _, s := range r.Flush() {
		assert.Zero(t, s.Value, s.Name)
	}
}

func TestNopSink(t *testing.T) {
	r := NewRegistry()
	r.Counter("x", nil).Inc()
	assert.NoError(t, r.Send(NopSink{}))
}

func TestFlusherFinalFlush(t *testing.T) {
	r := NewRegistry()
	sink := &recordingSink{}
	f := NewFlusher(r, sink, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	r.Counter("requests", nil).Add(4)
	cancel()
	<-done

	assert.Equal(t, []Sample{{Name: "requests", Value: 4}}, sink.Samples())
}

func TestFlusherTicks(t *testing.T) {
	r := NewRegistry()
	r.Counter("requests", nil).Add(1)
	sink := &recordingSink{}
	f := NewFlusher(r, sink, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	assert.Eventually(t, func() bool {
		for _, s := range sink.Samples() {
			if s.Value == 1 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestStatsdTags(t *testing.T) {
	tags := statsdTags(map[string]string{"method": "GET", "host": "a"})
	require.Len(t, tags, 2)
	assert.Equal(t, "host", tags[0][0])
	assert.Equal(t, "method", tags[1][0])
	assert.Nil(t, statsdTags(nil))
}

func TestPipelineCollectorsAndServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPipeline(reg)
	p.FramesCaptured.Add(3)
	p.FramesDecoded.WithLabelValues("tcp").Inc()

	srv := NewServer("127.0.0.1:0", "", reg)
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "sniffer_frames_captured_total 3")
	assert.Contains(t, string(body), `sniffer_frames_decoded_total{layer="tcp"} 1`)
}
