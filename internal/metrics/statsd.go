package metrics

import (
	"fmt"
	"sort"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
)

// StatsdSink delivers flushed values as statsd counters.
type StatsdSink struct {
	client statsd.Statter
}

// NewStatsdSink connects a buffered UDP statsd client to addr. Metric names
// are prefixed with prefix.
func NewStatsdSink(addr, prefix string) (*StatsdSink, error) {
	client, err := statsd.NewClientWithConfig(&statsd.ClientConfig{
		Address:       addr,
		Prefix:        prefix,
		UseBuffered:   true,
		FlushInterval: 300 * time.Millisecond,
		TagFormat:     statsd.SuffixOctothorpe,
	})
	if err != nil {
		return nil, fmt.Errorf("statsd client %s: %w", addr, err)
	}
	return &StatsdSink{client: client}, nil
}

func (s *StatsdSink) Count(name string, value int64, tags map[string]string) error {
	return s.client.Inc(name, value, 1.0, statsdTags(tags)...)
}

func (s *StatsdSink) Close() error {
	return s.client.Close()
}

func statsdTags(tags map[string]string) []statsd.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]statsd.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, statsd.Tag{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
