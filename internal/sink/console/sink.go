// Package console prints records to a terminal or any io.Writer.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mgutz/ansi"
	"gopkg.in/yaml.v3"

	"firestige.xyz/sniffer/internal/core"
	"firestige.xyz/sniffer/internal/filter"
	"firestige.xyz/sniffer/internal/sink"
)

const Name = "console"

// Layout selects how a record is rendered.
type Layout int

const (
	// Compact prints one line per record.
	Compact Layout = iota
	// Detailed prints every header as a YAML document.
	Detailed
	// JSON prints one JSON object per line.
	JSON
)

// ParseLayout maps a layout name to its value.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "", "compact":
		return Compact, nil
	case "detailed", "yaml":
		return Detailed, nil
	case "json":
		return JSON, nil
	}
	return Compact, fmt.Errorf("unknown output layout %q", s)
}

func (l Layout) String() string {
	switch l {
	case Detailed:
		return "detailed"
	case JSON:
		return "json"
	}
	return "compact"
}

// colour per noise level
var levelColors = [filter.MaxVerbosity + 1]string{"green+b", "yellow", "cyan", "white", "red"}

// Sink writes records to w. It is safe for concurrent use.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	layout Layout
	colors []func(string) string
	yaml   *yaml.Encoder
	json   *json.Encoder
}

var _ sink.Sink = (*Sink)(nil)

// NewSink creates a console sink. Colour applies to the compact layout only.
func NewSink(w io.Writer, layout Layout, color bool) *Sink {
	s := &Sink{w: w, layout: layout}
	switch layout {
	case Detailed:
		s.yaml = yaml.NewEncoder(w)
		s.yaml.SetIndent(2)
	case JSON:
		s.json = json.NewEncoder(w)
	}
	if color && layout == Compact {
		s.colors = make([]func(string) string, len(levelColors))
		for i, c := range levelColors {
			s.colors[i] = ansi.ColorFunc(c)
		}
	}
	return s
}

func (s *Sink) Name() string { return Name }

func (s *Sink) Write(rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.layout {
	case Detailed:
		return s.yaml.Encode(sink.NewDocument(rec))
	case JSON:
		return s.json.Encode(sink.NewDocument(rec))
	}

	line := Format(rec.Packet)
	if s.colors != nil {
		line = s.colors[filter.NoiseLevel(rec.Packet)](line)
	}
	_, err := fmt.Fprintln(s.w, line)
	return err
}

// Close flushes the YAML stream. The writer itself is left open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.yaml != nil {
		return s.yaml.Close()
	}
	return nil
}
