// Package stats turns HTTP, TLS and DNS traffic into aggregate metrics
// instead of printing it.
package stats

import (
	"net/netip"

	"firestige.xyz/sniffer/internal/core"
	"firestige.xyz/sniffer/internal/metrics"
	"firestige.xyz/sniffer/internal/sink"
)

const Name = "stats"

// methods are tagged as is; anything else is counted under otherMethod.
var methods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "DELETE": true,
	"CONNECT": true, "OPTIONS": true, "TRACE": true, "PATCH": true,
}

const otherMethod = "OTHER"

// Sink records into a metrics registry; a metrics.Flusher ships the values.
type Sink struct {
	registry *metrics.Registry

	records *metrics.Counter
	hosts   *metrics.Cardinality
	clients *metrics.Cardinality
	agents  *metrics.Cardinality
	sni     *metrics.Cardinality
	queries *metrics.Cardinality
}

var _ sink.Sink = (*Sink)(nil)

func NewSink(registry *metrics.Registry) *Sink {
	return &Sink{
		registry: registry,
		records:  registry.Counter("records", nil),
		hosts:    registry.Cardinality("http.hosts", nil),
		clients:  registry.Cardinality("http.clients", nil),
		agents:   registry.Cardinality("http.agents", nil),
		sni:      registry.Cardinality("tls.sni", nil),
		queries:  registry.Cardinality("dns.names", nil),
	}
}

func (s *Sink) Name() string { return Name }

func (s *Sink) Write(rec core.Record) error {
	s.records.Inc()

	switch app := core.ApplicationOf(rec.Packet).(type) {
	case *core.HTTPRequest:
		method := app.Method
		if !methods[method] {
			method = otherMethod
		}
		s.registry.Counter("http.requests", map[string]string{"method": method}).Inc()
		if app.Host != "" {
			s.hosts.Add(app.Host)
		}
		if app.UserAgent != "" {
			s.agents.Add(app.UserAgent)
		}
		if src := sourceAddr(rec.Packet); src.IsValid() {
			s.clients.Add(src.String())
		}
	case *core.TLSClientHello:
		s.registry.Counter("tls.client_hellos", nil).Inc()
		if app.Hostname != "" {
			s.sni.Add(app.Hostname)
		}
	case *core.DNS:
		if !app.Response {
			for _, q := range app.Questions {
				s.queries.Add(q)
			}
		}
	}
	return nil
}

func (s *Sink) Close() error { return nil }

func sourceAddr(p core.Packet) netip.Addr {
	switch n := core.NetworkOf(p).(type) {
	case *core.IPv4:
		return n.Header.SrcIP
	case *core.IPv6:
		return n.Header.SrcIP
	}
	return netip.Addr{}
}
