package pipeline

import (
	"firestige.xyz/sniffer/internal/core"
	"firestige.xyz/sniffer/internal/filter"
	"firestige.xyz/sniffer/internal/metrics"
	"firestige.xyz/sniffer/internal/sink"
	"firestige.xyz/sniffer/internal/source"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

func NewBuilder() *Builder {
	return &Builder{
		config: Config{
			BufferSize: DefaultBufferSize,
		},
	}
}

func (b *Builder) WithSource(src source.Source) *Builder {
	b.config.Source = src
	return b
}

func (b *Builder) WithLink(link core.LinkStrategy) *Builder {
	b.config.Link = link
	return b
}

// WithWorkers sets the decode pool size; zero means GOMAXPROCS.
func (b *Builder) WithWorkers(n int) *Builder {
	b.config.Workers = n
	return b
}

func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

// WithFilters appends filters to the chain. They run in the order added.
func (b *Builder) WithFilters(filters ...filter.Filter) *Builder {
	b.config.Filters = append(b.config.Filters, filters...)
	return b
}

// WithPolicy appends the verbosity policy to the chain.
func (b *Builder) WithPolicy(verbosity int) *Builder {
	return b.WithFilters(filter.Policy{Verbosity: verbosity})
}

func (b *Builder) WithSinks(sinks ...sink.Sink) *Builder {
	b.config.Sinks = append(b.config.Sinks, sinks...)
	return b
}

func (b *Builder) WithPrometheus(p *metrics.Pipeline) *Builder {
	b.config.Prom = p
	return b
}

func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
