package filter

import "firestige.xyz/sniffer/internal/core"

// Chain runs filters in order and hands surviving records to handler. Each
// filter receives the rest of the chain and continues it with Filter.
type Chain struct {
	head    Filter
	rest    *Chain
	handler func(rec *core.Record)
	filters []Filter
}

func NewChain(handler func(rec *core.Record), filters ...Filter) *Chain {
	filters = append([]Filter(nil), filters...)

	c := &Chain{handler: handler, filters: filters}
	for i := len(filters) - 1; i >= 0; i-- {
		c = &Chain{head: filters[i], rest: c, handler: handler, filters: filters}
	}
	return c
}

// Filters returns the filters in the order they run.
func (c *Chain) Filters() []Filter {
	return c.filters
}

func (c *Chain) Filter(rec *core.Record) {
	if c.head == nil {
		c.handler(rec)
		return
	}
	c.head.Filter(rec, c.rest)
}
