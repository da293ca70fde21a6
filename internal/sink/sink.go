// Package sink defines where accepted records go.
package sink

import (
	"go.uber.org/multierr"

	"firestige.xyz/sniffer/internal/core"
)

// Sink consumes records on the pipeline's consumer goroutine. Write must not
// keep rec.Packet beyond the call unless it treats it as read-only.
type Sink interface {
	Name() string
	Write(rec core.Record) error
	Close() error
}

// CloseAll closes every sink and combines their errors.
func CloseAll(sinks []Sink) error {
	var err error
	for _, s := range sinks {
		err = multierr.Append(err, s.Close())
	}
	return err
}
