package dag

import (
	"github.com/dshills/dagflow/dag/emit"
	"github.com/dshills/dagflow/dag/metrics"
)

// Option is a functional option for configuring a Scheduler. Each
// Option sets one field of the Options struct; New applies them in
// order over its defaults, so a later Option wins over an earlier one.
type Option func(*config)

type config struct {
	opts Options
}

// Options collects Scheduler configuration as a plain struct. It is
// filled through Option values; New does not accept an Options value
// directly.
type Options struct {
	// Parallelism bounds how many node Operations may run concurrently
	// within one phase run. Values <= 0 mean 1 (sequential).
	Parallelism int

	// Emitter receives lifecycle events for the run. Defaults to
	// emit.NewNullEmitter() when nil.
	Emitter emit.Emitter

	// Metrics, if set, records Prometheus instrumentation for every
	// phase run.
	Metrics *metrics.SchedulerMetrics
}

// WithParallelism sets the maximum number of nodes executing
// concurrently within a phase.
//
// Default: 1 (sequential). Set to runtime.NumCPU() for CPU-bound
// operations, or higher for I/O-bound ones.
func WithParallelism(n int) Option {
	return func(c *config) { c.opts.Parallelism = n }
}

// WithEmitter sets the Emitter that receives lifecycle events.
func WithEmitter(e emit.Emitter) Option {
	return func(c *config) { c.opts.Emitter = e }
}

// WithSchedulerMetrics attaches Prometheus instrumentation to every
// phase run this Scheduler drives.
func WithSchedulerMetrics(m *metrics.SchedulerMetrics) Option {
	return func(c *config) { c.opts.Metrics = m }
}

// resolveOptions applies base as a starting point, then opts in order.
func resolveOptions(base Options, opts ...Option) Options {
	c := &config{opts: base}
	for _, opt := range opts {
		opt(c)
	}
	return c.opts
}
