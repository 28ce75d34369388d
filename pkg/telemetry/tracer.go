// Package telemetry implements the Tracer interface spec.md §9's Design
// Notes call for in place of the original system's rich observability
// calls: "span(name) → handle; event(name, attrs); counter_add(name, n)",
// default-implemented as no-op. A MetricsTracer forwards CounterAdd to the
// Prometheus counters in pkg/metrics.
package telemetry

import "time"

// Attr is a single key-value attribute attached to an Event call.
type Attr struct {
	Key   string
	Value any
}

// Handle is a started span, closed by calling End.
type Handle interface {
	End()
}

// Tracer is the sole observability dependency the core takes. Every
// component receives one; the default is a no-op so the core never forces
// a concrete tracing backend on a caller that doesn't want one.
type Tracer interface {
	Span(name string) Handle
	Event(name string, attrs ...Attr)
	CounterAdd(name string, n float64)
}

type noop struct{}

// NoopTracer is the default Tracer: every call is a no-op.
var NoopTracer Tracer = noop{}

func (noop) Span(string) Handle         { return noopHandle{} }
func (noop) Event(string, ...Attr)      {}
func (noop) CounterAdd(string, float64) {}

type noopHandle struct{}

func (noopHandle) End() {}

// timedHandle records a span's duration via Tracer.Event when it ends.
type timedHandle struct {
	tracer Tracer
	name   string
	start  time.Time
}

func (h timedHandle) End() {
	h.tracer.Event(h.name+".end", Attr{Key: "duration_ms", Value: time.Since(h.start).Milliseconds()})
}
