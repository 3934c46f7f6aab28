// Package metrics defines the events emitted by optimization runs and the
// sink interfaces that record them. A sink only has to implement
// MetricsSink; the optional recorder interfaces are detected at runtime.
// Several configured sinks are combined into a MultiSink.
package metrics
