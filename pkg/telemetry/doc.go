// Package telemetry owns the observability surface of the pipeline engine:
// the process-lifetime per-tool metrics registry mutated by the tool runner,
// the OpenTelemetry instruments emitted per node invocation, the Prometheus
// exporter mirroring the registry, and the OTLP tracer-provider bootstrap.
package telemetry
