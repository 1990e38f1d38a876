// Package telemetry wires OpenTelemetry tracing and metrics for the pipeline
// engine.
//
// It centralises tracer provider setup against an OTLP collector and exposes
// the engine's metric instruments, so run and node measurements land in one
// place regardless of which binary hosts the engine.
package telemetry
