// Package telemetry wraps OpenTelemetry SDK initialization, providing
// the process-wide TracerProvider and MeterProvider. When telemetry is
// disabled the global providers stay noop and nothing connects out.
package telemetry
