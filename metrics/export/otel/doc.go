// Package otel bridges the engine's in-process counters into an
// OpenTelemetry meter using observable instruments, so counters only
// cost an atomic load at collection time.
package otel
