// Package observe provides observability primitives for upstream calls.
//
// It wires an OpenTelemetry tracer and meter, a zap-backed structured
// Logger, per-call Middleware for the PokeAPI and funtranslations clients
// and cache lookup counters. It performs no I/O beyond exporter setup.
package observe
