// Package upstream classifies failures of the external services the
// pokedex depends on and provides the guarded HTTP Endpoint both clients
// call through.
//
// Two kinds exist. NotFound is terminal. ServiceUnavailable is transient and
// covers degraded, unreachable, rate limited and malformed responses; a
// rate-limit marker is carried alongside it.
package upstream
