// Package cache provides the shared read-through cache used by the upstream
// adapters.
//
// It provides a Cache store interface with in-memory and Redis
// implementations, namespaced key construction, TTL policies, and a generic
// Loader that populates the store only after a fully successful fetch.
package cache
