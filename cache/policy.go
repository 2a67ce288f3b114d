package cache

import "time"

// Policy configures how long loaded values stay cached.
type Policy struct {
	// TTL is the lifetime of an entry written after a successful fetch.
	// If zero, caching is disabled.
	TTL time.Duration

	// MaxTTL caps TTL when set. If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// TTLPolicy returns a policy caching entries for ttl.
func TTLPolicy(ttl time.Duration) Policy {
	return Policy{TTL: ttl}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.EffectiveTTL() > 0
}

// EffectiveTTL returns the TTL to use, applying the MaxTTL clamp.
func (p Policy) EffectiveTTL() time.Duration {
	ttl := p.TTL
	if ttl < 0 {
		ttl = 0
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
