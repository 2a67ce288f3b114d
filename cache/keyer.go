package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultNamespace prefixes every key written by this service.
const DefaultNamespace = "pokedex"

// Keyer builds namespaced keys of the form <namespace>:<kind>:<part>[:<part>...].
//
// The namespace keeps this service's entries apart from other domains that
// share the same store. Keyer is a value type and safe for concurrent use.
type Keyer struct {
	namespace string
}

// NewKeyer creates a keyer for namespace. An empty namespace uses DefaultNamespace.
func NewKeyer(namespace string) Keyer {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Keyer{namespace: namespace}
}

// Namespace returns the key prefix.
func (k Keyer) Namespace() string {
	if k.namespace == "" {
		return DefaultNamespace
	}
	return k.namespace
}

// Key joins kind and parts under the namespace.
func (k Keyer) Key(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(k.Namespace())
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Pattern returns the glob matching every key of kind. An empty kind
// matches the whole namespace.
func (k Keyer) Pattern(kind string) string {
	if kind == "" {
		return k.Namespace() + ":*"
	}
	return k.Key(kind, "*")
}

// Digest returns the first 16 hex characters of SHA-256(s). It keeps keys for
// arbitrarily long text within MaxKeyLength.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8]) // First 8 bytes = 16 hex chars
}
