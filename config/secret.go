package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// SecretRefPrefix marks a value that names a secret instead of holding it:
//
//	secretref:env:FUNTRANSLATIONS_SECRET
//	secretref:file:/run/secrets/redis_password
const SecretRefPrefix = "secretref:"

var (
	// ErrUnknownProvider indicates a secret reference names no registered provider.
	ErrUnknownProvider = errors.New("config: unknown secret provider")

	// ErrEmptySecret indicates a provider resolved a reference to "".
	ErrEmptySecret = errors.New("config: secret resolved to empty value")
)

// SecretProvider resolves one kind of secret reference. Implementations must
// never log the values they return.
type SecretProvider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// Resolver replaces secret references with the values they name.
type Resolver struct {
	providers map[string]SecretProvider
}

// NewResolver creates a Resolver over providers.
func NewResolver(providers ...SecretProvider) *Resolver {
	r := &Resolver{providers: make(map[string]SecretProvider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// ResolveValue returns value unchanged unless it is a whole secret reference.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	provider, ref, ok := ParseSecretRef(value)
	if !ok {
		return value, nil
	}
	p, found := r.providers[provider]
	if !found {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	resolved, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if resolved == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, value)
	}
	return resolved, nil
}

// ParseSecretRef splits secretref:<provider>:<ref>.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, SecretRefPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// EnvProvider resolves references to environment variables.
type EnvProvider struct{}

// Name implements SecretProvider.
func (EnvProvider) Name() string { return "env" }

// Resolve implements SecretProvider.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", ref)
	}
	return v, nil
}

// FileProvider resolves references to files, such as mounted secrets.
// A single trailing newline is dropped.
type FileProvider struct{}

// Name implements SecretProvider.
func (FileProvider) Name() string { return "file" }

// Resolve implements SecretProvider.
func (FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}
