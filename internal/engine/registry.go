package engine

import (
	"fmt"
	"strings"
)

// Provider pairs a named inference backend with the chat model it should use.
type Provider struct {
	Name      string
	Engine    Engine
	ChatModel string
}

// ProviderNotFoundError reports a provider lookup that matched nothing.
type ProviderNotFoundError struct {
	Name      string
	Available []string
}

func (e *ProviderNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("provider %q not found: no providers registered", e.Name)
	}
	return fmt.Sprintf("provider %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Registry holds the configured providers in registration order. The first
// registered provider is the default. Registration happens once at startup;
// the registry is read-only afterwards and safe for concurrent lookups.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry with the given providers. Order matters:
// the first provider is the default, later ones serve as fallbacks.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Names returns the registered provider names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name
	}
	return names
}

// Default returns the first registered provider.
func (r *Registry) Default() (Provider, error) {
	if len(r.providers) == 0 {
		return Provider{}, &ProviderNotFoundError{Name: "default"}
	}
	return r.providers[0], nil
}

// Get resolves a provider by name. The match is case-insensitive and accepts
// a substring, so "groq" resolves "groq-cloud". An exact match wins over a
// substring match. An empty name returns the default provider.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		return r.Default()
	}

	needle := strings.ToLower(name)
	for _, p := range r.providers {
		if strings.ToLower(p.Name) == needle {
			return p, nil
		}
	}
	for _, p := range r.providers {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p, nil
		}
	}
	return Provider{}, &ProviderNotFoundError{Name: name, Available: r.Names()}
}

// Fallback returns the first registered provider other than the named one.
// It returns false when no alternative exists.
func (r *Registry) Fallback(current string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Name != current {
			return p, true
		}
	}
	return Provider{}, false
}
