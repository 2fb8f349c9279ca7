package entanglement

import (
	"errors"
	"fmt"
	"sort"
)

// Errors of variant registration.
var (
	ErrDuplicateVariant = errors.New("protocol variant already registered")
	ErrUnknownVariant   = errors.New("unknown protocol variant")
)

// A Factory creates a protocol variant.
type Factory func(owner Owner, name string, memories []string) Protocol

// A Registry maps variant names to the factories that create them.
type Registry struct {
	factories   map[string]Factory
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a variant. The first variant registered becomes the default.
func (r *Registry) Register(variant string, f Factory) error {
	if _, ok := r.factories[variant]; ok {
		return fmt.Errorf("%q: %w", variant, ErrDuplicateVariant)
	}

	r.factories[variant] = f

	if r.defaultName == "" {
		r.defaultName = variant
	}

	return nil
}

// SetDefault chooses the variant that Create uses when none is named.
func (r *Registry) SetDefault(variant string) error {
	if _, ok := r.factories[variant]; !ok {
		return fmt.Errorf("%q: %w", variant, ErrUnknownVariant)
	}

	r.defaultName = variant

	return nil
}

// Default returns the name of the default variant.
func (r *Registry) Default() string {
	return r.defaultName
}

// Create creates a protocol of the variant. An empty variant means the
// default one.
func (r *Registry) Create(
	variant string,
	owner Owner,
	name string,
	memories []string,
) (Protocol, error) {
	if variant == "" {
		variant = r.defaultName
	}

	f, ok := r.factories[variant]
	if !ok {
		return nil, fmt.Errorf("%q: %w", variant, ErrUnknownVariant)
	}

	return f(owner, name, memories), nil
}

// List returns the registered variants, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
