package dataset

import (
	"sort"

	"github.com/csv610/sophoset/internal/errors"
)

// Source describes one registered data source: its short name, the hub
// identifier the provider resolves it by, and the mapping capability
// converting its raw rows into canonical fields.
//
// Sources are a flat registry keyed by name rather than a type per
// source: every source is polymorphic over the one Mapper signature.
type Source struct {
	Name   string
	Hub    string
	Vision bool
	Mapper Mapper
}

// Registry holds named sources.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds or replaces a source.
func (r *Registry) Register(s Source) {
	r.sources[s.Name] = s
}

// Lookup returns a source by name.
func (r *Registry) Lookup(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return Source{}, errors.Wrapf(errors.ErrUnknownSource,
			"%q; known sources: %v", name, r.Names())
	}
	return s, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a Dataset handle for a registered source.
func (r *Registry) Open(name string, provider RowProvider, opts ...Option) (*Dataset, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(s.Hub, provider, s.Mapper, opts...), nil
}

// DefaultRegistry returns a registry preloaded with the built-in
// sources.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range builtinSources() {
		r.Register(s)
	}
	return r
}
