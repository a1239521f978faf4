package agent

import (
	"context"
	"sort"
	"strings"

	"github.com/hupe1980/autopm/core"
)

// Handler attempts to produce a textual result for a task.
type Handler func(ctx context.Context, task core.Task, caps core.Capabilities) (string, error)

// Descriptor is one row of the registration table.
type Descriptor struct {
	// Name is the dispatch key and the token the routing model echoes back.
	Name string
	// Description is a one-line capability summary shown to the routing model.
	Description string
	Handler     Handler
}

// Registry maps handler names to descriptors. It is read-only once built.
type Registry struct {
	byName map[string]Descriptor
	order  []Descriptor
}

// NewRegistry builds a registry from an explicit registration table.
// Duplicate or empty names and nil handlers yield a *core.ConfigurationError.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Descriptor, len(descs)),
		order:  make([]Descriptor, 0, len(descs)),
	}

	for _, d := range descs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, core.NewConfigurationError("handler name must not be empty")
		}
		if d.Handler == nil {
			return nil, core.NewConfigurationError("handler %q has no function", d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, core.NewConfigurationError("duplicate handler name %q", d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d)
	}

	return r, nil
}

// Resolve returns the handler registered under name.
func (r *Registry) Resolve(name string) (Handler, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, &core.UnknownHandlerError{Name: name}
	}
	return d.Handler, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// DescribeAll returns the name → description mapping used for prompt construction.
func (r *Registry) DescribeAll() map[string]string {
	out := make(map[string]string, len(r.byName))
	for name, d := range r.byName {
		out[name] = d.Description
	}
	return out
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.order...)
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int { return len(r.order) }
