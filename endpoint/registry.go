package endpoint

import (
	"fmt"
	"sort"

	"github.com/devmarvs/schoolgate/apperr"
)

// Registry is the static catalog of named operations. It is built once at
// startup and read concurrently afterwards; registration is not synchronized.
type Registry struct {
	templates map[string]Template
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: map[string]Template{}}
}

// Register adds a named template. Literal templates are validated eagerly.
func (r *Registry) Register(name string, t Template) error {
	if name == "" {
		return fmt.Errorf("register endpoint: name is required")
	}
	if t.IsZero() {
		return fmt.Errorf("register endpoint %s: template is undefined", name)
	}
	if _, exists := r.templates[name]; exists {
		return fmt.Errorf("register endpoint %s: already registered", name)
	}
	if !t.IsParametric() {
		if err := Validate(t.literal); err != nil {
			return fmt.Errorf("register endpoint %s: %w", name, err)
		}
	} else if !validMethod(t.info.Method) && t.info.Method != "" {
		return fmt.Errorf("register endpoint %s: method %q is not supported", name, t.info.Method)
	}
	r.templates[name] = t
	return nil
}

// MustRegister registers a template and panics on a definition error.
func (r *Registry) MustRegister(name string, t Template) *Registry {
	if err := r.Register(name, t); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the template registered under name.
func (r *Registry) Lookup(name string) (Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// Resolve resolves a named operation with its parameters.
func (r *Registry) Resolve(name string, params ...any) (Descriptor, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return Descriptor{}, apperr.New(apperr.KindConfiguration, 0, fmt.Sprintf("unknown operation %q", name), ErrInvalidTemplate)
	}
	return Resolve(t, params...)
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	return len(r.templates)
}
