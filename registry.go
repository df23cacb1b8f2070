package jsonrpc

import (
	"fmt"
	"sort"
	"sync"
)

// Namespace is one of the two independent method-name spaces.
type Namespace int

const (
	NamespaceRequest Namespace = iota
	NamespaceNotification
)

// String returns "request" or "notification".
func (ns Namespace) String() string {
	switch ns {
	case NamespaceRequest:
		return "request"
	case NamespaceNotification:
		return "notification"
	default:
		return fmt.Sprintf("namespace(%d)", int(ns))
	}
}

type key struct {
	ns     Namespace
	method string
}

// Registry stores the validation schemas of every method. Registration is
// append-once: a second Register for the same key fails.
//
// Registry is safe for concurrent use, but is meant to be populated before
// traffic begins.
type Registry struct {
	mu      sync.RWMutex
	schemas map[key]MethodSchema
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[key]MethodSchema)}
}

// Register adds the schema for (ns, method).
func (r *Registry) Register(ns Namespace, method string, s MethodSchema) error {
	if method == "" {
		return fmt.Errorf("register %s: empty method name: %w", ns, ErrInvalidRegistration)
	}
	if s.Params == nil {
		return fmt.Errorf("register %s %q: nil params schema: %w", ns, method, ErrInvalidRegistration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{ns: ns, method: method}
	if _, exists := r.schemas[k]; exists {
		return fmt.Errorf("register %s %q: %w", ns, method, ErrDuplicateMethod)
	}
	r.schemas[k] = s
	return nil
}

// Resolve returns the schema registered for (ns, method).
func (r *Registry) Resolve(ns Namespace, method string) (MethodSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[key{ns: ns, method: method}]
	if !ok {
		return MethodSchema{}, fmt.Errorf("resolve %s %q: %w", ns, method, ErrNotFound)
	}
	return s, nil
}

// Unregister removes the schema for (ns, method). It exists so a failed
// multi-step registration can be rolled back.
func (r *Registry) Unregister(ns Namespace, method string) {
	r.mu.Lock()
	delete(r.schemas, key{ns: ns, method: method})
	r.mu.Unlock()
}

// Methods returns the registered method names of ns in sorted order.
func (r *Registry) Methods(ns Namespace) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for k := range r.schemas {
		if k.ns == ns {
			out = append(out, k.method)
		}
	}
	sort.Strings(out)
	return out
}
