package jsonrpc

import (
	"context"
	"fmt"
	"sync"
)

// RequestHandler handles a validated request. params is the value returned
// by the params schema. The returned value is marshaled as the result; a nil
// value is sent as an empty object.
type RequestHandler func(ctx context.Context, params any) (any, error)

// NotificationHandler handles a validated notification. Errors are reported
// to hooks only.
type NotificationHandler func(ctx context.Context, params any) error

// handler is the type-erased entry stored in the Table. Exactly one of the
// fields is set, matching the namespace it was bound in.
type handler struct {
	request      RequestHandler
	notification NotificationHandler
}

// binding is what a Lookup yields.
type binding struct {
	schema  MethodSchema
	handler handler
}

// Table maps (namespace, method) to its handler. Every binding requires a
// schema in the backing Registry, and re-binding a key fails rather than
// shadowing the previous handler.
type Table struct {
	registry *Registry

	mu       sync.RWMutex
	handlers map[key]handler
}

// NewTable creates a Table whose bindings are validated against registry.
func NewTable(registry *Registry) *Table {
	return &Table{
		registry: registry,
		handlers: make(map[key]handler),
	}
}

// BindRequest binds h to a request method.
func (t *Table) BindRequest(method string, h RequestHandler) error {
	if h == nil {
		return fmt.Errorf("bind request %q: nil handler: %w", method, ErrInvalidRegistration)
	}
	return t.bind(NamespaceRequest, method, handler{request: h})
}

// BindNotification binds h to a notification method.
func (t *Table) BindNotification(method string, h NotificationHandler) error {
	if h == nil {
		return fmt.Errorf("bind notification %q: nil handler: %w", method, ErrInvalidRegistration)
	}
	return t.bind(NamespaceNotification, method, handler{notification: h})
}

func (t *Table) bind(ns Namespace, method string, h handler) error {
	if _, err := t.registry.Resolve(ns, method); err != nil {
		return fmt.Errorf("bind %s %q: %w", ns, method, ErrUnboundSchema)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{ns: ns, method: method}
	if _, exists := t.handlers[k]; exists {
		return fmt.Errorf("bind %s %q: %w", ns, method, ErrDuplicateHandler)
	}
	t.handlers[k] = h
	return nil
}

// Unbind removes the handler for (ns, method).
func (t *Table) Unbind(ns Namespace, method string) {
	t.mu.Lock()
	delete(t.handlers, key{ns: ns, method: method})
	t.mu.Unlock()
}

// LookupRequest returns the schema and handler bound to a request method.
func (t *Table) LookupRequest(method string) (MethodSchema, RequestHandler, error) {
	b, err := t.lookup(NamespaceRequest, method)
	if err != nil {
		return MethodSchema{}, nil, err
	}
	return b.schema, b.handler.request, nil
}

// LookupNotification returns the schema and handler bound to a notification
// method.
func (t *Table) LookupNotification(method string) (MethodSchema, NotificationHandler, error) {
	b, err := t.lookup(NamespaceNotification, method)
	if err != nil {
		return MethodSchema{}, nil, err
	}
	return b.schema, b.handler.notification, nil
}

func (t *Table) lookup(ns Namespace, method string) (binding, error) {
	t.mu.RLock()
	h, ok := t.handlers[key{ns: ns, method: method}]
	t.mu.RUnlock()
	if !ok {
		return binding{}, fmt.Errorf("lookup %s %q: %w", ns, method, ErrNotFound)
	}

	s, err := t.registry.Resolve(ns, method)
	if err != nil {
		return binding{}, err
	}
	return binding{schema: s, handler: h}, nil
}
