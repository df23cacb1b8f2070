package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCancelMethod is the notification that cancels an in-flight request
// on a served connection.
const DefaultCancelMethod = "notifications/cancelled"

// Router validates and dispatches JSON-RPC messages to registered handlers.
//
// Usage:
//  1. Create a router with New
//  2. Register handlers with HandleRequest and HandleNotification (or through
//     the typed Server)
//  3. Dispatch messages with Dispatch, or serve a connection with Serve
//
// Router is safe for concurrent use. Registration is expected to complete
// before the first Dispatch.
type Router struct {
	inspector    Inspector
	registry     *Registry
	table        *Table
	hooks        hooks
	timeout      time.Duration
	limiter      *rate.Limiter
	maxInFlight  int64
	cancelMethod string
}

// Option configures a Router.
type Option func(*Router)

// New creates a Router with the given options.
//
// Example:
//
//	r := jsonrpc.New(
//	    jsonrpc.WithHandlerTimeout(30*time.Second),
//	    jsonrpc.WithOnFailure(func(ctx context.Context, ns jsonrpc.Namespace, method string, err error, d time.Duration) {
//	        log.Printf("%s %s failed: %v", ns, method, err)
//	    }),
//	)
func New(opts ...Option) *Router {
	registry := NewRegistry()
	r := &Router{
		inspector:    JSONInspector(),
		registry:     registry,
		table:        NewTable(registry),
		cancelMethod: DefaultCancelMethod,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithInspector overrides the inspector used to classify envelopes.
func WithInspector(i Inspector) Option {
	return func(r *Router) {
		r.inspector = i
	}
}

// WithHandlerTimeout bounds how long a request handler may run. A request
// that exceeds it is answered with CodeRequestTimeout. Zero disables it.
func WithHandlerTimeout(d time.Duration) Option {
	return func(r *Router) {
		r.timeout = d
	}
}

// WithRateLimit rejects messages that the limiter does not allow. Rejected
// requests are answered with CodeServerBusy.
func WithRateLimit(l *rate.Limiter) Option {
	return func(r *Router) {
		r.limiter = l
	}
}

// WithMaxInFlight bounds the number of messages Serve dispatches at once.
// Zero means unbounded.
func WithMaxInFlight(n int) Option {
	return func(r *Router) {
		r.maxInFlight = int64(n)
	}
}

// WithCancelMethod overrides DefaultCancelMethod. An empty method disables
// cancellation notifications.
func WithCancelMethod(method string) Option {
	return func(r *Router) {
		r.cancelMethod = method
	}
}

// Registry returns the schema registry backing the router.
func (r *Router) Registry() *Registry { return r.registry }

// Table returns the handler table backing the router.
func (r *Router) Table() *Table { return r.table }

// HandleRequest registers the schemas for a request method and binds h to
// it as one operation: if binding fails the schema registration is undone.
func (r *Router) HandleRequest(method string, s MethodSchema, h RequestHandler) error {
	return r.register([]registration{{ns: NamespaceRequest, method: method, schema: s, request: h}})
}

// HandleNotification registers the params schema for a notification method
// and binds h to it as one operation.
func (r *Router) HandleNotification(method string, params Schema, h NotificationHandler) error {
	return r.register([]registration{{
		ns:           NamespaceNotification,
		method:       method,
		schema:       MethodSchema{Params: params},
		notification: h,
	}})
}

// registration is one (namespace, method, schema, handler) entry.
type registration struct {
	ns           Namespace
	method       string
	schema       MethodSchema
	request      RequestHandler
	notification NotificationHandler
}

// register adds every entry or none of them.
func (r *Router) register(entries []registration) error {
	seen := make(map[key]bool, len(entries))
	for _, e := range entries {
		k := key{ns: e.ns, method: e.method}
		if seen[k] {
			return fmt.Errorf("register %s %q: %w", e.ns, e.method, ErrAmbiguousDiscriminator)
		}
		seen[k] = true
	}

	var done []registration
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			r.table.Unbind(done[i].ns, done[i].method)
			r.registry.Unregister(done[i].ns, done[i].method)
		}
	}

	for _, e := range entries {
		if err := r.registry.Register(e.ns, e.method, e.schema); err != nil {
			rollback()
			return err
		}

		var err error
		if e.ns == NamespaceRequest {
			err = r.table.BindRequest(e.method, e.request)
		} else {
			err = r.table.BindNotification(e.method, e.notification)
		}
		if err != nil {
			r.registry.Unregister(e.ns, e.method)
			rollback()
			return err
		}
		done = append(done, e)
	}
	return nil
}

// Dispatch processes one inbound message and returns the response to send,
// or nil when none is due (notifications and undeliverable malformed input).
//
// The processing flow for a request:
//  1. Classify the envelope
//  2. Look up the handler; answer CodeMethodNotFound on a miss
//  3. Validate params; answer CodeInvalidParams with field errors on failure
//  4. Call the handler
//  5. Validate the result against the declared result schema
//  6. Answer with the result, or the translated handler error
//
// Notifications follow steps 1-4 and never produce a response.
func (r *Router) Dispatch(ctx context.Context, raw []byte) *Response {
	msg, err := parseMessage(r.inspector, raw)
	if err != nil {
		return r.handleMalformed(ctx, raw, msg, err)
	}
	return r.dispatch(ctx, msg)
}

func (r *Router) dispatch(ctx context.Context, msg message) *Response {
	if msg.kind == kindNotification {
		r.dispatchNotification(ctx, msg)
		return nil
	}
	return r.dispatchRequest(ctx, msg)
}

func (r *Router) dispatchRequest(ctx context.Context, msg message) (resp *Response) {
	ns, method := NamespaceRequest, msg.method
	defer func() {
		if p := recover(); p != nil {
			resp = errorResponse(msg.id, Errorf(CodeInternalError, "dispatch panic: %v", p))
		}
	}()
	ctx = r.hooks.callOnReceive(withMethod(ctx, method), ns, method)

	if r.limiter != nil && !r.limiter.Allow() {
		r.hooks.callOnThrottled(ctx, ns, method)
		return errorResponse(msg.id, Errorf(CodeServerBusy, "rate limit exceeded"))
	}

	s, h, err := r.table.LookupRequest(method)
	if err != nil {
		r.hooks.callOnNoHandler(ctx, ns, method)
		return errorResponse(msg.id, Errorf(CodeMethodNotFound, "method not found: %s", method))
	}

	params, err := validateParams(s, msg.params)
	if err != nil {
		fe := fieldErrorsOf(err)
		r.hooks.callOnValidationError(ctx, ns, method, fe)
		return errorResponse(msg.id, NewError(CodeInvalidParams, "invalid params", fe))
	}

	r.hooks.callOnDispatch(ctx, ns, method)

	start := time.Now()
	result, err := r.invoke(ctx, r.timeout, func(ctx context.Context) (any, error) {
		return h(ctx, params)
	})
	if err == nil {
		var encoded json.RawMessage
		encoded, err = encodeResult(s.Result, result)
		if err == nil {
			r.hooks.callOnSuccess(ctx, ns, method, time.Since(start))
			return &Response{ID: msg.id, Result: encoded}
		}
	}

	r.hooks.callOnFailure(ctx, ns, method, err, time.Since(start))
	return errorResponse(msg.id, toError(err))
}

func (r *Router) dispatchNotification(ctx context.Context, msg message) {
	ns, method := NamespaceNotification, msg.method
	defer func() { _ = recover() }()
	ctx = r.hooks.callOnReceive(withMethod(ctx, method), ns, method)

	if r.limiter != nil && !r.limiter.Allow() {
		r.hooks.callOnThrottled(ctx, ns, method)
		return
	}

	s, h, err := r.table.LookupNotification(method)
	if err != nil {
		r.hooks.callOnNoHandler(ctx, ns, method)
		return
	}

	params, err := validateParams(s, msg.params)
	if err != nil {
		r.hooks.callOnValidationError(ctx, ns, method, fieldErrorsOf(err))
		return
	}

	r.hooks.callOnDispatch(ctx, ns, method)

	start := time.Now()
	_, err = r.invoke(ctx, 0, func(ctx context.Context) (any, error) {
		return nil, h(ctx, params)
	})
	if err != nil {
		r.hooks.callOnFailure(ctx, ns, method, err, time.Since(start))
		return
	}
	r.hooks.callOnSuccess(ctx, ns, method, time.Since(start))
}

// invoke runs fn on its own goroutine and stops waiting for it once ctx is
// done. fn is not started when ctx has already ended. Panics are recovered
// into CodeInternalError. A handler that fails after ctx ended is reported
// by the reason ctx ended.
func (r *Router) invoke(ctx context.Context, timeout time.Duration, fn func(context.Context) (any, error)) (any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if ctx.Err() != nil {
		return nil, contextError(ctx)
	}

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: Errorf(CodeInternalError, "handler panic: %v", p)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		return o.value, o.err
	case <-ctx.Done():
		return nil, contextError(ctx)
	}
}

// contextError maps the reason ctx ended to a response error.
func contextError(ctx context.Context) error {
	cause := context.Cause(ctx)
	var rpcErr *Error
	switch {
	case errors.As(cause, &rpcErr):
		return rpcErr
	case errors.Is(cause, context.DeadlineExceeded):
		return Errorf(CodeRequestTimeout, "request timed out")
	default:
		return Errorf(CodeRequestCancelled, "request cancelled: %v", cause)
	}
}

// encodeResult marshals a handler result and checks it against the declared
// result schema. A mismatch is the server's fault, so it is reported as
// CodeInternalError rather than CodeInvalidParams.
func encodeResult(schema Schema, result any) (json.RawMessage, error) {
	var raw json.RawMessage
	if result == nil {
		raw = json.RawMessage("{}")
	} else {
		b, err := json.Marshal(result)
		if err != nil {
			return nil, Errorf(CodeInternalError, "marshal result: %v", err)
		}
		raw = b
	}

	if schema != nil {
		if _, err := schema.Validate(raw); err != nil {
			return nil, NewError(CodeInternalError, "result does not match declared schema", fieldErrorsOf(err))
		}
	}
	return raw, nil
}

// handleMalformed reports a message that is not a request or notification.
// Invalid JSON and malformed envelopes with a usable id are answered with
// CodeParseError; everything else is dropped.
func (r *Router) handleMalformed(ctx context.Context, raw []byte, msg message, err error) *Response {
	r.hooks.callOnMalformed(ctx, raw, err)

	switch {
	case errors.Is(err, ErrInvalidJSON):
		return errorResponse(ID{}, Errorf(CodeParseError, "parse error: %v", err))
	case msg.kind == kindResponse, !msg.idPresent:
		return nil
	default:
		return errorResponse(msg.id, Errorf(CodeParseError, "parse error: %v", err))
	}
}

// validateParams runs the params schema against raw. Absent params are
// validated as JSON null.
func validateParams(s MethodSchema, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return s.Params.Validate(raw)
}

type methodKey struct{}

func withMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodKey{}, method)
}

// MethodFromContext returns the method being dispatched. Handlers bound to
// a union use it to tell the members apart.
func MethodFromContext(ctx context.Context) (string, bool) {
	m, ok := ctx.Value(methodKey{}).(string)
	return m, ok
}

func errorResponse(id ID, err *Error) *Response {
	return &Response{ID: id, Error: err}
}
