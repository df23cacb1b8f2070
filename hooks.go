package jsonrpc

import (
	"context"
	"time"
)

// OnReceiveFunc is called after a message is classified and before lookup.
// Use this to enrich the context with logging fields or trace spans.
// The returned context is used for the rest of the dispatch.
type OnReceiveFunc func(ctx context.Context, ns Namespace, method string) context.Context

// OnDispatchFunc is called just before the handler executes.
type OnDispatchFunc func(ctx context.Context, ns Namespace, method string)

// OnSuccessFunc is called after the handler completes successfully.
type OnSuccessFunc func(ctx context.Context, ns Namespace, method string, duration time.Duration)

// OnFailureFunc is called after the handler fails, times out, panics, or
// returns a result that does not match its declared schema.
type OnFailureFunc func(ctx context.Context, ns Namespace, method string, err error, duration time.Duration)

// OnNoHandlerFunc is called when no handler is registered for the method.
type OnNoHandlerFunc func(ctx context.Context, ns Namespace, method string)

// OnValidationErrorFunc is called when params fail schema validation.
type OnValidationErrorFunc func(ctx context.Context, ns Namespace, method string, errs FieldErrors)

// OnThrottledFunc is called when a message is rejected by the rate limiter.
type OnThrottledFunc func(ctx context.Context, ns Namespace, method string)

// OnMalformedFunc is called when a message is neither a request nor a
// notification.
type OnMalformedFunc func(ctx context.Context, raw []byte, err error)

// OnDropFunc is called when a response could not be delivered, either
// because the connection is gone or because Send failed.
type OnDropFunc func(ctx context.Context, resp *Response, err error)

// hooks holds all configured hook functions.
type hooks struct {
	onReceive         []OnReceiveFunc
	onDispatch        []OnDispatchFunc
	onSuccess         []OnSuccessFunc
	onFailure         []OnFailureFunc
	onNoHandler       []OnNoHandlerFunc
	onValidationError []OnValidationErrorFunc
	onThrottled       []OnThrottledFunc
	onMalformed       []OnMalformedFunc
	onDrop            []OnDropFunc
}

// WithOnReceive adds a hook called after a message is classified.
// Multiple hooks are called in order, with context chaining through each.
// A hook that panics is skipped, as is a nil context it returns.
//
// Example, installed after logging.Options so the per-message logger is in
// the context:
//
//	jsonrpc.WithOnReceive(func(ctx context.Context, ns jsonrpc.Namespace, method string) context.Context {
//	    logging.FromContext(ctx).Debug("Received", zap.String("tenant", tenantOf(ctx)))
//	    return ctx
//	})
func WithOnReceive(fn OnReceiveFunc) Option {
	return func(r *Router) {
		r.hooks.onReceive = append(r.hooks.onReceive, fn)
	}
}

// WithOnDispatch adds a hook called just before the handler executes.
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(r *Router) {
		r.hooks.onDispatch = append(r.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after the handler completes successfully.
//
// Example:
//
//	jsonrpc.WithOnSuccess(func(ctx context.Context, ns jsonrpc.Namespace, method string, d time.Duration) {
//	    metrics.Timing("jsonrpc.success", d, "method:"+method)
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(r *Router) {
		r.hooks.onSuccess = append(r.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after the handler fails.
func WithOnFailure(fn OnFailureFunc) Option {
	return func(r *Router) {
		r.hooks.onFailure = append(r.hooks.onFailure, fn)
	}
}

// WithOnNoHandler adds a hook called when no handler is registered.
func WithOnNoHandler(fn OnNoHandlerFunc) Option {
	return func(r *Router) {
		r.hooks.onNoHandler = append(r.hooks.onNoHandler, fn)
	}
}

// WithOnValidationError adds a hook called when params validation fails.
func WithOnValidationError(fn OnValidationErrorFunc) Option {
	return func(r *Router) {
		r.hooks.onValidationError = append(r.hooks.onValidationError, fn)
	}
}

// WithOnThrottled adds a hook called when the rate limiter rejects a message.
func WithOnThrottled(fn OnThrottledFunc) Option {
	return func(r *Router) {
		r.hooks.onThrottled = append(r.hooks.onThrottled, fn)
	}
}

// WithOnMalformed adds a hook called for malformed envelopes.
func WithOnMalformed(fn OnMalformedFunc) Option {
	return func(r *Router) {
		r.hooks.onMalformed = append(r.hooks.onMalformed, fn)
	}
}

// WithOnDrop adds a hook called when a response is not delivered.
func WithOnDrop(fn OnDropFunc) Option {
	return func(r *Router) {
		r.hooks.onDrop = append(r.hooks.onDrop, fn)
	}
}

func (h *hooks) callOnReceive(ctx context.Context, ns Namespace, method string) context.Context {
	for _, fn := range h.onReceive {
		guard(func() {
			if next := fn(ctx, ns, method); next != nil {
				ctx = next
			}
		})
	}
	return ctx
}

func (h *hooks) callOnDispatch(ctx context.Context, ns Namespace, method string) {
	for _, fn := range h.onDispatch {
		guard(func() { fn(ctx, ns, method) })
	}
}

func (h *hooks) callOnSuccess(ctx context.Context, ns Namespace, method string, d time.Duration) {
	for _, fn := range h.onSuccess {
		guard(func() { fn(ctx, ns, method, d) })
	}
}

func (h *hooks) callOnFailure(ctx context.Context, ns Namespace, method string, err error, d time.Duration) {
	for _, fn := range h.onFailure {
		guard(func() { fn(ctx, ns, method, err, d) })
	}
}

func (h *hooks) callOnNoHandler(ctx context.Context, ns Namespace, method string) {
	for _, fn := range h.onNoHandler {
		guard(func() { fn(ctx, ns, method) })
	}
}

func (h *hooks) callOnValidationError(ctx context.Context, ns Namespace, method string, errs FieldErrors) {
	for _, fn := range h.onValidationError {
		guard(func() { fn(ctx, ns, method, errs) })
	}
}

func (h *hooks) callOnThrottled(ctx context.Context, ns Namespace, method string) {
	for _, fn := range h.onThrottled {
		guard(func() { fn(ctx, ns, method) })
	}
}

func (h *hooks) callOnMalformed(ctx context.Context, raw []byte, err error) {
	for _, fn := range h.onMalformed {
		guard(func() { fn(ctx, raw, err) })
	}
}

func (h *hooks) callOnDrop(ctx context.Context, resp *Response, err error) {
	for _, fn := range h.onDrop {
		guard(func() { fn(ctx, resp, err) })
	}
}

// guard runs a hook and discards its panic, so a faulty hook skips only
// itself.
func guard(hook func()) {
	defer func() { _ = recover() }()
	hook()
}
