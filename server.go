package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// PingMethod is the built-in liveness request registered by NewServer.
const PingMethod = "ping"

// Of marks a payload type as a member of the family F. Embed it in request,
// notification and result types:
//
//	type WeatherRequests struct{}
//
//	type GetWeather struct {
//	    jsonrpc.Of[WeatherRequests]
//	    City string `json:"city"`
//	}
//
// Of has no fields and does not change the JSON encoding.
type Of[F any] struct{}

func (Of[F]) memberOf(F) {}

// Member is satisfied by types that embed Of[F].
type Member[F any] interface {
	memberOf(F)
}

// variant is one member of a discriminated union, keyed on its method.
type variant struct {
	method string
	params Schema
	result Schema
}

// Request describes a request method, or a union of methods sharing the
// params type P and result type R.
type Request[P, R any] struct {
	variants []variant
}

// NewRequest describes the request method whose params must satisfy params.
func NewRequest[P, R any](method string, params Schema) Request[P, R] {
	return Request[P, R]{variants: []variant{{method: method, params: params}}}
}

// Returns declares the result schema. Results that fail it are answered with
// CodeInternalError. It applies to every method already in the union.
func (q Request[P, R]) Returns(result Schema) Request[P, R] {
	out := make([]variant, len(q.variants))
	for i, v := range q.variants {
		v.result = result
		out[i] = v
	}
	return Request[P, R]{variants: out}
}

// Or returns the union of q and other. Each member keeps its own method and
// schemas; the method is the discriminator, so members must not share one.
func (q Request[P, R]) Or(other Request[P, R]) Request[P, R] {
	out := make([]variant, 0, len(q.variants)+len(other.variants))
	out = append(out, q.variants...)
	out = append(out, other.variants...)
	return Request[P, R]{variants: out}
}

// Methods returns the methods of the union in declaration order.
func (q Request[P, R]) Methods() []string {
	return methodsOf(q.variants)
}

// Notification describes a notification method, or a union of methods
// sharing the params type P.
type Notification[P any] struct {
	variants []variant
}

// NewNotification describes the notification method whose params must
// satisfy params.
func NewNotification[P any](method string, params Schema) Notification[P] {
	return Notification[P]{variants: []variant{{method: method, params: params}}}
}

// Or returns the union of n and other.
func (n Notification[P]) Or(other Notification[P]) Notification[P] {
	out := make([]variant, 0, len(n.variants)+len(other.variants))
	out = append(out, n.variants...)
	out = append(out, other.variants...)
	return Notification[P]{variants: out}
}

// Methods returns the methods of the union in declaration order.
func (n Notification[P]) Methods() []string {
	return methodsOf(n.variants)
}

func methodsOf(vs []variant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.method
	}
	return out
}

// Info identifies the server. It is bootstrap metadata and plays no part in
// dispatch.
type Info struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Version string `json:"version" yaml:"version" toml:"version"`
}

// Server is the typed entry point over a Router. Req, Notif and Res are
// marker types naming the request, notification and result families; only
// payload types that embed Of of the matching family can be bound.
type Server[Req, Notif, Res any] struct {
	info   Info
	router *Router
}

type serverConfig struct {
	routerOpts []Option
	noPing     bool
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

// WithRouterOptions passes options to the underlying Router.
func WithRouterOptions(opts ...Option) ServerOption {
	return func(c *serverConfig) {
		c.routerOpts = append(c.routerOpts, opts...)
	}
}

// WithoutPing skips registration of the built-in ping request.
func WithoutPing() ServerOption {
	return func(c *serverConfig) {
		c.noPing = true
	}
}

// NewServer creates a Server.
//
// Example:
//
//	srv, err := jsonrpc.NewServer[WeatherRequests, WeatherNotifications, WeatherResults](
//	    jsonrpc.Info{Name: "WeatherServer", Version: "1.0.0"},
//	)
func NewServer[Req, Notif, Res any](info Info, opts ...ServerOption) (*Server[Req, Notif, Res], error) {
	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server[Req, Notif, Res]{
		info:   info,
		router: New(cfg.routerOpts...),
	}

	if !cfg.noPing {
		err := s.router.HandleRequest(PingMethod, MethodSchema{Params: anySchema}, func(context.Context, any) (any, error) {
			return nil, nil
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", PingMethod, err)
		}
	}
	return s, nil
}

// Info returns the server's identity.
func (s *Server[Req, Notif, Res]) Info() Info { return s.info }

// Router returns the underlying Router.
func (s *Server[Req, Notif, Res]) Router() *Router { return s.router }

// Dispatch processes one inbound message. See Router.Dispatch.
func (s *Server[Req, Notif, Res]) Dispatch(ctx context.Context, raw []byte) *Response {
	return s.router.Dispatch(ctx, raw)
}

// Serve serves one connection. See Router.Serve.
func (s *Server[Req, Notif, Res]) Serve(ctx context.Context, conn Conn) error {
	return s.router.Serve(ctx, conn)
}

// SetRequestHandler binds h to every method of req. Each method's schemas
// are registered and the handler bound as one operation; if any method
// fails, nothing from this call stays registered.
//
// This is a package-level function (not a method) due to Go generics limitations:
// methods cannot have type parameters independent of the receiver.
//
// Example:
//
//	err := jsonrpc.SetRequestHandler(srv, getWeather, &GetWeatherFunc{client: c})
func SetRequestHandler[Req, Notif, Res any, P Member[Req], R Member[Res]](
	s *Server[Req, Notif, Res], req Request[P, R], h Func[P, R],
) error {
	if h == nil || len(req.variants) == 0 {
		return fmt.Errorf("set request handler %v: %w", req.Methods(), ErrInvalidRegistration)
	}

	entries := make([]registration, 0, len(req.variants))
	for _, v := range req.variants {
		if v.params == nil {
			return fmt.Errorf("set request handler %q: nil params schema: %w", v.method, ErrInvalidRegistration)
		}
		entries = append(entries, registration{
			ns:     NamespaceRequest,
			method: v.method,
			schema: MethodSchema{Params: decodeAs[P](v.params), Result: v.result},
			request: func(ctx context.Context, params any) (any, error) {
				return h.Call(ctx, params.(P))
			},
		})
	}
	return s.router.register(entries)
}

// SetRequestHandlerFunc is a convenience function for binding a handler function.
//
// Example:
//
//	jsonrpc.SetRequestHandlerFunc(srv, getWeather, func(ctx context.Context, in GetWeather) (Weather, error) {
//	    return Weather{Temperature: 72, Conditions: "sunny"}, nil
//	})
func SetRequestHandlerFunc[Req, Notif, Res any, P Member[Req], R Member[Res]](
	s *Server[Req, Notif, Res], req Request[P, R], fn func(ctx context.Context, params P) (R, error),
) error {
	if fn == nil {
		return fmt.Errorf("set request handler %v: %w", req.Methods(), ErrInvalidRegistration)
	}
	return SetRequestHandler(s, req, FuncFunc[P, R](fn))
}

// SetNotificationHandler binds h to every method of n, atomically.
func SetNotificationHandler[Req, Notif, Res any, P Member[Notif]](
	s *Server[Req, Notif, Res], n Notification[P], h Proc[P],
) error {
	if h == nil || len(n.variants) == 0 {
		return fmt.Errorf("set notification handler %v: %w", n.Methods(), ErrInvalidRegistration)
	}

	entries := make([]registration, 0, len(n.variants))
	for _, v := range n.variants {
		if v.params == nil {
			return fmt.Errorf("set notification handler %q: nil params schema: %w", v.method, ErrInvalidRegistration)
		}
		entries = append(entries, registration{
			ns:     NamespaceNotification,
			method: v.method,
			schema: MethodSchema{Params: decodeAs[P](v.params)},
			notification: func(ctx context.Context, params any) error {
				return h.Run(ctx, params.(P))
			},
		})
	}
	return s.router.register(entries)
}

// SetNotificationHandlerFunc is a convenience function for binding a
// notification handler function.
func SetNotificationHandlerFunc[Req, Notif, Res any, P Member[Notif]](
	s *Server[Req, Notif, Res], n Notification[P], fn func(ctx context.Context, params P) error,
) error {
	if fn == nil {
		return fmt.Errorf("set notification handler %v: %w", n.Methods(), ErrInvalidRegistration)
	}
	return SetNotificationHandler(s, n, ProcFunc[P](fn))
}

// anySchema accepts any payload, including absent params.
var anySchema = SchemaFunc(func(raw json.RawMessage) (any, error) {
	return raw, nil
})
