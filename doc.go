// Package jsonrpc provides a schema-validated JSON-RPC 2.0 dispatch server.
//
// Incoming messages are classified as requests or notifications, their
// params are validated against a schema registered for the method, and the
// matching handler is called. Every request yields exactly one response;
// notifications never do. Handler failures, panics, timeouts and
// cancellations are all turned into error responses rather than escaping
// the server.
//
// # Quick Start
//
// Declare marker types for the three payload families and embed Of in each
// payload type:
//
//	type (
//	    WeatherRequests      struct{}
//	    WeatherNotifications struct{}
//	    WeatherResults       struct{}
//	)
//
//	type GetWeather struct {
//	    jsonrpc.Of[WeatherRequests]
//	    City string `json:"city"`
//	}
//
//	type Weather struct {
//	    jsonrpc.Of[WeatherResults]
//	    Temperature float64 `json:"temperature"`
//	    Conditions  string  `json:"conditions"`
//	}
//
// Create a server and bind handlers:
//
//	srv, err := jsonrpc.NewServer[WeatherRequests, WeatherNotifications, WeatherResults](
//	    jsonrpc.Info{Name: "WeatherServer", Version: "1.0.0"},
//	)
//
//	getWeather := jsonrpc.NewRequest[GetWeather, Weather]("get_weather",
//	    schema.Object(schema.String("city")),
//	)
//
//	err = jsonrpc.SetRequestHandlerFunc(srv, getWeather, func(ctx context.Context, in GetWeather) (Weather, error) {
//	    return Weather{Temperature: 72, Conditions: "sunny"}, nil
//	})
//
//	// Dispatch one message, or serve a connection.
//	resp := srv.Dispatch(ctx, raw)
//	err = srv.Serve(ctx, conn)
//
// Binding a GetWeather handler to a server whose request family is not
// WeatherRequests does not compile.
//
// # Layers
//
// The package separates concerns into four layers:
//
//   - Registry: schemas per (namespace, method), append-once
//   - Table: handlers per (namespace, method), each backed by a schema
//   - Router: classification, validation, invocation and error translation
//   - Server: typed registration over a Router
//
// Requests and notifications live in separate namespaces, so a request and
// a notification may share a method name.
//
// # Schemas
//
// A Schema validates untrusted JSON and returns FieldErrors on failure:
//
//	type Schema interface {
//	    Validate(raw json.RawMessage) (any, error)
//	}
//
// Field errors are sent to the caller as the data of a CodeInvalidParams
// response. Package schema provides object, union and combinator schemas.
// Absent params are validated as JSON null.
//
// After the schema accepts, params are unmarshaled into the handler's type.
// If that type has a Validate() error method it runs too, and its failure
// is reported the same way.
//
// # Discriminated Unions
//
// Several methods sharing one handler are declared with Or. The method name
// is the discriminator:
//
//	alerts := jsonrpc.NewNotification[Alert]("alerts/storm", stormSchema).
//	    Or(jsonrpc.NewNotification[Alert]("alerts/heat", heatSchema))
//
// Registering a union whose members claim the same method fails with
// ErrAmbiguousDiscriminator, and leaves nothing registered.
//
// # Error Codes
//
//	CodeParseError       -32700  invalid JSON or malformed envelope
//	CodeMethodNotFound   -32601  no handler for the method
//	CodeInvalidParams    -32602  params failed validation
//	CodeInternalError    -32603  handler error, panic or result mismatch
//	CodeServerBusy       -32000  rate limit exceeded
//	CodeRequestTimeout   -32001  handler timeout
//	CodeRequestCancelled -32800  cancelled by the caller
//
// Handlers choose their own code by returning an *Error.
//
// # Hooks
//
// Hooks provide observability without coupling to specific logging or
// metrics systems:
//
//	r := jsonrpc.New(
//	    jsonrpc.WithOnSuccess(func(ctx context.Context, ns jsonrpc.Namespace, method string, d time.Duration) {
//	        metrics.Timing("jsonrpc.success", d, "method:"+method)
//	    }),
//	    jsonrpc.WithOnFailure(func(ctx context.Context, ns jsonrpc.Namespace, method string, err error, d time.Duration) {
//	        log.Printf("%s failed: %v", method, err)
//	    }),
//	)
//
// Packages logging and metrics provide ready-made hook sets.
//
// # Serving a Connection
//
// Serve reads messages from a Conn and dispatches each on its own
// goroutine. Responses are written in completion order. A request may be
// cancelled by the notifications/cancelled notification:
//
//	{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":7}}
//
// The cancelled request is still answered, with CodeRequestCancelled. When
// the connection closes, in-flight handlers see their context cancelled
// with ErrConnClosed and their responses are reported to OnDrop hooks.
//
// Package config reads the timeout, rate limit and concurrency settings from
// a YAML or TOML file.
package jsonrpc
