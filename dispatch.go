package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
)

// Proc (procedure) handles a notification. Notifications are fire-and-forget:
// a returned error is reported to hooks and never reaches the caller.
//
// The type parameter T is the params type. The server validates params
// against the registered schema, unmarshals them to T, and calls
// Validate() error if T implements it.
//
// Example:
//
//	type AlertProc struct {
//	    pager Pager
//	}
//
//	func (p *AlertProc) Run(ctx context.Context, alert WeatherAlert) error {
//	    return p.pager.Page(ctx, alert.Message)
//	}
type Proc[T any] interface {
	Run(ctx context.Context, params T) error
}

// ProcFunc is a function adapter for Proc.
type ProcFunc[T any] func(ctx context.Context, params T) error

// Run implements the Proc interface.
func (f ProcFunc[T]) Run(ctx context.Context, params T) error {
	return f(ctx, params)
}

// Func (function) handles a request and returns a typed result.
//
// The type parameters are: T for params, R for result. The server
// validates and unmarshals T, then marshals R and checks it against the
// declared result schema. Return an *Error to choose the error code sent to
// the caller.
//
// Example:
//
//	type GetWeatherFunc struct {
//	    client WeatherClient
//	}
//
//	func (f *GetWeatherFunc) Call(ctx context.Context, in GetWeather) (Weather, error) {
//	    w, err := f.client.Current(ctx, in.City)
//	    if err != nil {
//	        return Weather{}, err
//	    }
//	    return Weather{Temperature: w.Temp, Conditions: w.Summary}, nil
//	}
type Func[T, R any] interface {
	Call(ctx context.Context, params T) (R, error)
}

// FuncFunc is a function adapter for Func.
type FuncFunc[T, R any] func(ctx context.Context, params T) (R, error)

// Call implements the Func interface.
func (f FuncFunc[T, R]) Call(ctx context.Context, params T) (R, error) {
	return f(ctx, params)
}

// validatable is the interface for payload validation.
// Compatible with github.com/go-ozzo/ozzo-validation/v4.
type validatable interface {
	Validate() error
}

// decodeAs wraps a schema so that, once it accepts the payload, the payload
// is unmarshaled into T and T's own Validate method runs. The parsed value
// handed to the handler is the T.
func decodeAs[T any](inner Schema) Schema {
	return SchemaFunc(func(raw json.RawMessage) (any, error) {
		if _, err := inner.Validate(raw); err != nil {
			return nil, err
		}

		var data T
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, decodeFieldErrors(err)
			}
		}

		if v, ok := any(data).(validatable); ok {
			if err := v.Validate(); err != nil {
				return nil, fieldErrorsOf(err)
			}
		} else if v, ok := any(&data).(validatable); ok {
			if err := v.Validate(); err != nil {
				return nil, fieldErrorsOf(err)
			}
		}
		return data, nil
	})
}

func decodeFieldErrors(err error) FieldErrors {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return FieldErrors{{
			Path:    typeErr.Field,
			Code:    "type",
			Message: "expected " + typeErr.Type.String() + ", got " + typeErr.Value,
		}}
	}
	return FieldErrors{{Code: "decode", Message: err.Error()}}
}
