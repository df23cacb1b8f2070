package jsonrpc_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/bjaus/jsonrpc"
	"github.com/bjaus/jsonrpc/schema"
)

// Marker types naming the payload families of the weather server.
type (
	WeatherRequests      struct{}
	WeatherNotifications struct{}
	WeatherResults       struct{}
)

// WeatherQuery is the params of weather/get and weather/forecast.
type WeatherQuery struct {
	jsonrpc.Of[WeatherRequests]
	City string `json:"city"`
	Days int    `json:"days,omitempty"`
}

// Weather is the result of a weather query.
type Weather struct {
	jsonrpc.Of[WeatherResults]
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
}

// WeatherAlert is the params of weather/alert.
type WeatherAlert struct {
	jsonrpc.Of[WeatherNotifications]
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func printResponse(resp *jsonrpc.Response) {
	if resp == nil {
		fmt.Println("no response")
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(b))
}

func Example() {
	srv, err := jsonrpc.NewServer[WeatherRequests, WeatherNotifications, WeatherResults](
		jsonrpc.Info{Name: "WeatherServer", Version: "1.0.0"},
	)
	if err != nil {
		log.Fatal(err)
	}

	getWeather := jsonrpc.NewRequest[WeatherQuery, Weather]("weather/get",
		schema.Object(schema.String("city")),
	).Returns(schema.Object(schema.Number("temperature"), schema.String("conditions")))

	err = jsonrpc.SetRequestHandlerFunc(srv, getWeather, func(ctx context.Context, in WeatherQuery) (Weather, error) {
		return Weather{Temperature: 72, Conditions: "sunny"}, nil
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	printResponse(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"weather/get","params":{"city":"Paris"}}`)))
	printResponse(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"weather/get","params":{}}`)))
	printResponse(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":5,"method":"weather/unknown"}`)))

	// Output:
	// {"jsonrpc":"2.0","id":1,"result":{"temperature":72,"conditions":"sunny"}}
	// {"jsonrpc":"2.0","id":2,"error":{"code":-32602,"message":"invalid params","data":[{"path":"city","code":"required","message":"is required"}]}}
	// {"jsonrpc":"2.0","id":5,"error":{"code":-32601,"message":"method not found: weather/unknown"}}
}

func Example_notification() {
	srv, err := jsonrpc.NewServer[WeatherRequests, WeatherNotifications, WeatherResults](
		jsonrpc.Info{Name: "WeatherServer", Version: "1.0.0"},
	)
	if err != nil {
		log.Fatal(err)
	}

	alert := jsonrpc.NewNotification[WeatherAlert]("weather/alert", schema.Object(
		schema.Enum("severity", []string{"warning", "watch"}),
		schema.String("message"),
	))

	err = jsonrpc.SetNotificationHandlerFunc(srv, alert, func(ctx context.Context, in WeatherAlert) error {
		fmt.Printf("%s: %s\n", in.Severity, in.Message)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	printResponse(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"weather/alert","params":{"severity":"warning","message":"storm"}}`)))
	printResponse(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"weather/alert","params":{"severity":"doom","message":"storm"}}`)))

	// Output:
	// warning: storm
	// no response
	// no response
}

func Example_union() {
	srv, err := jsonrpc.NewServer[WeatherRequests, WeatherNotifications, WeatherResults](
		jsonrpc.Info{Name: "WeatherServer", Version: "1.0.0"},
	)
	if err != nil {
		log.Fatal(err)
	}

	queries := jsonrpc.NewRequest[WeatherQuery, Weather]("weather/get",
		schema.Object(schema.String("city")).Strict(),
	).Or(jsonrpc.NewRequest[WeatherQuery, Weather]("weather/forecast",
		schema.Object(schema.String("city"), schema.Integer("days", schema.Minimum(1))).Strict(),
	))

	err = jsonrpc.SetRequestHandlerFunc(srv, queries, func(ctx context.Context, in WeatherQuery) (Weather, error) {
		method, _ := jsonrpc.MethodFromContext(ctx)
		fmt.Printf("%s for %s\n", method, in.City)
		return Weather{Temperature: 18, Conditions: "rain"}, nil
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"weather/get","params":{"city":"Bergen"}}`))
	printResponse(srv.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"weather/forecast","params":{"city":"Bergen"}}`)))

	// Output:
	// weather/get for Bergen
	// {"jsonrpc":"2.0","id":2,"error":{"code":-32602,"message":"invalid params","data":[{"path":"days","code":"required","message":"is required"}]}}
}

func Example_applicationError() {
	srv, err := jsonrpc.NewServer[WeatherRequests, WeatherNotifications, WeatherResults](
		jsonrpc.Info{Name: "WeatherServer", Version: "1.0.0"},
	)
	if err != nil {
		log.Fatal(err)
	}

	getWeather := jsonrpc.NewRequest[WeatherQuery, Weather]("weather/get", schema.Object(schema.String("city")))
	err = jsonrpc.SetRequestHandlerFunc(srv, getWeather, func(ctx context.Context, in WeatherQuery) (Weather, error) {
		return Weather{}, jsonrpc.NewError(-31001, "unknown city", map[string]string{"city": in.City})
	})
	if err != nil {
		log.Fatal(err)
	}

	printResponse(srv.Dispatch(context.Background(), []byte(`{"jsonrpc":"2.0","id":"q1","method":"weather/get","params":{"city":"Atlantis"}}`)))

	// Output:
	// {"jsonrpc":"2.0","id":"q1","error":{"code":-31001,"message":"unknown city","data":{"city":"Atlantis"}}}
}

func Example_hooks() {
	r := jsonrpc.New(
		jsonrpc.WithOnNoHandler(func(ctx context.Context, ns jsonrpc.Namespace, method string) {
			fmt.Printf("no %s handler for %s\n", ns, method)
		}),
		jsonrpc.WithOnMalformed(func(ctx context.Context, raw []byte, err error) {
			fmt.Printf("malformed: %v\n", err)
		}),
	)

	ctx := context.Background()
	r.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","method":"weather/alert"}`))
	r.Dispatch(ctx, []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))

	// Output:
	// no notification handler for weather/alert
	// malformed: unexpected response envelope: malformed envelope
}
