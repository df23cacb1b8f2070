package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"go.uber.org/zap"

	"github.com/bjaus/jsonrpc"
	"github.com/bjaus/jsonrpc/logging"
	"github.com/bjaus/jsonrpc/schema"
)

// Payload families.
type (
	weatherRequests      struct{}
	weatherNotifications struct{}
	weatherResults       struct{}
)

type weatherServer = jsonrpc.Server[weatherRequests, weatherNotifications, weatherResults]

// codeUnknownCity is returned for cities the station table does not cover.
const codeUnknownCity = -31001

// query is the params of weather/get and weather/forecast. Days is only
// set by weather/forecast.
type query struct {
	jsonrpc.Of[weatherRequests]
	City string `json:"city"`
	Days int    `json:"days,omitempty"`
}

// weather is the result of both queries.
type weather struct {
	jsonrpc.Of[weatherResults]
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
}

type alert struct {
	jsonrpc.Of[weatherNotifications]
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

var conditions = []string{"sunny", "cloudy", "rain", "snow", "fog"}

var (
	getWeather = jsonrpc.NewRequest[query, weather]("weather/get",
		schema.Object(schema.String("city")).Strict(),
	)

	getForecast = jsonrpc.NewRequest[query, weather]("weather/forecast",
		schema.Object(
			schema.String("city"),
			schema.Integer("days", schema.Minimum(0)),
		).Strict(),
	)

	weatherSchema = schema.Object(
		schema.Number("temperature"),
		schema.String("conditions"),
	)

	weatherAlert = jsonrpc.NewNotification[alert]("weather/alert", schema.Object(
		schema.Enum("severity", []string{"warning", "watch"}),
		schema.String("message"),
	))
)

// stations knows the climate of a fixed set of cities.
type stations struct {
	baseline map[string]float64
}

func newStations() *stations {
	return &stations{baseline: map[string]float64{
		"bergen":    9,
		"cairo":     28,
		"oslo":      6,
		"paris":     13,
		"reykjavik": 4,
		"singapore": 31,
	}}
}

// lookup answers weather/get with today's reading and weather/forecast with
// the reading expected in.Days days ahead. The same city and day always
// yield the same reading.
func (s *stations) lookup(ctx context.Context, in query) (weather, error) {
	base, ok := s.baseline[strings.ToLower(in.City)]
	if !ok {
		return weather{}, jsonrpc.NewError(codeUnknownCity, "unknown city", map[string]string{"city": in.City})
	}

	day := in.Days
	if method, _ := jsonrpc.MethodFromContext(ctx); method == getWeather.Methods()[0] {
		day = 0
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(in.City)))
	v := h.Sum32() + uint32(day)*2654435761

	out := weather{
		Temperature: base + float64(int(v%11)-5),
		Conditions:  conditions[v%uint32(len(conditions))],
	}
	logging.FromContext(ctx).Debug("Reading computed", zap.String("city", in.City), zap.Int("day", day))
	return out, nil
}

func (s *stations) alert(ctx context.Context, in alert) error {
	logging.FromContext(ctx).Info("Weather alert",
		zap.String("severity", in.Severity),
		zap.String("message", in.Message),
	)
	return nil
}

// register binds the weather methods on srv.
func register(srv *weatherServer, st *stations) error {
	queries := getWeather.Or(getForecast).Returns(weatherSchema)
	if err := jsonrpc.SetRequestHandlerFunc(srv, queries, st.lookup); err != nil {
		return fmt.Errorf("register weather queries: %w", err)
	}
	if err := jsonrpc.SetNotificationHandlerFunc(srv, weatherAlert, st.alert); err != nil {
		return fmt.Errorf("register weather alerts: %w", err)
	}
	return nil
}
