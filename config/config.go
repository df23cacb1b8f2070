// Package config loads server settings from YAML or TOML files and turns
// them into router and server options.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/jsonrpc"
)

// ErrUnsupportedFormat is returned by Load for files that are neither YAML
// nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Config is the root of a server configuration file.
type Config struct {
	Server   jsonrpc.Info `yaml:"server" toml:"server"`
	Dispatch Dispatch     `yaml:"dispatch" toml:"dispatch"`
	Log      Log          `yaml:"log" toml:"log"`
	Metrics  Metrics      `yaml:"metrics" toml:"metrics"`
}

// Dispatch configures the router.
type Dispatch struct {
	// MaxInFlight bounds concurrently executing handlers per connection.
	// Zero means unbounded.
	MaxInFlight int `yaml:"max_in_flight" toml:"max_in_flight"`

	// HandlerTimeout bounds each handler. Zero disables the timeout.
	HandlerTimeout Duration `yaml:"handler_timeout" toml:"handler_timeout"`

	RateLimit RateLimit `yaml:"rate_limit" toml:"rate_limit"`

	// CancelMethod overrides the notification method that cancels an
	// in-flight request.
	CancelMethod string `yaml:"cancel_method" toml:"cancel_method"`

	DisablePing bool `yaml:"disable_ping" toml:"disable_ping"`
}

// RateLimit configures a token bucket shared by all inbound messages.
// A zero RPS disables limiting.
type RateLimit struct {
	RPS   float64 `yaml:"rps" toml:"rps"`
	Burst int     `yaml:"burst" toml:"burst"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `yaml:"level" toml:"level"`
	Development bool   `yaml:"development" toml:"development"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr      string `yaml:"addr" toml:"addr"`
	Namespace string `yaml:"namespace" toml:"namespace"`
}

// Duration is a time.Duration written as a string such as "5s" or "250ms".
type Duration time.Duration

// UnmarshalText parses s with time.ParseDuration.
func (d *Duration) UnmarshalText(s []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(s)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used for keys a file does not set.
func Default() Config {
	return Config{
		Server: jsonrpc.Info{Name: "jsonrpc", Version: "0.0.0"},
		Dispatch: Dispatch{
			HandlerTimeout: Duration(30 * time.Second),
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path on top of Default. The decoder is chosen by extension:
// .yaml and .yml use YAML, .toml uses TOML. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Name) == "" {
		return errors.New("server.name is required")
	}
	if c.Dispatch.MaxInFlight < 0 {
		return fmt.Errorf("dispatch.max_in_flight must not be negative, got %d", c.Dispatch.MaxInFlight)
	}
	if c.Dispatch.HandlerTimeout < 0 {
		return fmt.Errorf("dispatch.handler_timeout must not be negative, got %s", time.Duration(c.Dispatch.HandlerTimeout))
	}
	if c.Dispatch.RateLimit.RPS < 0 {
		return fmt.Errorf("dispatch.rate_limit.rps must not be negative, got %v", c.Dispatch.RateLimit.RPS)
	}
	if c.Dispatch.RateLimit.RPS > 0 && c.Dispatch.RateLimit.Burst < 1 {
		return fmt.Errorf("dispatch.rate_limit.burst must be at least 1 when rps is set, got %d", c.Dispatch.RateLimit.Burst)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// RouterOptions converts the dispatch section into router options.
func (c Config) RouterOptions() []jsonrpc.Option {
	var opts []jsonrpc.Option
	d := c.Dispatch
	if d.MaxInFlight > 0 {
		opts = append(opts, jsonrpc.WithMaxInFlight(d.MaxInFlight))
	}
	if d.HandlerTimeout > 0 {
		opts = append(opts, jsonrpc.WithHandlerTimeout(time.Duration(d.HandlerTimeout)))
	}
	if d.RateLimit.RPS > 0 {
		opts = append(opts, jsonrpc.WithRateLimit(rate.NewLimiter(rate.Limit(d.RateLimit.RPS), d.RateLimit.Burst)))
	}
	if d.CancelMethod != "" {
		opts = append(opts, jsonrpc.WithCancelMethod(d.CancelMethod))
	}
	return opts
}

// ServerOptions returns the typed server options, including the router
// options from RouterOptions followed by extra.
func (c Config) ServerOptions(extra ...jsonrpc.Option) []jsonrpc.ServerOption {
	opts := []jsonrpc.ServerOption{
		jsonrpc.WithRouterOptions(append(c.RouterOptions(), extra...)...),
	}
	if c.Dispatch.DisablePing {
		opts = append(opts, jsonrpc.WithoutPing())
	}
	return opts
}
