// Package logging builds zap loggers from configuration and reports
// dispatch activity through router hooks.
package logging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bjaus/jsonrpc"
	"github.com/bjaus/jsonrpc/config"
)

// New builds a logger for cfg. Production loggers write JSON with ISO 8601
// timestamps; development loggers write console output.
func New(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

type loggerKey struct{}

// FromContext returns the logger attached by the receive hook installed by
// Options. It carries the namespace and method of the message being
// dispatched. Outside a dispatch it returns a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Options returns router hooks that log through logger.
//
// Successful dispatches log at Debug. Request failures, missing handlers,
// validation errors, throttling, malformed envelopes and dropped responses
// log at Warn. Notification failures log at Error since no caller sees them.
func Options(logger *zap.Logger) []jsonrpc.Option {
	return []jsonrpc.Option{
		jsonrpc.WithOnReceive(func(ctx context.Context, ns jsonrpc.Namespace, method string) context.Context {
			return context.WithValue(ctx, loggerKey{}, logger.With(fields(ns, method)...))
		}),
		jsonrpc.WithOnSuccess(func(_ context.Context, ns jsonrpc.Namespace, method string, d time.Duration) {
			logger.Debug("Dispatched", append(fields(ns, method), zap.Duration("duration", d))...)
		}),
		jsonrpc.WithOnFailure(func(_ context.Context, ns jsonrpc.Namespace, method string, err error, d time.Duration) {
			fs := append(fields(ns, method), zap.Duration("duration", d), zap.Error(err))
			if ns == jsonrpc.NamespaceNotification {
				logger.Error("Notification handler failed", fs...)
				return
			}
			logger.Warn("Request handler failed", fs...)
		}),
		jsonrpc.WithOnNoHandler(func(_ context.Context, ns jsonrpc.Namespace, method string) {
			logger.Warn("No handler registered", fields(ns, method)...)
		}),
		jsonrpc.WithOnValidationError(func(_ context.Context, ns jsonrpc.Namespace, method string, errs jsonrpc.FieldErrors) {
			logger.Warn("Invalid params", append(fields(ns, method), zap.Error(errs))...)
		}),
		jsonrpc.WithOnThrottled(func(_ context.Context, ns jsonrpc.Namespace, method string) {
			logger.Warn("Rate limit exceeded", fields(ns, method)...)
		}),
		jsonrpc.WithOnMalformed(func(_ context.Context, raw []byte, err error) {
			logger.Warn("Malformed message", zap.Int("size", len(raw)), zap.Error(err))
		}),
		jsonrpc.WithOnDrop(func(_ context.Context, resp *jsonrpc.Response, err error) {
			logger.Warn("Response dropped", zap.Stringer("id", resp.ID), zap.Error(err))
		}),
	}
}

func fields(ns jsonrpc.Namespace, method string) []zap.Field {
	return []zap.Field{
		zap.String("namespace", ns.String()),
		zap.String("method", method),
	}
}
