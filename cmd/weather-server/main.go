// Command weather-server serves the weather JSON-RPC methods over stdin and
// stdout, one message per line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bjaus/jsonrpc"
	"github.com/bjaus/jsonrpc/config"
	"github.com/bjaus/jsonrpc/logging"
	"github.com/bjaus/jsonrpc/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or TOML configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received shutdown signal, stopping server...")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server encountered an error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	hooks := logging.Options(logger)

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		collector, err := metrics.New(reg, cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
		hooks = append(hooks, collector.Options()...)

		stop := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stop()
	}

	srv, err := jsonrpc.NewServer[weatherRequests, weatherNotifications, weatherResults](
		cfg.Server, cfg.ServerOptions(hooks...)...,
	)
	if err != nil {
		return err
	}
	if err := register(srv, newStations()); err != nil {
		return err
	}

	logger.Info("Serving on stdio",
		zap.String("name", cfg.Server.Name),
		zap.String("version", cfg.Server.Version),
		zap.Strings("requests", srv.Router().Registry().Methods(jsonrpc.NamespaceRequest)),
	)
	conn := newLineConn(os.Stdin, os.Stdout)
	defer conn.Close()
	return srv.Serve(ctx, conn)
}

// serveMetrics exposes reg on addr and returns a function that shuts the
// listener down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
}
