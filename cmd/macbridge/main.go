// Copyright 2025 Matt Barlow
//
// macbridge - desktop automation bridge exposing macOS capabilities
// over JSON-RPC 2.0 on stdio or HTTP/SSE

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mbarlow/macbridge/internal/config"
	"github.com/mbarlow/macbridge/internal/gateway"
	"github.com/mbarlow/macbridge/internal/monitor"
	"github.com/mbarlow/macbridge/internal/server"
	"github.com/mbarlow/macbridge/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	runner := gateway.NewOsascriptRunner(logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		mon       *monitor.Monitor
		sampler   monitor.Sampler
		optimizer *monitor.Optimizer
	)
	if cfg.MonitorEnabled {
		sampler = monitor.NewGopsutilSampler("/")
		opts := monitor.Options{
			Interval:   cfg.MonitorInterval,
			WindowSize: cfg.WindowSize,
			Thresholds: monitor.Thresholds{
				CPU:    cfg.CPUThreshold,
				Memory: cfg.MemoryThreshold,
				Disk:   cfg.DiskThreshold,
			},
			Logger: logger,
		}
		if cfg.NotifyOnAlert {
			opts.OnAlert = alertNotifier(runner, logger)
		}
		mon = monitor.New(sampler, opts)
		mon.Start(ctx)
		defer mon.Stop()

		optimizer = monitor.NewOptimizer(mon, cfg.MonitorInterval*6, logger)
		optimizer.Start(ctx)
		defer optimizer.Stop()
	}

	mcpServer, err := server.NewMCPServer(cfg, server.Deps{
		Runner:    runner,
		Sampler:   sampler,
		Monitor:   mon,
		Optimizer: optimizer,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create bridge server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	errChan := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		var serveErr error
		switch cfg.Transport {
		case config.TransportHTTP:
			serveErr = runHTTPTransport(cfg, mcpServer)
		default:
			serveErr = runStdioTransport(cfg, mcpServer)
		}
		if serveErr != nil {
			errChan <- serveErr
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		mcpServer.Shutdown()
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}
	stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-sigChan:
		logger.Warn("forced shutdown")
	}
}

// newLogger builds the process logger. Both configurations write to
// stderr so stdout stays clean for the stdio transport.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// alertNotifier posts a desktop notification for each new alert.
func alertNotifier(runner gateway.Runner, logger *zap.Logger) func(monitor.Alert) {
	return func(a monitor.Alert) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg := fmt.Sprintf("%s at %.1f%% exceeds threshold %.1f%%", a.Metric, a.Value, a.Threshold)
		script := fmt.Sprintf("display notification \"%s\" with title \"Resource alert\"",
			gateway.QuoteAppleScript(msg))
		if _, err := runner.Run(ctx, gateway.Script{
			Language: gateway.LangAppleScript,
			Source:   script,
		}); err != nil {
			logger.Warn("failed to post alert notification", zap.Error(err))
		}
	}
}

// runStdioTransport serves over stdin/stdout
func runStdioTransport(_ *config.Config, mcpServer *server.MCPServer) error {
	tr := transport.NewStdioTransport(os.Stdin, os.Stdout)
	return mcpServer.Serve(tr)
}

// runHTTPTransport serves over HTTP/SSE
func runHTTPTransport(cfg *config.Config, mcpServer *server.MCPServer) error {
	httpCfg := &transport.HTTPTransportConfig{
		Address:           cfg.HTTPAddress,
		SocketPath:        cfg.HTTPSocketPath,
		HeartbeatInterval: cfg.HeartbeatInterval,
		CORSOrigin:        cfg.CORSOrigin,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		RateLimit:         cfg.RateLimit,
	}
	tr := transport.NewHTTPTransport(httpCfg)
	return mcpServer.ServeHTTP(tr)
}
