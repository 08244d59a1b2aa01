package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-bridge/call"
	"github.com/mrsingh-rishi/voice-bridge/config"
	"github.com/mrsingh-rishi/voice-bridge/encoder"
	"github.com/mrsingh-rishi/voice-bridge/logger"
	"github.com/mrsingh-rishi/voice-bridge/metrics"
	"github.com/mrsingh-rishi/voice-bridge/upstream"
	"github.com/mrsingh-rishi/voice-bridge/workers"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load .env if present
	if !config.LoadDotEnv() {
		log.Println("No .env file found, falling back to environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zl, err := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	enc, err := encoder.New(encoder.Options{
		Channels:   cfg.Encoder.Channels,
		SampleRate: cfg.Encoder.SampleRate,
		BitRate:    cfg.Encoder.BitRate,
	}, encoder.WithLogger(zl.Named("encoder")), encoder.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("encoder: %w", err)
	}

	requests := make(chan workers.EncodeRequest)
	worker, err := workers.NewEncodeWorker(enc, requests, cfg.Encoder.Workers, zl.Named("encode-worker"))
	if err != nil {
		return err
	}
	worker.Start()
	defer worker.Stop()

	srv := newServer(serverParams{
		Port: cfg.Server.Port,
		Dialer: &upstream.Dialer{
			BaseURL:          cfg.Upstream.BaseURL,
			HandshakeTimeout: cfg.Upstream.HandshakeTimeoutDuration(),
			Logger:           zl.Named("upstream"),
		},
		HandshakeTimeout: cfg.Upstream.HandshakeTimeoutDuration(),
		Stream: call.Config{
			MaxChunks: cfg.Stream.MaxChunks,
			MaxDelay:  cfg.Stream.MaxDelay(),
		},
		EncodeRequests: requests,
		BodyLimit:      cfg.Encoder.MaxUploadMB * 1024 * 1024,
		Gatherer:       registry,
		Metrics:        m,
		Logger:         zl,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zl.Info("voice bridge listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("upstream", cfg.Upstream.BaseURL),
		)
		errCh <- srv.app.Listen(cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		zl.Info("shutting down")
		return srv.shutdown(cfg.Server.ShutdownTimeoutDuration())
	}
}
