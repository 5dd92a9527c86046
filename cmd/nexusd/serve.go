package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexuschat/nexusd/internal/auth"
	"github.com/nexuschat/nexusd/internal/config"
	"github.com/nexuschat/nexusd/internal/httpapi"
	"github.com/nexuschat/nexusd/internal/logging"
	"github.com/nexuschat/nexusd/internal/metrics"
	"github.com/nexuschat/nexusd/internal/objstore"
	"github.com/nexuschat/nexusd/internal/registry"
	"github.com/nexuschat/nexusd/internal/relay"
	"github.com/nexuschat/nexusd/internal/router"
	"github.com/nexuschat/nexusd/internal/scylladb"
	"github.com/nexuschat/nexusd/internal/server"
	"github.com/nexuschat/nexusd/internal/stream"
)

// runServe wires every subsystem and blocks until a signal arrives or a
// listener fails fatally.
func runServe(cfg config.Config) error {
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	var collector metrics.Collector = metrics.NewNoopCollector()
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(metrics.DefaultRegisterer())
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	store, err := scylladb.Connect(cfg.Scylla.URI)
	if err != nil {
		return err
	}
	defer store.Close()

	schemaCtx, schemaCancel := context.WithTimeout(ctx, 30*time.Second)
	defer schemaCancel()
	if err := store.EnsureSchema(schemaCtx); err != nil {
		return err
	}
	logger.Info("storage ready", "uri", cfg.Scylla.URI)

	var uploader stream.Uploader
	if cfg.Minio.Enabled {
		objClient, err := objstore.Connect(cfg.Minio.Host, cfg.Minio.Port, cfg.Minio.RootUser, cfg.Minio.RootPassword, logger)
		if err != nil {
			return err
		}
		if err := objClient.EnsureBuckets(ctx); err != nil {
			return err
		}
		uploader = objClient
		logger.Info("object store ready", "host", cfg.Minio.Host)
	}

	gate := auth.NewGate([]byte(cfg.JWT.Secret), time.Duration(cfg.JWT.TTL)*time.Second, store)
	reg := registry.New()
	rtr := router.New(reg, store, logger, collector)
	sessions := stream.NewHandler(reg, gate, rtr, store, uploader, cfg.Media.Root, logger, collector)

	limiter := server.NewConnectionLimiter(cfg.Limits.MaxConnections)
	tcpServer := server.NewTCPServer(cfg.Addr, sessions, limiter, logger)

	udpConn, err := server.ListenUDP(ctx, cfg.UDPAddr, logger)
	if err != nil {
		return err
	}
	mediaRelay := relay.New(udpConn, reg, logger, collector)

	api := httpapi.NewServer(cfg.HTTPAddr, cfg.TLS.CertFile, cfg.TLS.KeyFile, store, gate, logger)

	logger.Info("starting nexusd",
		"addr", cfg.Addr,
		"udp_addr", cfg.UDPAddr,
		"http_addr", cfg.HTTPAddr)

	errCh := make(chan error, 3)
	go func() { errCh <- tcpServer.Run(ctx) }()
	go func() { errCh <- mediaRelay.Run(ctx) }()
	go func() { errCh <- api.Start(ctx) }()

	// The first fatal listener error tears everything down. Cancellation
	// is the normal shutdown path, not an error.
	var firstErr error
	for i := 0; i < 3; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
			cancel()
		} else if i == 0 {
			cancel()
		}
	}

	logger.Info("nexusd stopped")
	return firstErr
}
