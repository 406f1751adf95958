package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"campus-found/backend/pkg/config"
	"campus-found/backend/pkg/di"
	"campus-found/backend/pkg/logger"
	"campus-found/backend/shared/observability"
)

func main() {
	cfg := config.New()

	log := logger.New(logger.ConfigFor(cfg.Logging.Level, cfg.Logging.Format)).
		With("service", cfg.Observability.ServiceName)
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Observability: Tracing and Metrics
	if cfg.Observability.Tracing {
		shutdownTracing, err := observability.SetupTracing(cfg.Observability.ServiceName)
		if err != nil {
			log.LogError(err, "Failed to set up tracing")
			os.Exit(1)
		}
		defer shutdownTracing(context.Background())
	}
	metricsHandler, shutdownMetrics, err := observability.SetupMetrics(cfg.Observability.ServiceName)
	if err != nil {
		log.LogError(err, "Failed to set up metrics")
		os.Exit(1)
	}
	defer shutdownMetrics(context.Background())

	container, err := di.New(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependencies")
		os.Exit(1)
	}
	defer container.Close()

	r := NewRouterWithDI(container)
	defer r.Close()
	r.SetupMetrics(metricsHandler)

	grpcServer := NewGRPCServerWithDI(container)
	container.Health.Start()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		log.Info("Conversation REST API listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "HTTP server failed")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := grpcServer.ListenAndServe(cfg.Server.GRPCPort); err != nil {
			log.LogError(err, "gRPC server failed")
			stop()
		}
	}()
	if container.Bridge != nil {
		go func() {
			if err := container.Bridge.Run(ctx); err != nil {
				log.LogError(err, "Feed relay stopped")
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "HTTP server shutdown failed")
	}
	grpcServer.Stop(shutdownCtx)

	wg.Wait()
	log.Info("Server shutdown complete")
}
