package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/expresscheckout/internal/bootstrap"
	infraRedis "github.com/cassiomorais/expresscheckout/internal/infrastructure/redis"
	"github.com/cassiomorais/expresscheckout/internal/repository/postgres"
	"github.com/cassiomorais/expresscheckout/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "expresscheckout-worker", "expresscheckout_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	workerCfg := app.Config.Worker
	relay := worker.NewOutboxRelay(
		postgres.NewTxManager(app.Pool),
		postgres.NewOutboxRepository(app.Pool),
		infraRedis.NewStreamPublisher(app.Redis, workerCfg.Stream, workerCfg.StreamMaxLen),
		app.Metrics,
		app.Logger,
		workerCfg.BatchSize,
		workerCfg.OutboxPollInterval,
	)

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", workerCfg.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox relay (polls the outbox table and publishes to the Redis stream).
	g.Go(func() error {
		return relay.Run(gCtx)
	})

	// 2. Metrics endpoint.
	g.Go(func() error {
		app.Logger.Info().Str("addr", metricsSrv.Addr).Msg("Starting metrics server")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 3. Shutdown once a signal arrives or either task fails.
	g.Go(func() error {
		<-gCtx.Done()
		app.Logger.Info().Msg("Shutting down worker...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
