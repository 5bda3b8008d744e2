package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/expresscheckout/internal/bootstrap"
	"github.com/cassiomorais/expresscheckout/internal/controller"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "expresscheckout-api", "expresscheckout")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	services, err := app.Services()
	if err != nil {
		app.Logger.Error().Err(err).Msg("Failed to build services")
		app.Close()
		os.Exit(1)
	}

	router := controller.NewRouter(controller.RouterDeps{
		DB:              app.Pool,
		Redis:           controller.RedisPinger(app.Redis),
		CheckoutService: services.Checkout,
		PaymentService:  services.Payments,
		AuthzService:    services.Authz,
		Metrics:         app.Metrics,
		Logger:          app.Logger,
		ServiceName:     "expresscheckout-api",
		Server:          app.Config.Server,
		JWTSecret:       app.Config.Auth.JWTSecret,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		app.Logger.Error().Err(err).Msg("HTTP server failed")
	}

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
