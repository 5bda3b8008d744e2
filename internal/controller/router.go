package controller

import (
	"github.com/cassiomorais/expresscheckout/internal/config"
	"github.com/cassiomorais/expresscheckout/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/expresscheckout/internal/middleware"
	"github.com/cassiomorais/expresscheckout/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	DB              Pinger
	Redis           Pinger
	CheckoutService *service.CheckoutService
	PaymentService  *service.PaymentService
	AuthzService    *service.AuthzService
	Metrics         *observability.Metrics
	Logger          zerolog.Logger
	ServiceName     string
	Server          config.ServerConfig
	JWTSecret       string
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(customMW.Tracing(deps.ServiceName))
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(deps.Server.HandlerTimeout()))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", GuestTokenHeader},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.DB, deps.Redis)
	paypalH := NewPaypalController(deps.CheckoutService)
	adminH := NewAdminPaymentController(deps.PaymentService, deps.AuthzService)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/paypal", func(r chi.Router) {
		if deps.Server.RateLimit.Requests > 0 {
			r.Use(customMW.RateLimit(deps.Server.RateLimit.Requests, deps.Server.RateLimit.Window))
		}
		r.Get("/express", paypalH.Express)
		r.Get("/confirm", paypalH.Confirm)
		r.Get("/cancel", paypalH.Cancel)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(customMW.RequireAuth(deps.JWTSecret))

		r.Get("/payments/{id}", adminH.Get)
		r.Post("/payments/{id}/paypal_refund", adminH.Refund)
		r.Put("/gateway/button_source", adminH.SetButtonSource)
		r.Delete("/gateway/button_source", adminH.ClearButtonSource)
	})

	return r
}
