package providers

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config selects and tunes the gateway implementation.
type Config struct {
	Credentials Credentials
	Timeout     time.Duration
	Endpoint    string
	RedirectURL string
	Breaker     BreakerSettings
	// MockLatency only applies to the Mock environment.
	MockLatency time.Duration
}

// New builds the gateway for the configured environment and wraps it in a
// circuit breaker.
func New(cfg Config, logger zerolog.Logger) (*Breaker, error) {
	var p Provider

	switch cfg.Credentials.Environment {
	case Sandbox, Live:
		if cfg.Credentials.Login == "" || cfg.Credentials.Password == "" || cfg.Credentials.Signature == "" {
			return nil, fmt.Errorf("gateway credentials are required for the %s environment", cfg.Credentials.Environment)
		}
		p = NewNVPClient(NVPConfig{
			Credentials: cfg.Credentials,
			Timeout:     cfg.Timeout,
			Endpoint:    cfg.Endpoint,
			RedirectURL: cfg.RedirectURL,
		}, logger)
	case Mock:
		opts := []MockProviderOption{WithLatency(cfg.MockLatency)}
		if cfg.RedirectURL != "" {
			opts = append(opts, WithRedirectBase(cfg.RedirectURL))
		}
		p = NewMockProvider("paypal_mock", opts...)
	default:
		return nil, fmt.Errorf("unknown gateway environment %q", cfg.Credentials.Environment)
	}

	logger.Info().
		Str("provider", p.Name()).
		Str("environment", string(cfg.Credentials.Environment)).
		Msg("payment gateway configured")

	return NewBreaker(p, cfg.Breaker), nil
}
