package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Refund        RefundConfig        `mapstructure:"refund"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Auth          AuthConfig          `mapstructure:"auth"`
	InstanceID    string              `mapstructure:"instance_id"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// DefaultRequestTimeout covers a confirm request: a details fetch and a
// capture at the default gateway timeout, plus margin for local writes.
const DefaultRequestTimeout = 75 * time.Second

// requestTimeoutMargin is the headroom a handler needs beyond its gateway calls.
const requestTimeoutMargin = 10 * time.Second

// HandlerTimeout bounds one request inside the router.
func (s ServerConfig) HandlerTimeout() time.Duration {
	if s.RequestTimeout > 0 {
		return s.RequestTimeout
	}
	return DefaultRequestTimeout
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// RateLimitConfig limits shopper-facing checkout endpoints per client IP.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type AuthConfig struct {
	JWTSecret     string   `mapstructure:"jwt_secret"`
	OperatorRoles []string `mapstructure:"operator_roles"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	ConnectRetries  int           `mapstructure:"connect_retries"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// GatewayConfig holds the merchant's API credentials and checkout settings.
type GatewayConfig struct {
	Login        string        `mapstructure:"login"`
	Password     string        `mapstructure:"password"`
	Signature    string        `mapstructure:"signature"`
	Environment  string        `mapstructure:"environment"`
	ButtonSource string        `mapstructure:"button_source"`
	Timeout      time.Duration `mapstructure:"timeout"`

	// Endpoint and RedirectURL override the per-environment defaults.
	Endpoint    string `mapstructure:"endpoint"`
	RedirectURL string `mapstructure:"redirect_url"`

	ReturnURL string `mapstructure:"return_url"`
	CancelURL string `mapstructure:"cancel_url"`

	CircuitBreakerMinRequests  uint32        `mapstructure:"circuit_breaker_min_requests"`
	CircuitBreakerFailureRatio float64       `mapstructure:"circuit_breaker_failure_ratio"`
	CircuitBreakerTimeout      time.Duration `mapstructure:"circuit_breaker_timeout"`

	MockLatency time.Duration `mapstructure:"mock_latency"`
}

type RefundConfig struct {
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// WorkerConfig holds outbox relay configuration
type WorkerConfig struct {
	BatchSize          int           `mapstructure:"batch_size"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	Stream             string        `mapstructure:"stream"`
	StreamMaxLen       int64         `mapstructure:"stream_max_len"`
	MetricsPort        int           `mapstructure:"metrics_port"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string  `mapstructure:"log_level"`
	LogFormat      string  `mapstructure:"log_format"` // json or console
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool    `mapstructure:"enable_metrics"`
	EnableTracing  bool    `mapstructure:"enable_tracing"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// Load reads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// EXPRESS_GATEWAY_LOGIN overrides gateway.login, and so on.
	v.SetEnvPrefix("EXPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/expresscheckout")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields have valid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Refund.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("refund.lock_ttl must be positive"))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive"))
	}

	switch c.Gateway.Environment {
	case "sandbox", "live":
		if c.Gateway.Login == "" || c.Gateway.Password == "" || c.Gateway.Signature == "" {
			errs = append(errs, fmt.Errorf("gateway.login, gateway.password and gateway.signature are required for %s", c.Gateway.Environment))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("gateway.environment must be sandbox, live or mock, got %q", c.Gateway.Environment))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("gateway.timeout must be positive"))
	}
	// Confirm makes two sequential gateway calls; cutting it short can
	// cancel a capture after the processor accepted it.
	if minimum := 2*c.Gateway.Timeout + requestTimeoutMargin; c.Gateway.Timeout > 0 && c.Server.HandlerTimeout() < minimum {
		errs = append(errs, fmt.Errorf("server.request_timeout must be at least %s for gateway.timeout %s", minimum, c.Gateway.Timeout))
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Server.HandlerTimeout() {
		errs = append(errs, fmt.Errorf("server.write_timeout must exceed server.request_timeout"))
	}
	if c.Gateway.ReturnURL == "" || c.Gateway.CancelURL == "" {
		errs = append(errs, fmt.Errorf("gateway.return_url and gateway.cancel_url are required"))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, fmt.Errorf("auth.jwt_secret required in production"))
		}
		if c.Gateway.Environment == "mock" {
			errs = append(errs, fmt.Errorf("gateway.environment mock is not allowed in production"))
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least 32 characters"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.request_timeout", DefaultRequestTimeout.String())
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.rate_limit.requests", 30)
	v.SetDefault("server.rate_limit.window", "1m")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "expresscheckout")
	v.SetDefault("database.password", "expresscheckout")
	v.SetDefault("database.database", "expresscheckout")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.connect_retries", 5)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Gateway defaults. Keys without a default are invisible to
	// AutomaticEnv during Unmarshal, so credentials default to empty.
	v.SetDefault("gateway.login", "")
	v.SetDefault("gateway.password", "")
	v.SetDefault("gateway.signature", "")
	v.SetDefault("gateway.button_source", "")
	v.SetDefault("gateway.endpoint", "")
	v.SetDefault("gateway.redirect_url", "")
	v.SetDefault("gateway.environment", "mock")
	v.SetDefault("gateway.timeout", "30s")
	v.SetDefault("gateway.return_url", "http://localhost:8080/paypal/confirm")
	v.SetDefault("gateway.cancel_url", "http://localhost:8080/paypal/cancel")
	v.SetDefault("gateway.circuit_breaker_min_requests", 10)
	v.SetDefault("gateway.circuit_breaker_failure_ratio", 0.6)
	v.SetDefault("gateway.circuit_breaker_timeout", "30s")
	v.SetDefault("gateway.mock_latency", "100ms")

	// Refund defaults
	v.SetDefault("refund.lock_ttl", "60s")

	// Worker defaults
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.outbox_poll_interval", "2s")
	v.SetDefault("worker.stream", "payments.events")
	v.SetDefault("worker.stream_max_len", 100000)
	v.SetDefault("worker.metrics_port", 9091)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)
	v.SetDefault("observability.sample_ratio", 1.0)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.operator_roles", []string{"admin"})

	v.SetDefault("instance_id", "expresscheckout-1")
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MigrateURL returns the connection string in the URL form golang-migrate expects.
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
