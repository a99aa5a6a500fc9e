// Package config loads and validates the pipeline's runtime configuration:
// a YAML file expanded against the process environment, merged with
// built-in defaults, and validated before any component starts.
package config

import "time"

// Config is the umbrella configuration object returned by Initialize and
// threaded explicitly through cmd/shift's wiring — never stored in a
// package-level global (spec.md §9 Design Notes).
type Config struct {
	Role     string `yaml:"-"` // set from -role flag / ROLE env, not YAML

	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	Identity IdentityConfig `yaml:"identity"`
	Push     PushConfig     `yaml:"push"`
	Slack    SlackConfig    `yaml:"slack"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// HTTPConfig configures the ingestion-gateway/aggregator HTTP server.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// DatabaseConfig configures the Postgres warehouse connection.
type DatabaseConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"required"`
	User            string        `yaml:"user" validate:"required"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"omitempty,min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"omitempty,min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig configures both the dedup-lock store and the bus (pkg/bus),
// which share one Redis deployment and one client handle constructed
// from this config.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig bounds the estimator/selector worker pools (spec.md §5).
type QueueConfig struct {
	EstimatorWorkers int           `yaml:"estimator_workers" validate:"omitempty,min=1"`
	SelectorWorkers  int           `yaml:"selector_workers" validate:"omitempty,min=1"`
	LookbackWindow   time.Duration `yaml:"lookback_window"`   // §4.C step 3
	RateLimitWindow  time.Duration `yaml:"rate_limit_window"` // §4.D step 8
	RateLimitMax     int           `yaml:"rate_limit_max" validate:"omitempty,min=1"`
	OnboardingWindow time.Duration `yaml:"onboarding_window"` // §4.E step 3 "recent" flow_requested
}

// IdentityConfig configures bearer-token verification (pkg/identity).
type IdentityConfig struct {
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	// StaticMode, when true, skips JWKS fetch and accepts the bearer token
	// itself as the user id. Used for local dev and tests only.
	StaticMode bool `yaml:"static_mode"`
}

// PushConfig configures the APNs delivery client (pkg/push).
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TeamID     string `yaml:"team_id"`
	KeyID      string `yaml:"key_id"`
	BundleID   string `yaml:"bundle_id"`
	PrivateKey string `yaml:"private_key_env"` // name of env var holding the PEM key
	Sandbox    bool   `yaml:"sandbox"`
}

// SlackConfig configures the operator-alerting notifier (pkg/slack).
type SlackConfig struct {
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}

// TracingConfig configures the OpenTelemetry exporter (pkg/tracing).
type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	ServiceName    string `yaml:"service_name"`
}
