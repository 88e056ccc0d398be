package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/workos-sso/pkg/observability"
	"gopkg.in/yaml.v3"
)

// Broker types
const (
	BrokerWorkOS = "workos"
	BrokerOIDC   = "oidc"
)

// State store backends
const (
	StateStoreMemory = "memory"
	StateStoreRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	SSO           SSOConfig           `yaml:"sso"`
	Broker        BrokerConfig        `yaml:"broker"`
	Server        ServerConfig        `yaml:"server"`
	State         StateConfig         `yaml:"state"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// SSOConfig holds the strategy credentials and access policy
type SSOConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`

	// AllowedDomains limits accepted profile email domains. Empty allows all.
	AllowedDomains []string `yaml:"allowed_domains"`
	// AllowedRedirectURIs limits redirect URIs sent to the broker. Empty allows all.
	AllowedRedirectURIs []string `yaml:"allowed_redirect_uris"`
}

// BrokerConfig selects and configures the identity broker client
type BrokerConfig struct {
	Type          string        `yaml:"type"`
	BaseURL       string        `yaml:"base_url"`
	OIDCIssuerURL string        `yaml:"oidc_issuer_url"`
	OIDCScopes    []string      `yaml:"oidc_scopes"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Metrics server (separate port for scraping and probes)
	MetricsPort string `yaml:"metrics_port"`
}

// StateConfig holds anti-forgery state store configuration
type StateConfig struct {
	Store      string        `yaml:"store"`
	TTL        time.Duration `yaml:"ttl"`
	RedisURL   string        `yaml:"redis_url"`
	MaxEntries int           `yaml:"max_entries"`
}

// RateLimitConfig holds per-client limits for the SSO routes
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`

	// TrustProxyHeaders keys clients by X-Forwarded-For
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// AuditConfig holds audit trail settings. Events always go to the
// application log; LogDir additionally enables the rotating file.
type AuditConfig struct {
	LogDir    string `yaml:"log_dir"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	Sync      bool   `yaml:"sync"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (c ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(strings.ToLower(c.LogLevel))
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Type:    BrokerWorkOS,
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MetricsPort:     "9090",
		},
		State: StateConfig{
			Store: StateStoreMemory,
			TTL:   10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   time.Minute,
			Burst:    10,
		},
		Audit: AuditConfig{
			MaxSizeMB: 100,
			MaxFiles:  10,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "sso-server",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig loads configuration from defaults, then the YAML file named by
// SSO_CONFIG_FILE when set, then environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SSO_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path onto c
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides c with any SSO_* environment variable that is set
func (c *Config) applyEnv() {
	c.SSO.ClientID = getEnv("SSO_CLIENT_ID", c.SSO.ClientID)
	c.SSO.ClientSecret = getEnv("SSO_CLIENT_SECRET", c.SSO.ClientSecret)
	c.SSO.CallbackURL = getEnv("SSO_CALLBACK_URL", c.SSO.CallbackURL)
	c.SSO.AllowedDomains = getEnvList("SSO_ALLOWED_DOMAINS", c.SSO.AllowedDomains)
	c.SSO.AllowedRedirectURIs = getEnvList("SSO_ALLOWED_REDIRECT_URIS", c.SSO.AllowedRedirectURIs)

	c.Broker.Type = strings.ToLower(getEnv("SSO_BROKER", c.Broker.Type))
	c.Broker.BaseURL = getEnv("SSO_BROKER_BASE_URL", c.Broker.BaseURL)
	c.Broker.OIDCIssuerURL = getEnv("SSO_OIDC_ISSUER_URL", c.Broker.OIDCIssuerURL)
	c.Broker.OIDCScopes = getEnvList("SSO_OIDC_SCOPES", c.Broker.OIDCScopes)
	c.Broker.Timeout = getEnvDuration("SSO_BROKER_TIMEOUT", c.Broker.Timeout)

	c.Server.Host = getEnv("SSO_HOST", c.Server.Host)
	c.Server.Port = getEnv("SSO_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SSO_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SSO_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("SSO_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SSO_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.MetricsPort = getEnv("SSO_METRICS_PORT", c.Server.MetricsPort)

	c.State.Store = strings.ToLower(getEnv("SSO_STATE_STORE", c.State.Store))
	c.State.TTL = getEnvDuration("SSO_STATE_TTL", c.State.TTL)
	c.State.RedisURL = getEnv("SSO_REDIS_URL", c.State.RedisURL)
	c.State.MaxEntries = getEnvInt("SSO_STATE_MAX_ENTRIES", c.State.MaxEntries)

	c.RateLimit.Enabled = getEnvBool("SSO_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Requests = getEnvInt("SSO_RATE_LIMIT_REQUESTS", c.RateLimit.Requests)
	c.RateLimit.Window = getEnvDuration("SSO_RATE_LIMIT_WINDOW", c.RateLimit.Window)
	c.RateLimit.Burst = getEnvInt("SSO_RATE_LIMIT_BURST", c.RateLimit.Burst)
	c.RateLimit.TrustProxyHeaders = getEnvBool("SSO_RATE_LIMIT_TRUST_PROXY", c.RateLimit.TrustProxyHeaders)

	c.Audit.LogDir = getEnv("SSO_AUDIT_LOG_DIR", c.Audit.LogDir)
	c.Audit.MaxSizeMB = getEnvInt("SSO_AUDIT_MAX_SIZE_MB", c.Audit.MaxSizeMB)
	c.Audit.MaxFiles = getEnvInt("SSO_AUDIT_MAX_FILES", c.Audit.MaxFiles)
	c.Audit.Sync = getEnvBool("SSO_AUDIT_SYNC", c.Audit.Sync)

	c.Observability.LogLevel = getEnv("SSO_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("SSO_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("SSO_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("SSO_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("SSO_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("SSO_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("SSO_OTEL_INSECURE", c.Observability.OTelInsecure)
	c.Observability.OTelSampleRatio = getEnvFloat("SSO_OTEL_SAMPLE_RATIO", c.Observability.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate SSO credentials
	if c.SSO.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.SSO.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if err := validateAbsoluteURL("callback URL", c.SSO.CallbackURL); err != nil {
		return err
	}
	for _, uri := range c.SSO.AllowedRedirectURIs {
		if err := validateAbsoluteURL("allowed redirect URI", uri); err != nil {
			return err
		}
	}

	// Validate broker config based on type
	switch c.Broker.Type {
	case BrokerWorkOS:
		if c.Broker.BaseURL != "" {
			if err := validateAbsoluteURL("broker base URL", c.Broker.BaseURL); err != nil {
				return err
			}
		}
	case BrokerOIDC:
		if err := validateAbsoluteURL("OIDC issuer URL", c.Broker.OIDCIssuerURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid broker type: %s (must be workos or oidc)", c.Broker.Type)
	}

	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Observability.MetricsEnabled {
		if c.Server.MetricsPort == "" {
			return fmt.Errorf("metrics port is required when metrics are enabled")
		}
		if c.Server.Port == c.Server.MetricsPort {
			return fmt.Errorf("server port and metrics port must be different")
		}
	}

	// Validate state store config
	switch c.State.Store {
	case StateStoreMemory:
	case StateStoreRedis:
		if c.State.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis state store")
		}
	default:
		return fmt.Errorf("invalid state store: %s (must be memory or redis)", c.State.Store)
	}
	if c.State.TTL <= 0 {
		return fmt.Errorf("state TTL must be positive")
	}

	// Validate rate limit config
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("rate limit requests must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
		if c.RateLimit.Burst < 0 {
			return fmt.Errorf("rate limit burst must not be negative")
		}
	}

	// Validate audit config
	if c.Audit.LogDir != "" && (c.Audit.MaxSizeMB <= 0 || c.Audit.MaxFiles <= 0) {
		return fmt.Errorf("audit max size and max files must be positive when the audit log is enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

func validateAbsoluteURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an absolute URL", name, raw)
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default.
// Blank items are dropped.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
