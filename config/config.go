package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/airelay/cache"
	"github.com/jonwraymond/airelay/observe"
	"github.com/jonwraymond/airelay/resilience"
)

// Config is the process configuration, loaded once at startup.
type Config struct {
	// Service is stamped on every log record and telemetry resource.
	// Default: "airelay"
	Service string `yaml:"service"`

	Logging   LoggingConfig   `yaml:"logging"`
	Retry     RetryConfig     `yaml:"retry"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Provider  ProviderConfig  `yaml:"provider"`
	Observe   ObserveConfig   `yaml:"observe"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is debug|info|warn|error|fatal. Default: info
	Level string `yaml:"level"`
	// Format is json|console. Default: json
	Format string `yaml:"format"`
}

// RetryConfig configures retries around each protected call.
type RetryConfig struct {
	// MaxRetries after the first attempt. Zero disables retrying.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`
	// InitialDelay. Default: 1s
	InitialDelay time.Duration `yaml:"initial_delay"`
	// MaxDelay. Default: 10s
	MaxDelay time.Duration `yaml:"max_delay"`
	// JitterFactor in [0, 1]. Default: 0.1
	JitterFactor float64 `yaml:"jitter_factor"`
	// AttemptTimeout bounds each attempt. Zero disables it.
	// Default: 0
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// BreakerConfig configures the per-dependency circuit breakers.
type BreakerConfig struct {
	// FailureThreshold. Default: 5
	FailureThreshold int `yaml:"failure_threshold"`
	// FailureWindow. Default: 60s
	FailureWindow time.Duration `yaml:"failure_window"`
	// ResetTimeout. Default: 30s
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	// HalfOpenMaxRequests. Default: 1
	HalfOpenMaxRequests int `yaml:"half_open_max_requests"`
}

// RateLimitConfig configures client-side throttling.
type RateLimitConfig struct {
	// Enabled turns the limiter on. Default: false
	Enabled bool `yaml:"enabled"`
	// RPS is the sustained rate. Default: 10
	RPS float64 `yaml:"rps"`
	// Burst. Default: 5
	Burst int `yaml:"burst"`
	// Wait makes callers wait for a token instead of failing fast.
	Wait bool `yaml:"wait"`
	// MaxConcurrent caps in-flight calls. Zero disables the bulkhead.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Enabled turns response caching on. Default: true
	Enabled bool `yaml:"enabled"`
	// SingleFlight shares one generation between concurrent misses.
	// Default: false
	SingleFlight bool `yaml:"single_flight"`

	cache.StoreConfig `yaml:",inline"`
}

// ProviderConfig configures the completion provider.
type ProviderConfig struct {
	// APIKey may be a secretref. Required.
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`
	// Model. Default: "claude-sonnet-4-5"
	Model string `yaml:"model"`
	// MaxTokens. Default: 1024
	MaxTokens int `yaml:"max_tokens"`
	// Timeout bounds each HTTP request. Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// ObserveConfig configures telemetry export.
type ObserveConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Service: "airelay",
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Retry: RetryConfig{
			MaxRetries:   resilience.DefaultMaxRetries,
			InitialDelay: resilience.DefaultInitialDelay,
			MaxDelay:     resilience.DefaultMaxDelay,
			JitterFactor: resilience.DefaultJitterFactor,
		},
		Breaker: BreakerConfig{
			FailureThreshold:    resilience.DefaultFailureThreshold,
			FailureWindow:       resilience.DefaultFailureWindow,
			ResetTimeout:        resilience.DefaultResetTimeout,
			HalfOpenMaxRequests: 1,
		},
		RateLimit: RateLimitConfig{RPS: 10, Burst: 5},
		Cache: CacheConfig{
			Enabled: true,
			StoreConfig: cache.StoreConfig{
				Backend:    cache.BackendMemory,
				MaxEntries: cache.DefaultMaxEntries,
				Redis:      cache.RedisStoreConfig{Prefix: cache.DefaultRedisPrefix},
			},
		},
		Provider: ProviderConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
		},
		Observe: ObserveConfig{
			Tracing: TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics: MetricsConfig{Exporter: "none"},
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (optional) and
// AIRELAY_* environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 -- path is provided by trusted source (CLI flag)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// decode parses data over cfg, resolving ${VAR} and secretref values in
// every scalar first.
func decode(data []byte, cfg *Config) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if root.Kind == 0 {
		return nil
	}
	if err := resolveNode(&root); err != nil {
		return err
	}
	if err := root.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func resolveNode(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		v, err := ResolveValue(n.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		n.Value = v
		return nil
	}
	for _, child := range n.Content {
		if err := resolveNode(child); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidValue}, args...)...))
	}

	if !slices.Contains(observe.ValidLogLevels, c.Logging.Level) {
		invalid("logging.level %q", c.Logging.Level)
	}
	if !slices.Contains(observe.ValidLogFormats, c.Logging.Format) {
		invalid("logging.format %q", c.Logging.Format)
	}
	if c.Retry.MaxRetries < 0 {
		invalid("retry.max_retries must not be negative")
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		invalid("retry delays must satisfy 0 < initial_delay <= max_delay")
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		invalid("retry.jitter_factor must be within [0, 1]")
	}
	if c.Breaker.FailureThreshold <= 0 {
		invalid("breaker.failure_threshold must be positive")
	}
	if c.Breaker.FailureWindow <= 0 || c.Breaker.ResetTimeout <= 0 {
		invalid("breaker windows must be positive")
	}
	if c.Breaker.HalfOpenMaxRequests <= 0 {
		invalid("breaker.half_open_max_requests must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		invalid("rate_limit rps and burst must be positive")
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case cache.BackendMemory:
		case cache.BackendRedis:
			if c.Cache.Redis.Addr == "" {
				invalid("cache.redis.addr is required for the redis backend")
			}
		default:
			invalid("cache.backend %q", c.Cache.Backend)
		}
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.Provider.MaxTokens <= 0 {
		invalid("provider.max_tokens must be positive")
	}
	obs := c.ObserveConfig()
	if err := obs.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// RetryConfig returns the resilience retry settings.
func (c *Config) RetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:   c.Retry.MaxRetries,
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		JitterFactor: c.Retry.JitterFactor,
	}
}

// BreakerConfig returns the base circuit breaker settings.
func (c *Config) BreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold:    c.Breaker.FailureThreshold,
		FailureWindow:       c.Breaker.FailureWindow,
		ResetTimeout:        c.Breaker.ResetTimeout,
		HalfOpenMaxRequests: c.Breaker.HalfOpenMaxRequests,
	}
}

// RateLimiterConfig returns the limiter settings.
func (c *Config) RateLimiterConfig() resilience.RateLimiterConfig {
	return resilience.RateLimiterConfig{
		Rate:        c.RateLimit.RPS,
		Burst:       c.RateLimit.Burst,
		WaitOnLimit: c.RateLimit.Wait,
	}
}

// ObserveConfig returns the telemetry settings.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Service,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing.Enabled,
			Exporter:  c.Observe.Tracing.Exporter,
			SamplePct: c.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics.Enabled,
			Exporter: c.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Logging.Level,
			Format:  c.Logging.Format,
		},
	}
}
