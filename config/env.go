package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "AIRELAY_"

// applyEnv overlays AIRELAY_* variables on cfg. Unset or empty variables
// leave the current value. Malformed values are collected and reported
// together.
func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(strings.TrimSuffix(EnvPrefix, "_"))
	v.AutomaticEnv()
	e := &envBinder{v: v}

	e.stringVar("service", &cfg.Service)
	e.stringVar("log_level", &cfg.Logging.Level)
	e.stringVar("log_format", &cfg.Logging.Format)

	e.intVar("max_retries", &cfg.Retry.MaxRetries)
	e.durationVar("retry_initial_delay", &cfg.Retry.InitialDelay)
	e.durationVar("retry_max_delay", &cfg.Retry.MaxDelay)
	e.floatVar("retry_jitter", &cfg.Retry.JitterFactor)
	e.durationVar("attempt_timeout", &cfg.Retry.AttemptTimeout)

	e.intVar("breaker_threshold", &cfg.Breaker.FailureThreshold)
	e.durationVar("breaker_window", &cfg.Breaker.FailureWindow)
	e.durationVar("breaker_reset", &cfg.Breaker.ResetTimeout)

	e.boolVar("rate_limit_enabled", &cfg.RateLimit.Enabled)
	e.floatVar("rate_limit_rps", &cfg.RateLimit.RPS)
	e.intVar("rate_limit_burst", &cfg.RateLimit.Burst)
	e.intVar("max_concurrent", &cfg.RateLimit.MaxConcurrent)

	e.boolVar("cache_enabled", &cfg.Cache.Enabled)
	e.boolVar("cache_single_flight", &cfg.Cache.SingleFlight)
	e.stringVar("cache_backend", &cfg.Cache.Backend)
	e.intVar("cache_max_entries", &cfg.Cache.MaxEntries)
	e.stringVar("redis_addr", &cfg.Cache.Redis.Addr)
	e.secretVar("redis_password", &cfg.Cache.Redis.Password)
	e.intVar("redis_db", &cfg.Cache.Redis.DB)
	e.stringVar("redis_prefix", &cfg.Cache.Redis.Prefix)

	e.secretVar("api_key", &cfg.Provider.APIKey)
	e.stringVar("base_url", &cfg.Provider.BaseURL)
	e.stringVar("model", &cfg.Provider.Model)
	e.intVar("max_tokens", &cfg.Provider.MaxTokens)
	e.durationVar("provider_timeout", &cfg.Provider.Timeout)

	e.boolVar("tracing_enabled", &cfg.Observe.Tracing.Enabled)
	e.stringVar("tracing_exporter", &cfg.Observe.Tracing.Exporter)
	e.boolVar("metrics_enabled", &cfg.Observe.Metrics.Enabled)
	e.stringVar("metrics_exporter", &cfg.Observe.Metrics.Exporter)

	// The provider SDK's own variable is honoured when nothing else set a key.
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return errors.Join(e.errs...)
}

// envBinder reads typed overrides through viper's automatic env lookup.
type envBinder struct {
	v    *viper.Viper
	errs []error
}

func envName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

func (e *envBinder) fail(key string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%w: %s: %v", ErrInvalidValue, envName(key), err))
}

func (e *envBinder) stringVar(key string, dst *string) {
	if e.v.IsSet(key) {
		*dst = e.v.GetString(key)
	}
}

func (e *envBinder) secretVar(key string, dst *string) {
	if !e.v.IsSet(key) {
		return
	}
	resolved, err := ResolveValue(e.v.GetString(key))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", envName(key), err))
		return
	}
	*dst = resolved
}

func (e *envBinder) intVar(key string, dst *int) {
	if !e.v.IsSet(key) {
		return
	}
	n, err := cast.ToIntE(e.v.Get(key))
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = n
}

func (e *envBinder) floatVar(key string, dst *float64) {
	if !e.v.IsSet(key) {
		return
	}
	f, err := cast.ToFloat64E(e.v.Get(key))
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = f
}

func (e *envBinder) boolVar(key string, dst *bool) {
	if !e.v.IsSet(key) {
		return
	}
	b, err := cast.ToBoolE(e.v.Get(key))
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = b
}

func (e *envBinder) durationVar(key string, dst *time.Duration) {
	if !e.v.IsSet(key) {
		return
	}
	d, err := cast.ToDurationE(e.v.Get(key))
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = d
}
