package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/airelay/cache"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "airelay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithEnvKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("AIRELAY_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.Provider.APIKey)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Breaker.FailureThreshold != 5 {
		t.Errorf("defaults not applied: %+v %+v", cfg.Retry, cfg.Breaker)
	}
	if cfg.Cache.Backend != cache.BackendMemory || !cfg.Cache.Enabled {
		t.Errorf("cache defaults = %+v", cfg.Cache)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("AIRELAY_API_KEY", "")

	_, err := Load("")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Load() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestLoad_AnthropicKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-sdk")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.APIKey != "sk-sdk" {
		t.Errorf("APIKey = %q, want the SDK variable", cfg.Provider.APIKey)
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("TEST_REDIS_HOST", "cache.internal")
	secretPath := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(secretPath, []byte("sk-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, `
service: relay-test
logging:
  level: debug
  format: console
retry:
  max_retries: 0
  initial_delay: 250ms
  max_delay: 2s
breaker:
  failure_threshold: 3
  reset_timeout: 10s
cache:
  backend: redis
  single_flight: true
  redis:
    addr: ${TEST_REDIS_HOST}:6379
    db: 2
provider:
  api_key: secretref:file:`+secretPath+`
  model: claude-haiku
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service != "relay-test" || cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("top-level settings = %q %+v", cfg.Service, cfg.Logging)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want explicit 0 honoured", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.InitialDelay != 250*time.Millisecond || cfg.Retry.MaxDelay != 2*time.Second {
		t.Errorf("retry delays = %v %v", cfg.Retry.InitialDelay, cfg.Retry.MaxDelay)
	}
	if cfg.Breaker.FailureThreshold != 3 || cfg.Breaker.FailureWindow != 60*time.Second {
		t.Errorf("breaker = %+v, want file value plus default window", cfg.Breaker)
	}
	if cfg.Cache.Redis.Addr != "cache.internal:6379" || cfg.Cache.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Cache.Redis)
	}
	if cfg.Cache.Redis.Prefix != cache.DefaultRedisPrefix {
		t.Errorf("Prefix = %q, want default kept", cfg.Cache.Redis.Prefix)
	}
	if !cfg.Cache.SingleFlight {
		t.Error("SingleFlight should be set")
	}
	if cfg.Provider.APIKey != "sk-from-file" || cfg.Provider.Model != "claude-haiku" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("AIRELAY_MAX_RETRIES", "5")
	t.Setenv("AIRELAY_CACHE_ENABLED", "false")
	t.Setenv("AIRELAY_BREAKER_RESET", "45s")

	path := writeConfig(t, "retry:\n  max_retries: 1\nprovider:\n  api_key: sk\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want env override", cfg.Retry.MaxRetries)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled by env")
	}
	if cfg.Breaker.ResetTimeout != 45*time.Second {
		t.Errorf("ResetTimeout = %v", cfg.Breaker.ResetTimeout)
	}
}

func TestLoad_EnvTypedOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("AIRELAY_TEST_KEY_SOURCE", "sk-indirect")
	t.Setenv("AIRELAY_API_KEY", "secretref:env:AIRELAY_TEST_KEY_SOURCE")
	t.Setenv("AIRELAY_RETRY_JITTER", "0.25")
	t.Setenv("AIRELAY_RATE_LIMIT_ENABLED", "true")
	t.Setenv("AIRELAY_ATTEMPT_TIMEOUT", "750ms")
	t.Setenv("AIRELAY_MODEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.APIKey != "sk-indirect" {
		t.Errorf("APIKey = %q, want secretref resolved", cfg.Provider.APIKey)
	}
	if cfg.Retry.JitterFactor != 0.25 || cfg.Retry.AttemptTimeout != 750*time.Millisecond {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("rate limit should be enabled by env")
	}
	if cfg.Provider.Model != Default().Provider.Model {
		t.Errorf("empty AIRELAY_MODEL replaced the default: %q", cfg.Provider.Model)
	}
}

func TestLoad_MissingEnvReference(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := writeConfig(t, "provider:\n  api_key: ${AIRELAY_TEST_DEFINITELY_UNSET}\n")

	_, err := Load(path)
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("Load() error = %v, want ErrMissingEnv", err)
	}
	if !strings.Contains(err.Error(), "AIRELAY_TEST_DEFINITELY_UNSET") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_BadInputs(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := Load(writeConfig(t, "retry: [unclosed")); err == nil {
		t.Error("malformed yaml should fail")
	}

	t.Setenv("AIRELAY_MAX_RETRIES", "lots")
	t.Setenv("AIRELAY_BREAKER_WINDOW", "forever")
	_, err := Load("")
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("Load() error = %v, want ErrInvalidValue", err)
	}
	for _, name := range []string{"AIRELAY_MAX_RETRIES", "AIRELAY_BREAKER_WINDOW"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKey = "sk"
	cfg.Logging.Level = "loud"
	cfg.Retry.JitterFactor = 2
	cfg.Breaker.FailureThreshold = 0
	cfg.Cache.Backend = cache.BackendRedis
	cfg.Observe.Tracing.Enabled = true
	cfg.Observe.Tracing.Exporter = "zipkin"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{"logging.level", "jitter_factor", "failure_threshold", "redis.addr", "zipkin"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_DefaultsNeedOnlyKey(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want only ErrMissingAPIKey", err)
	}
	cfg.Provider.APIKey = "sk"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestComponentConfigs(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxRetries = 0
	cfg.Breaker.HalfOpenMaxRequests = 2
	cfg.RateLimit.RPS = 3

	if rc := cfg.RetryConfig(); rc.MaxRetries != 0 || rc.InitialDelay != time.Second {
		t.Errorf("RetryConfig() = %+v", rc)
	}
	if bc := cfg.BreakerConfig(); bc.HalfOpenMaxRequests != 2 || bc.FailureThreshold != 5 {
		t.Errorf("BreakerConfig() = %+v", bc)
	}
	if lc := cfg.RateLimiterConfig(); lc.Rate != 3 {
		t.Errorf("RateLimiterConfig() = %+v", lc)
	}
	if oc := cfg.ObserveConfig(); oc.ServiceName != "airelay" || oc.Logging.Level != "info" {
		t.Errorf("ObserveConfig() = %+v", oc)
	}
}
