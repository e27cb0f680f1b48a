package config

import "errors"

var (
	// ErrMissingEnv is returned when ${VAR} names an unset variable.
	ErrMissingEnv = errors.New("config: missing required environment variables")

	// ErrMissingAPIKey is returned when no provider API key is configured.
	ErrMissingAPIKey = errors.New("config: provider api_key is required")

	// ErrUnknownSecretProvider is returned for a secretref with an
	// unsupported provider.
	ErrUnknownSecretProvider = errors.New("config: unknown secret provider")

	// ErrInvalidValue is returned for out-of-range settings.
	ErrInvalidValue = errors.New("config: invalid value")
)
