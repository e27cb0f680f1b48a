// Package config loads process configuration for the AI relay.
//
// Settings come from Default, then an optional YAML file, then AIRELAY_*
// environment variables. Scalar values in the file may reference the
// environment as ${VAR}; a missing variable is an error rather than an empty
// string. Values of the form secretref:env:NAME or secretref:file:/path are
// replaced by the referenced secret, so credentials need not appear in the
// file itself.
//
//	provider:
//	  api_key: secretref:file:/run/secrets/anthropic
//	cache:
//	  backend: redis
//	  redis:
//	    addr: ${REDIS_HOST}:6379
//
// Validate reports every invalid setting in one joined error.
package config
