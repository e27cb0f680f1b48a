// Package observe provides the logging, metrics and tracing primitives used
// by the reliability and caching core.
//
// The Logger emits one JSON record per call through zerolog. Records are
// level filtered before any formatting, tagged with a correlation id taken
// from a bound child logger or from the context, and their context fields
// are redacted unconditionally: any key containing a sensitive substring
// (see SensitiveFields) has its string value replaced with RedactedValue.
// Logging never returns an error and never panics into the caller.
//
// Metrics and Tracer wrap OpenTelemetry instruments; NewObserver builds the
// providers from Config using the exporters subpackage.
package observe
