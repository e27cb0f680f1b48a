package observe_test

import (
	"context"
	"os"

	"github.com/jonwraymond/airelay/observe"
)

func ExampleLogger_WithCorrelationID() {
	logger := observe.NewLoggerWithConfig(observe.LoggerConfig{
		Level:   "info",
		Service: "airelay",
		Writer:  os.Stdout,
	})

	reqLogger := logger.WithCorrelationID("req-42")
	reqLogger.Debug(context.Background(), "suppressed below info")
}

func ExampleRedact() {
	fields := observe.Redact(map[string]any{"apiKey": "sk-live", "model": "claude"})
	os.Stdout.WriteString(fields["apiKey"].(string) + " " + fields["model"].(string) + "\n")
	// Output: [REDACTED] claude
}
