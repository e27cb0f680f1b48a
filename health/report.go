package health

import (
	"context"
	"time"
)

// Report is the JSON rendering of an aggregated health check.
type Report struct {
	Status    Status                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckReport `json:"checks,omitempty"`
}

// CheckReport is the JSON rendering of a single check.
type CheckReport struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// BuildReport runs every check in agg and renders the outcome.
func BuildReport(ctx context.Context, agg *Aggregator) Report {
	results := agg.CheckAll(ctx)

	report := Report{
		Status:    agg.OverallStatus(results),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]CheckReport, len(results)),
	}
	for name, result := range results {
		check := CheckReport{
			Status:   result.Status,
			Message:  result.Message,
			Duration: result.Duration.String(),
			Details:  result.Details,
		}
		if result.Error != nil {
			check.Error = result.Error.Error()
		}
		report.Checks[name] = check
	}
	return report
}
