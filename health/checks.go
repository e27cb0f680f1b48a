package health

import (
	"context"
	"strings"

	"github.com/jonwraymond/airelay/resilience"
)

// BreakerSource lists circuit breaker states. *resilience.Registry
// satisfies it.
type BreakerSource interface {
	Snapshot() []resilience.Snapshot
}

// BreakerChecker reports unhealthy when any breaker is open and degraded
// when any is probing in half-open.
func BreakerChecker(source BreakerSource) Checker {
	return NewCheckerFunc("circuit_breakers", func(context.Context) Result {
		snaps := source.Snapshot()

		var open, probing []string
		details := make(map[string]any, len(snaps))
		for _, s := range snaps {
			details[s.Name] = map[string]any{
				"state":    s.State.String(),
				"failures": s.Failures,
			}
			switch s.State {
			case resilience.StateOpen:
				open = append(open, s.Name)
			case resilience.StateHalfOpen:
				probing = append(probing, s.Name)
			}
		}

		var r Result
		switch {
		case len(open) > 0:
			r = Unhealthy("circuit open: "+strings.Join(open, ", "), ErrCheckFailed)
		case len(probing) > 0:
			r = Degraded("circuit half-open: " + strings.Join(probing, ", "))
		default:
			r = Healthy("all circuits closed")
		}
		return r.WithDetails(details)
	})
}

// StoreChecker pings a cache store. An unreachable store only degrades
// health because requests still succeed without the cache.
func StoreChecker(name string, store Pinger) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		if err := store.Ping(ctx); err != nil {
			r := Degraded("cache store unreachable")
			r.Error = err
			return r
		}
		return Healthy("cache store reachable")
	})
}
