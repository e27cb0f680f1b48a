package resilience

import (
	"context"
	"slices"
	"testing"
	"time"
)

func TestRegistry_GetReturnsSameBreaker(t *testing.T) {
	reg := NewRegistry(CircuitBreakerConfig{FailureThreshold: 2, Clock: newFakeClock()})

	a := reg.Get("anthropic")
	if reg.Get("anthropic") != a {
		t.Error("Get should return the same breaker for a name")
	}
	if reg.Get("openai") == a {
		t.Error("different names must not share a breaker")
	}
	if a.Name() != "anthropic" {
		t.Errorf("Name() = %q", a.Name())
	}
	if a.config.FailureThreshold != 2 {
		t.Errorf("FailureThreshold = %d, want base config value", a.config.FailureThreshold)
	}
}

func TestRegistry_SnapshotAndReset(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute, Clock: clock})

	_ = reg.Get("b").Execute(context.Background(), fail)
	_ = reg.Get("a")

	if got := reg.Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Names() = %v", got)
	}

	snaps := reg.Snapshot()
	if len(snaps) != 2 || snaps[0].State != StateClosed || snaps[1].State != StateOpen {
		t.Fatalf("Snapshot() = %+v", snaps)
	}

	reg.ResetAll()
	if reg.Get("b").State() != StateClosed {
		t.Error("ResetAll should close every breaker")
	}
}
