package completion

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/airelay/apierr"
	"github.com/jonwraymond/airelay/cache"
	"github.com/jonwraymond/airelay/observe"
	"github.com/jonwraymond/airelay/resilience"
)

func fastReliability(maxRetries int) *resilience.Reliability {
	return resilience.NewReliability(
		resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "test", FailureThreshold: 10}),
		resilience.NewRetry(resilience.RetryConfig{
			MaxRetries:   maxRetries,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			JitterFactor: 0,
		}),
	)
}

func countingCompleter(calls *atomic.Int32, text string) Completer {
	return CompleterFunc(func(ctx context.Context, req cache.Request) (Response, error) {
		calls.Add(1)
		return Response{Text: text, Model: "claude-test"}, nil
	})
}

func newCachedService(t *testing.T, completer Completer) *Service {
	t.Helper()
	store := cache.NewMemoryStore(cache.MemoryStoreConfig{})
	return NewService(completer, fastReliability(0),
		WithCache(cache.New[Response](store)),
	)
}

func cacheableReq() cache.Request {
	return cache.Request{
		Model:       "claude-test",
		Messages:    []cache.Message{{Role: cache.RoleUser, Content: "Summarize the release notes."}},
		Temperature: cache.Temperature(0.2),
	}
}

func TestService_CacheHit(t *testing.T) {
	var calls atomic.Int32
	svc := newCachedService(t, countingCompleter(&calls, "summary"))
	ctx := context.Background()

	first, err := svc.Generate(ctx, cacheableReq())
	if err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	if first.Cached {
		t.Error("first response should not be marked cached")
	}

	second, err := svc.Generate(ctx, cacheableReq())
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if !second.Cached || second.Text != "summary" {
		t.Errorf("second response = %+v, want cached summary", second)
	}
	if calls.Load() != 1 {
		t.Errorf("completer calls = %d, want 1", calls.Load())
	}
}

func TestService_SharedGenerationNotMarkedCached(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	completer := CompleterFunc(func(ctx context.Context, req cache.Request) (Response, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return Response{Text: "shared"}, nil
	})

	store := cache.NewMemoryStore(cache.MemoryStoreConfig{})
	svc := NewService(completer, fastReliability(0),
		WithCache(cache.New[Response](store, cache.WithSingleFlight())),
	)

	var wg sync.WaitGroup
	cached := make([]bool, 2)
	for i := range cached {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Generate(context.Background(), cacheableReq())
			if err != nil {
				t.Errorf("Generate() error = %v", err)
				return
			}
			cached[i] = resp.Cached
		}()
		if i == 0 {
			<-started
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("completer calls = %d, want 1", calls.Load())
	}
	if cached[0] || cached[1] {
		t.Errorf("Cached = %v; neither response came from the store", cached)
	}
}

func TestService_BypassesCache(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cache.Request)
	}{
		{"high temperature", func(r *cache.Request) { r.Temperature = cache.Temperature(0.9) }},
		{"unset temperature", func(r *cache.Request) { r.Temperature = nil }},
		{"streaming", func(r *cache.Request) { r.Stream = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			svc := newCachedService(t, countingCompleter(&calls, "fresh"))

			req := cacheableReq()
			tt.mutate(&req)
			for i := 0; i < 2; i++ {
				resp, err := svc.Generate(context.Background(), req)
				if err != nil {
					t.Fatalf("Generate() error = %v", err)
				}
				if resp.Cached {
					t.Error("ineligible request served from cache")
				}
			}
			if calls.Load() != 2 {
				t.Errorf("completer calls = %d, want 2", calls.Load())
			}
		})
	}
}

func TestService_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	completer := CompleterFunc(func(ctx context.Context, req cache.Request) (Response, error) {
		if calls.Add(1) < 3 {
			return Response{}, apierr.NewServiceUnavailable("overloaded", apierr.Options{StatusCode: apierr.StatusOverloaded})
		}
		return Response{Text: "ok"}, nil
	})

	svc := NewService(completer, fastReliability(3))
	resp, err := svc.Generate(context.Background(), cacheableReq())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "ok" || calls.Load() != 3 {
		t.Errorf("text = %q after %d calls", resp.Text, calls.Load())
	}
}

func TestService_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	completer := CompleterFunc(func(ctx context.Context, req cache.Request) (Response, error) {
		calls.Add(1)
		return Response{}, apierr.NewNetwork("connection reset", apierr.Options{})
	})

	svc := NewService(completer, fastReliability(2))
	_, err := svc.Generate(context.Background(), cacheableReq())
	if apierr.KindOf(err) != apierr.KindMaxRetriesExceeded {
		t.Fatalf("error = %v, want max retries exceeded", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestService_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	completer := CompleterFunc(func(ctx context.Context, req cache.Request) (Response, error) {
		if calls.Add(1) == 1 {
			return Response{}, apierr.NewValidation("prompt rejected", apierr.Options{})
		}
		return Response{Text: "second time"}, nil
	})

	svc := newCachedService(t, completer)
	if _, err := svc.Generate(context.Background(), cacheableReq()); err == nil {
		t.Fatal("expected first call to fail")
	}

	resp, err := svc.Generate(context.Background(), cacheableReq())
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if resp.Cached || resp.Text != "second time" {
		t.Errorf("response = %+v", resp)
	}
}

func TestService_Validation(t *testing.T) {
	svc := NewService(CompleterFunc(func(ctx context.Context, req cache.Request) (Response, error) {
		t.Error("completer should not be called")
		return Response{}, nil
	}), nil)

	ctx := observe.ContextWithCorrelationID(context.Background(), "req-42")
	_, err := svc.Generate(ctx, cache.Request{})

	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindValidation {
		t.Fatalf("error = %v, want validation", err)
	}
	if e.CorrelationID != "req-42" {
		t.Errorf("CorrelationID = %q, want req-42", e.CorrelationID)
	}
}

func TestService_CorrelationIDReachesCompleter(t *testing.T) {
	var seen string
	svc := NewService(CompleterFunc(func(ctx context.Context, req cache.Request) (Response, error) {
		seen = observe.CorrelationIDFromContext(ctx)
		return Response{Text: "x"}, nil
	}), fastReliability(0))

	if _, err := svc.Generate(context.Background(), cacheableReq()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if seen == "" {
		t.Error("completer saw no correlation id")
	}
}
