package completion

import (
	"context"

	"github.com/jonwraymond/airelay/apierr"
	"github.com/jonwraymond/airelay/cache"
	"github.com/jonwraymond/airelay/observe"
	"github.com/jonwraymond/airelay/resilience"
)

// Service generates completions through the response cache and the
// reliability facade.
//
// A cache hit returns without touching the provider. A miss runs the
// completer under the facade (breaker, then retries) and stores a
// successful result.
type Service struct {
	completer   Completer
	reliability *resilience.Reliability
	cache       *cache.ResponseCache[Response]
	policy      cache.Policy
	logger      observe.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables response caching.
func WithCache(c *cache.ResponseCache[Response]) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithPolicy replaces the default eligibility and TTL policy.
func WithPolicy(p cache.Policy) ServiceOption {
	return func(s *Service) { s.policy = p }
}

// WithLogger sets the service logger.
func WithLogger(l observe.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. A nil reliability uses the facade
// defaults.
func NewService(completer Completer, reliability *resilience.Reliability, opts ...ServiceOption) *Service {
	if reliability == nil {
		reliability = resilience.NewReliability(nil, nil)
	}
	s := &Service{
		completer:   completer,
		reliability: reliability,
		policy:      cache.DefaultPolicy(),
		logger:      observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces a completion for req. The context gains a correlation
// id when it has none, so every log record and error for the call shares
// one.
func (s *Service) Generate(ctx context.Context, req cache.Request) (Response, error) {
	ctx, cid := observe.EnsureCorrelationID(ctx)
	logger := s.logger.WithCorrelationID(cid)

	if len(req.Messages) == 0 {
		return Response{}, apierr.NewValidation("at least one message is required", apierr.Options{CorrelationID: cid})
	}

	call := func(ctx context.Context) (Response, error) {
		return resilience.WithReliability(ctx, s.reliability, func(ctx context.Context) (Response, error) {
			return s.completer.Complete(ctx, req)
		})
	}

	if s.cache == nil || !s.policy.ShouldCache(req) {
		return call(ctx)
	}

	key, err := cache.GenerateKey(req)
	if err != nil {
		logger.Warn(ctx, "cache key derivation failed, bypassing cache", observe.Err(err))
		return call(ctx)
	}

	resp, stored, err := s.cache.Fetch(ctx, key, s.policy.TTL(req), call)
	if err != nil {
		return Response{}, err
	}
	resp.Cached = stored
	logger.Debug(ctx, "completion served",
		observe.F("cached", resp.Cached),
		observe.F("output_tokens", resp.OutputTokens),
	)
	return resp, nil
}
