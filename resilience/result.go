package resilience

import (
	"context"
	"sync"
)

// attemptResult carries the value of the most recent successful attempt out
// of Execute. An attempt abandoned by Timeout keeps running in its own
// goroutine; its value is dropped once a later attempt has started or the
// caller has taken the result.
type attemptResult[T any] struct {
	mu     sync.Mutex
	latest uint64
	value  T
	taken  bool
}

// wrap adapts op to the error-only signature used by Execute.
func (r *attemptResult[T]) wrap(op func(context.Context) (T, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		id := r.begin()
		v, err := op(ctx)
		if err != nil {
			return err
		}
		r.publish(id, v)
		return nil
	}
}

func (r *attemptResult[T]) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest++
	return r.latest
}

func (r *attemptResult[T]) publish(id uint64, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken || id != r.latest {
		return
	}
	r.value = v
}

// take closes the result. A non-nil err yields the zero value.
func (r *attemptResult[T]) take(err error) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taken = true
	if err != nil {
		var zero T
		return zero, err
	}
	return r.value, nil
}
