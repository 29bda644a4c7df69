package runtime

import (
	"chat-fanout/errors"
	"context"
	"fmt"
	"time"
)

type result[T any] struct {
	value T
	err   error
}

// withTimeout runs one durable store call under its own deadline.
// The deadline holds even for a store that never looks at ctx: the caller
// stops waiting and any lock it holds is released. A write that commits after
// the deadline stays in the store and shows up in history.
// Store failures are reported as persistence errors, deadline expiry as a
// transient one, and validation outcomes reported by the store pass through.
func withTimeout[T any](ctx context.Context, timeout time.Duration, call func(ctx context.Context) (T, error)) (T, error) {
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		value, err := call(callCtx)
		done <- result[T]{value: value, err: err}
	}()

	var zero T
	var err error
	select {
	case res := <-done:
		if res.err == nil {
			return res.value, nil
		}
		err = res.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}

	switch {
	case errors.Is(err, errors.ErrValidation), errors.Is(err, errors.ErrPersistence):
		return zero, err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return zero, fmt.Errorf("%w: %v", errors.ErrPersistenceTimeout, err)
	default:
		return zero, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
}
