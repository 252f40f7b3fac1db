package workerpool

import (
	"context"
	"time"

	"github.com/fluxorio/orchestrator/pkg/apperr"
)

// BoundedQueue is a fixed-capacity multi-producer queue (§4.5.4).
type BoundedQueue[T any] struct {
	ch chan T
}

// NewBoundedQueue creates a queue with room for capacity items.
func NewBoundedQueue[T any](capacity int) *BoundedQueue[T] {
	if capacity <= 0 {
		capacity = 1000
	}
	return &BoundedQueue[T]{ch: make(chan T, capacity)}
}

// PutNowait fails fast if the queue is full.
func (q *BoundedQueue[T]) PutNowait(item T) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return apperr.New(apperr.EngineError, "queue is full")
	}
}

// PutWithRetry attempts up to 3 inserts with exponential backoff
// (10ms, 20ms, 40ms), per §4.5.4. A false/error result must be surfaced by
// the caller, never silently dropped.
func (q *BoundedQueue[T]) PutWithRetry(ctx context.Context, item T) error {
	backoff := 10 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := q.PutNowait(item); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return apperr.Engine(lastErr, "queue put failed after 3 retries")
}

// PutBulk succeeds only if every item is accepted; on partial failure the
// caller is responsible for retrying the whole batch (§4.5.4).
func (q *BoundedQueue[T]) PutBulk(items []T) error {
	accepted := 0
	for _, item := range items {
		if err := q.PutNowait(item); err != nil {
			return apperr.Engine(err, "bulk put accepted %d/%d items", accepted, len(items))
		}
		accepted++
	}
	return nil
}

// GetWithTimeout blocks up to d for one item, returning ok=false on timeout.
func (q *BoundedQueue[T]) GetWithTimeout(ctx context.Context, d time.Duration) (item T, ok bool) {
	if d <= 0 {
		select {
		case item = <-q.ch:
			return item, true
		default:
			return item, false
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case item = <-q.ch:
		return item, true
	case <-timer.C:
		return item, false
	case <-ctx.Done():
		return item, false
	}
}

// GetBatch drains up to max items without blocking past the first item's
// wait (used by PopOutputBulk to batch-drain the output queue).
func (q *BoundedQueue[T]) GetBatch(ctx context.Context, max int, timeout time.Duration) []T {
	first, ok := q.GetWithTimeout(ctx, timeout)
	if !ok {
		return nil
	}
	out := make([]T, 0, max)
	out = append(out, first)
	for len(out) < max {
		item, ok := q.GetWithTimeout(ctx, 0)
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out
}

// Len reports the number of items currently buffered.
func (q *BoundedQueue[T]) Len() int { return len(q.ch) }
