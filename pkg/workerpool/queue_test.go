package workerpool

import (
	"context"
	"testing"
	"time"
)

func TestBoundedQueuePutNowaitFullReturnsError(t *testing.T) {
	q := NewBoundedQueue[int](1)
	if err := q.PutNowait(1); err != nil {
		t.Fatalf("put 1: %v", err)
	}
	if err := q.PutNowait(2); err == nil {
		t.Fatal("expected error when queue is full")
	}
}

func TestBoundedQueuePutWithRetrySucceedsOnceRoomFrees(t *testing.T) {
	q := NewBoundedQueue[int](1)
	if err := q.PutNowait(1); err != nil {
		t.Fatalf("put 1: %v", err)
	}

	go func() {
		time.Sleep(15 * time.Millisecond)
		<-q.ch
	}()

	ctx := context.Background()
	if err := q.PutWithRetry(ctx, 2); err != nil {
		t.Fatalf("put with retry: %v", err)
	}
}

func TestBoundedQueuePutWithRetryExhausted(t *testing.T) {
	q := NewBoundedQueue[int](1)
	if err := q.PutNowait(1); err != nil {
		t.Fatalf("put 1: %v", err)
	}

	ctx := context.Background()
	if err := q.PutWithRetry(ctx, 2); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestBoundedQueuePutBulkFailsUnlessAllAccepted(t *testing.T) {
	q := NewBoundedQueue[int](2)
	if err := q.PutBulk([]int{1, 2, 3}); err == nil {
		t.Fatal("expected bulk put to fail when items exceed capacity")
	}
	if got := q.Len(); got != 2 {
		t.Fatalf("len = %d, want 2 (first two items accepted before failure)", got)
	}
}

func TestBoundedQueueGetWithTimeout(t *testing.T) {
	q := NewBoundedQueue[int](1)
	ctx := context.Background()

	if _, ok := q.GetWithTimeout(ctx, 20*time.Millisecond); ok {
		t.Fatal("expected timeout on empty queue")
	}

	if err := q.PutNowait(42); err != nil {
		t.Fatalf("put: %v", err)
	}
	item, ok := q.GetWithTimeout(ctx, 20*time.Millisecond)
	if !ok || item != 42 {
		t.Fatalf("got (%d, %v), want (42, true)", item, ok)
	}
}

func TestBoundedQueueGetBatch(t *testing.T) {
	q := NewBoundedQueue[int](5)
	for i := 0; i < 3; i++ {
		if err := q.PutNowait(i); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	ctx := context.Background()
	batch := q.GetBatch(ctx, 10, 20*time.Millisecond)
	if len(batch) != 3 {
		t.Fatalf("batch len = %d, want 3", len(batch))
	}
}
