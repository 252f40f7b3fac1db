package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxorio/orchestrator/pkg/worker"
)

func TestWorkerPool_Submit(t *testing.T) {
	p := worker.NewWorkerPool(4, 10)
	p.Start()
	defer p.Stop(context.Background())

	var counter int32
	var wg sync.WaitGroup
	numJobs := 8
	wg.Add(numJobs)

	for i := 0; i < numJobs; i++ {
		p.Submit(func() {
			defer wg.Done()
			atomic.AddInt32(&counter, 1)
			time.Sleep(10 * time.Millisecond)
		})
	}

	wg.Wait()

	if atomic.LoadInt32(&counter) != int32(numJobs) {
		t.Errorf("Expected counter to be %d, but got %d", numJobs, atomic.LoadInt32(&counter))
	}
}

func TestWorkerPool_QueueFull(t *testing.T) {
	p := worker.NewWorkerPool(1, 1)
	p.Start()
	defer p.Stop(context.Background())

	// Block the worker.
	var wg sync.WaitGroup
	wg.Add(1)
	started := make(chan struct{})
	p.Submit(func() {
		close(started)
		wg.Wait()
	})
	<-started

	// Fill the one queue slot; a further Submit must block until the worker frees up.
	p.Submit(func() {})
	submitted := make(chan struct{})
	go func() {
		p.Submit(func() {})
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Error("expected Submit to block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	// Release the worker so the blocked Submit and the deferred Stop can finish.
	wg.Done()
	<-submitted
}

func TestWorkerPool_Stop(t *testing.T) {
	p := worker.NewWorkerPool(4, 10)
	p.Start()

	var counter int32
	for i := 0; i < 8; i++ {
		p.Submit(func() {
			atomic.AddInt32(&counter, 1)
			time.Sleep(10 * time.Millisecond)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(ctx)

	if atomic.LoadInt32(&counter) != 8 {
		t.Errorf("Expected counter to be 8, but got %d", atomic.LoadInt32(&counter))
	}

	// Submitting to a stopped pool should return an error.
	if err := p.Submit(func() {}); err != worker.ErrWorkerPoolClosed {
		t.Errorf("Expected ErrWorkerPoolClosed, but got %v", err)
	}
}
