package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/observability/prometheus"
	"github.com/fluxorio/orchestrator/pkg/placeholder"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// InputMonitorConfig tunes the poll loop (§4.4).
type InputMonitorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
}

// DefaultInputMonitorConfig matches §4.4's stated defaults.
func DefaultInputMonitorConfig() InputMonitorConfig {
	return InputMonitorConfig{PollInterval: 100 * time.Millisecond, BatchSize: 50, Workers: 4}
}

// InputMonitor pops ready tasks, resolves their placeholder context and
// submits the resulting payloads to a worker pool (§4.4).
type InputMonitor struct {
	store    *store.Store
	resolver *placeholder.Resolver
	pool     WorkerPool
	cfg      InputMonitorConfig
	logger   core.Logger

	stop chan struct{}
	done chan struct{}
}

// NewInputMonitor builds an InputMonitor. logger may be nil.
func NewInputMonitor(s *store.Store, pool WorkerPool, cfg InputMonitorConfig, logger core.Logger) *InputMonitor {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &InputMonitor{
		store:    s,
		resolver: placeholder.New(s),
		pool:     pool,
		cfg:      cfg,
		logger:   logger.WithFields(map[string]interface{}{"component": "input_monitor"}),
	}
}

// Start runs the poll loop in a new goroutine. Stop cancels it.
func (m *InputMonitor) Start(ctx context.Context) {
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(ctx)
}

// Stop signals the loop to exit and blocks until it has.
func (m *InputMonitor) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
}

func (m *InputMonitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.cycle(ctx); err != nil {
				m.logger.Warnf("input monitor cycle: %v", err)
			}
		}
	}
}

// cycle runs one poll iteration (§4.4 steps 1-4). It is unexported; this
// package's tests call it directly for deterministic single-cycle control
// instead of the ticking loop.
func (m *InputMonitor) cycle(ctx context.Context) error {
	started := time.Now()
	defer func() {
		prometheus.InputMonitorPollDuration.Observe(time.Since(started).Seconds())
	}()

	tasks, err := m.store.PopReadyTasks(ctx, m.cfg.BatchSize)
	if err != nil {
		return apperr.Scheduler(err, "pop ready tasks")
	}
	prometheus.QueueDepth.Set(float64(len(tasks)))
	if len(tasks) == 0 {
		return nil
	}

	payloads, skipped := m.buildPayloads(ctx, tasks)
	if len(payloads) == 0 {
		return nil
	}

	if err := m.pool.SubmitBulk(ctx, payloads); err != nil {
		// §4.4 failure handling: a rejected bulk submission must not drop the
		// rows silently. PopReadyTasks already deleted them, so they are
		// reinserted at their original priority/dependency state (always 0,
		// since only ready tasks are popped) to let the next cycle retry.
		// Tasks skipped during payload preparation (node/script vanished)
		// are not re-enqueued — retrying them would fail identically.
		for _, t := range tasks {
			if _, ok := skipped[t.ID]; ok {
				continue
			}
			if _, reErr := m.store.CreateTask(ctx, nil, t.ExecutionID, t.NodeID, 0, t.Priority, t.Payload); reErr != nil {
				m.logger.Errorf("re-enqueue task for node %q after rejected submission: %v", t.NodeID, reErr)
			}
		}
		return apperr.Scheduler(err, "submit bulk payloads")
	}

	prometheus.TasksDispatchedTotal.WithLabelValues("dispatched").Add(float64(len(payloads)))
	return nil
}

// buildPayloads resolves each task's payload concurrently across
// m.cfg.Workers goroutines (§4.4 step 2). A task whose node row vanished is
// skipped; its id is returned in skipped so the caller doesn't try to
// re-enqueue a row that no longer has a backing node.
func (m *InputMonitor) buildPayloads(ctx context.Context, tasks []*store.Task) ([]Payload, map[string]struct{}) {
	type result struct {
		payload Payload
		ok      bool
		taskID  string
	}

	in := make(chan *store.Task)
	out := make(chan result)
	var wg sync.WaitGroup

	workers := m.cfg.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range in {
				p, ok := m.buildOne(ctx, t)
				out <- result{payload: p, ok: ok, taskID: t.ID}
			}
		}()
	}

	go func() {
		for _, t := range tasks {
			in <- t
		}
		close(in)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	payloads := make([]Payload, 0, len(tasks))
	skipped := make(map[string]struct{})
	for r := range out {
		if !r.ok {
			skipped[r.taskID] = struct{}{}
			continue
		}
		payloads = append(payloads, r.payload)
	}
	return payloads, skipped
}

func (m *InputMonitor) buildOne(ctx context.Context, t *store.Task) (Payload, bool) {
	node, err := m.store.GetNode(ctx, t.NodeID)
	if err != nil {
		m.logger.Warnf("task %q: node %q vanished: %v", t.ID, t.NodeID, err)
		return Payload{}, false
	}

	var scriptPath string
	if node.ScriptID != nil {
		sc, err := m.store.GetScript(ctx, *node.ScriptID)
		if err != nil {
			m.logger.Warnf("task %q: script %q vanished: %v", t.ID, *node.ScriptID, err)
			return Payload{}, false
		}
		scriptPath = sc.Path
	}

	resolved, err := m.resolver.Resolve(ctx, node.WorkflowID, t.ExecutionID, t.Payload)
	if err != nil {
		m.logger.Warnf("task %q: resolve params: %v", t.ID, err)
		resolved = t.Payload
	}

	return Payload{
		TaskID:          t.ID,
		ExecutionID:     t.ExecutionID,
		WorkflowID:      node.WorkflowID,
		NodeID:          node.ID,
		ScriptPath:      scriptPath,
		ResolvedContext: resolved,
		NodeName:        node.Name,
		NodeType:        node.NodeType,
	}, true
}
