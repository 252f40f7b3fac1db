package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/observability/prometheus"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// OutputMonitorConfig tunes the adaptive poll loop (§4.6).
type OutputMonitorConfig struct {
	MinPollInterval time.Duration
	MaxPollInterval time.Duration
	BatchSize       int
	MaxRetries      int
}

// DefaultOutputMonitorConfig matches §4.6's stated defaults.
func DefaultOutputMonitorConfig() OutputMonitorConfig {
	return OutputMonitorConfig{
		MinPollInterval: 100 * time.Millisecond,
		MaxPollInterval: 2 * time.Second,
		BatchSize:       25,
		MaxRetries:      3,
	}
}

// OutputMonitor drains worker results, persists them, propagates dependency
// decrements and finalizes executions once fully drained (§4.6).
type OutputMonitor struct {
	store    *store.Store
	notifier *store.Notifier
	pool     WorkerPool
	cfg      OutputMonitorConfig
	logger   core.Logger

	interval time.Duration
	retries  map[string]int
	mu       sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// NewOutputMonitor builds an OutputMonitor. notifier/logger may be nil.
func NewOutputMonitor(s *store.Store, notifier *store.Notifier, pool WorkerPool, cfg OutputMonitorConfig, logger core.Logger) *OutputMonitor {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	if cfg.MinPollInterval <= 0 {
		cfg.MinPollInterval = 100 * time.Millisecond
	}
	if cfg.MaxPollInterval <= 0 {
		cfg.MaxPollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &OutputMonitor{
		store:    s,
		notifier: notifier,
		pool:     pool,
		cfg:      cfg,
		logger:   logger.WithFields(map[string]interface{}{"component": "output_monitor"}),
		interval: cfg.MinPollInterval,
		retries:  make(map[string]int),
	}
}

// Start runs the adaptive poll loop in a new goroutine.
func (m *OutputMonitor) Start(ctx context.Context) {
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(ctx)
}

// Stop signals the loop to exit and blocks until it has.
func (m *OutputMonitor) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
}

func (m *OutputMonitor) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, m.interval)
		woke := false
		if m.notifier != nil {
			woke, _ = m.notifier.Wait(waitCtx, m.interval)
		}
		if !woke {
			<-waitCtx.Done()
		}
		cancel()

		n, err := m.cycle(ctx)
		if err != nil {
			m.logger.Warnf("output monitor cycle: %v", err)
		}
		m.adapt(n > 0)
	}
}

func (m *OutputMonitor) adapt(nonEmpty bool) {
	if nonEmpty {
		m.interval = time.Duration(float64(m.interval) * 0.8)
		if m.interval < m.cfg.MinPollInterval {
			m.interval = m.cfg.MinPollInterval
		}
	} else {
		m.interval = time.Duration(float64(m.interval) * 1.2)
		if m.interval > m.cfg.MaxPollInterval {
			m.interval = m.cfg.MaxPollInterval
		}
	}
	prometheus.OutputMonitorPollInterval.Set(m.interval.Seconds())
}

// cycle drains one batch of results and processes it (§4.6 steps 1-3).
// Returns the number of results successfully processed.
func (m *OutputMonitor) cycle(ctx context.Context) (int, error) {
	results := m.pool.PopOutputBulk(ctx, m.cfg.BatchSize, 0)
	if len(results) == 0 {
		return 0, nil
	}

	grouped := make(map[string][]OutputMessage, len(results))
	for _, r := range results {
		if err := validateOutput(r); err != nil {
			m.logger.Warnf("dropping invalid output for task %q: %v", r.TaskID, err)
			continue
		}
		grouped[r.ExecutionID] = append(grouped[r.ExecutionID], r)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0
	for executionID, group := range grouped {
		wg.Add(1)
		go func(executionID string, group []OutputMessage) {
			defer wg.Done()
			for _, r := range group {
				err := m.processOne(ctx, r)
				for err != nil && m.shouldRetry(r.TaskID) {
					m.logger.Errorf("process output for task %q: %v", r.TaskID, err)
					m.requeue(r)
					err = m.processOne(ctx, r)
				}
				if err != nil {
					m.logger.Errorf("process output for task %q: %v", r.TaskID, err)
					m.logger.Errorf("dropping output for task %q after exhausting retries", r.TaskID)
					continue
				}
				mu.Lock()
				processed++
				mu.Unlock()
				m.clearRetry(r.TaskID)
				prometheus.TasksDispatchedTotal.WithLabelValues(r.Status).Inc()
			}
		}(executionID, group)
	}
	wg.Wait()

	return processed, nil
}

func validateOutput(r OutputMessage) error {
	if r.ExecutionID == "" || r.NodeID == "" {
		return apperr.Validation("output message missing execution_id/node_id")
	}
	if r.Status != string(store.OutputSuccess) && r.Status != string(store.OutputFailed) {
		return apperr.Validation("output message has invalid status %q", r.Status)
	}
	if len(r.ResultData) == 0 && r.ErrorMessage == "" {
		return apperr.Validation("output message carries neither result_data nor error_message")
	}
	return nil
}

// processOne handles one worker result inside a transaction (§4.6 step 3).
// Once the transaction commits it emits OutputChannel so that any other
// orchestrator instance's output monitor, parked in Notifier.Wait against
// the same Postgres database, wakes up early instead of riding out its poll
// interval (§4.6) — this instance already has the result in hand from its
// own cycle, so the notification only matters to siblings.
func (m *OutputMonitor) processOne(ctx context.Context, r OutputMessage) error {
	status := store.OutputStatus(r.Status)
	var errMsg *string
	if r.ErrorMessage != "" {
		msg := r.ErrorMessage
		errMsg = &msg
	}

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := m.store.InsertOutput(ctx, tx, r.ExecutionID, r.NodeID, r.TaskID, status, r.ResultData, errMsg, r.StartedAt, r.EndedAt); err != nil {
			return err
		}

		if status == store.OutputFailed {
			if err := m.store.DeleteTasksByExecution(ctx, tx, r.ExecutionID); err != nil {
				return err
			}
			return m.finalize(ctx, tx, r.ExecutionID)
		}

		dependents, err := m.store.FindDependentTaskIDs(ctx, r.ExecutionID, r.NodeID)
		if err != nil {
			return err
		}
		for _, taskID := range dependents {
			if _, err := m.store.DecrementDependencyCount(ctx, tx, taskID); err != nil {
				return err
			}
		}

		done, err := m.store.IncrementExecutedCount(ctx, tx, r.ExecutionID)
		if err != nil {
			return err
		}
		if done {
			return m.finalize(ctx, tx, r.ExecutionID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if emitErr := m.store.Emit(ctx, store.OutputChannel, r.ExecutionID); emitErr != nil {
		m.logger.Warnf("emit %s for execution %q: %v", store.OutputChannel, r.ExecutionID, emitErr)
	}
	return nil
}

// nodeResultEntry is one entry of the aggregated per-node results map
// (§4.6), shared in shape with pkg/orchestration's cancellation output.
type nodeResultEntry struct {
	Status    store.OutputStatus `json:"status"`
	Result    json.RawMessage    `json:"result"`
	Error     *string            `json:"error"`
	Timestamp *time.Time         `json:"timestamp"`
}

// finalize builds the aggregated results map and marks the execution
// completed (§4.6 step 3d; SPEC_FULL.md Open Question #2 — completed even
// after a failure-driven finalization).
func (m *OutputMonitor) finalize(ctx context.Context, tx *sql.Tx, executionID string) error {
	exec, err := m.store.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	nodes, err := m.store.ListNodesByWorkflow(ctx, exec.WorkflowID)
	if err != nil {
		return err
	}
	outputs, err := m.store.ListOutputsByExecution(ctx, executionID)
	if err != nil {
		return err
	}
	byNode := make(map[string]*store.ExecutionOutput, len(outputs))
	for _, o := range outputs {
		byNode[o.NodeID] = o
	}

	results := make(map[string]nodeResultEntry, len(nodes))
	for _, n := range nodes {
		if o, ok := byNode[n.ID]; ok {
			results[n.ID] = nodeResultEntry{Status: o.Status, Result: o.Result, Error: o.ErrorMessage, Timestamp: o.EndedAt}
		} else {
			results[n.ID] = nodeResultEntry{Status: "skipped"}
		}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return apperr.Scheduler(err, "marshal finalized results for execution %q", executionID)
	}
	return m.store.FinalizeExecution(ctx, tx, executionID, resultsJSON)
}

// shouldRetry reports whether taskID's failed result should be re-queued,
// per §4.6 step 4 (in-memory retry lane, up to MaxRetries attempts).
func (m *OutputMonitor) shouldRetry(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[taskID]++
	return m.retries[taskID] <= m.cfg.MaxRetries
}

func (m *OutputMonitor) clearRetry(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retries, taskID)
}

// requeue logs a retry of a result whose processing failed. The pool's
// output queue no longer holds the result once drained, so cycle keeps it
// in memory and processes it again straight away, until shouldRetry
// reports that MaxRetries is used up.
func (m *OutputMonitor) requeue(r OutputMessage) {
	m.mu.Lock()
	attempt := m.retries[r.TaskID]
	m.mu.Unlock()
	m.logger.Warnf("requeueing output for task %q (attempt %d)", r.TaskID, attempt)
}
