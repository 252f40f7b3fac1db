package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// SupervisorConfig tunes the health-check loop (§4.7).
type SupervisorConfig struct {
	HealthCheckInterval    time.Duration
	MaxConsecutiveFailures int
}

// DefaultSupervisorConfig matches §4.7's stated defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{HealthCheckInterval: 10 * time.Second, MaxConsecutiveFailures: 3}
}

// component names a restartable subsystem the supervisor watches.
type component string

const (
	componentInput  component = "input_monitor"
	componentOutput component = "output_monitor"
)

// Supervisor owns the input monitor, output monitor and worker pool, and
// restarts a failing component up to MaxConsecutiveFailures times before
// stopping the whole scheduler (§4.7).
type Supervisor struct {
	store *store.Store
	input *InputMonitor
	output *OutputMonitor
	pool   WorkerPool
	cfg    SupervisorConfig
	logger core.Logger

	mu        sync.Mutex
	running   bool
	stopped   chan struct{}
	failures  map[component]int
	lastError error
}

// NewSupervisor wires the three subsystems together. logger may be nil.
func NewSupervisor(s *store.Store, input *InputMonitor, output *OutputMonitor, pool WorkerPool, cfg SupervisorConfig, logger core.Logger) *Supervisor {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 10 * time.Second
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 3
	}
	return &Supervisor{
		store:    s,
		input:    input,
		output:   output,
		pool:     pool,
		cfg:      cfg,
		logger:   logger.WithFields(map[string]interface{}{"component": "scheduler_supervisor"}),
		failures: make(map[component]int),
	}
}

// Start verifies store connectivity, then brings up the input monitor,
// the output monitor, and finally the health-check loop, in that order
// (§4.7).
func (sup *Supervisor) Start(ctx context.Context) error {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	if sup.running {
		return apperr.New(apperr.SchedulerError, "scheduler supervisor already running")
	}

	if err := sup.store.DB.PingContext(ctx); err != nil {
		return apperr.Scheduler(err, "store connectivity check failed")
	}

	sup.input.Start(ctx)
	sup.output.Start(ctx)

	sup.running = true
	sup.stopped = make(chan struct{})
	go sup.healthCheckLoop(ctx)
	return nil
}

// Stop halts components in the reverse order they were started (§4.7).
func (sup *Supervisor) Stop() {
	sup.mu.Lock()
	if !sup.running {
		sup.mu.Unlock()
		return
	}
	sup.running = false
	stopped := sup.stopped
	sup.mu.Unlock()

	close(stopped)
	sup.output.Stop()
	sup.input.Stop()
}

// Status reports whether the supervisor is running and the last failure
// observed by the health-check loop, if any.
type Status struct {
	Running   bool
	LastError error
}

func (sup *Supervisor) Status() Status {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return Status{Running: sup.running, LastError: sup.lastError}
}

func (sup *Supervisor) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(sup.cfg.HealthCheckInterval)
	defer ticker.Stop()

	sup.mu.Lock()
	stopped := sup.stopped
	sup.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopped:
			return
		case <-ticker.C:
			sup.healthCheck(ctx)
		}
	}
}

// healthCheck pings the store as the liveness probe for both monitors
// (they share the same failure mode — a dead connection pool — since
// neither runs its own separate health surface). A failing component is
// restarted up to MaxConsecutiveFailures times before the whole scheduler
// is stopped and the failure recorded in Status().
func (sup *Supervisor) healthCheck(ctx context.Context) {
	if err := sup.store.DB.PingContext(ctx); err == nil {
		sup.mu.Lock()
		sup.failures[componentInput] = 0
		sup.failures[componentOutput] = 0
		sup.mu.Unlock()
		return
	} else {
		sup.mu.Lock()
		sup.lastError = err
		sup.failures[componentInput]++
		sup.failures[componentOutput]++
		exceeded := sup.failures[componentInput] > sup.cfg.MaxConsecutiveFailures
		sup.mu.Unlock()

		if exceeded {
			sup.logger.Errorf("health check failed %d consecutive times, stopping scheduler: %v", sup.cfg.MaxConsecutiveFailures+1, err)
			sup.Stop()
			return
		}

		sup.logger.Warnf("health check failed, restarting monitors: %v", err)
		sup.output.Stop()
		sup.input.Stop()
		sup.input.Start(ctx)
		sup.output.Start(ctx)
	}
}
