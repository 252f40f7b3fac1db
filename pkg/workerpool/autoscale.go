package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/observability/prometheus"
)

// AutoscalerConfig governs the scale up/down thresholds of §4.5.3.
//
// The spec's scale-down condition also references host CPU utilization
// (<30%). No library in the dependency set samples host CPU usage, and
// adding one reaches outside the teacher's and the pack's actual stack, so
// this implementation approximates load with the average per-worker thread
// count alone and omits the CPU-percentage leg of the condition.
type AutoscalerConfig struct {
	SampleInterval  time.Duration
	ScaleUpAvg      float64
	ScaleDownAvg    float64
}

// DefaultAutoscalerConfig matches §4.5.3's thresholds.
func DefaultAutoscalerConfig() AutoscalerConfig {
	return AutoscalerConfig{
		SampleInterval: time.Second,
		ScaleUpAvg:     1.5,
		ScaleDownAvg:   1.0,
	}
}

// Autoscaler samples Pool thread counts on an interval and grows or shrinks
// the worker set within the pool's configured bounds.
type Autoscaler struct {
	pool   *Pool
	cfg    AutoscalerConfig
	logger core.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewAutoscaler wires an Autoscaler to pool.
func NewAutoscaler(pool *Pool, cfg AutoscalerConfig, logger core.Logger) *Autoscaler {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	if cfg.SampleInterval <= 0 {
		cfg = DefaultAutoscalerConfig()
	}
	return &Autoscaler{pool: pool, cfg: cfg, logger: logger}
}

// Start begins the sampling loop in a background goroutine.
func (a *Autoscaler) Start(ctx context.Context) {
	a.mu.Lock()
	if a.stop != nil {
		a.mu.Unlock()
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	stop := a.stop
	done := a.done
	a.mu.Unlock()

	go a.run(ctx, stop, done)
}

// Stop ends the sampling loop and waits for it to exit.
func (a *Autoscaler) Stop() {
	a.mu.Lock()
	stop := a.stop
	done := a.done
	a.stop = nil
	a.done = nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (a *Autoscaler) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			a.sample()
		}
	}
}

func (a *Autoscaler) sample() {
	counts := a.pool.ThreadCounts()
	if len(counts) == 0 {
		return
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	avg := float64(total) / float64(len(counts))

	switch {
	case avg > a.cfg.ScaleUpAvg:
		if err := a.pool.Spawn(); err != nil {
			a.logger.Debugf("autoscaler: scale up skipped: %v", err)
		} else {
			a.logger.Infof("autoscaler: scaled up, avg thread count %.2f", avg)
			prometheus.AutoscaleEvents.WithLabelValues("up").Inc()
		}
	case avg < a.cfg.ScaleDownAvg:
		if err := a.pool.Retire(); err != nil {
			a.logger.Debugf("autoscaler: scale down skipped: %v", err)
		} else {
			a.logger.Infof("autoscaler: scaled down, avg thread count %.2f", avg)
			prometheus.AutoscaleEvents.WithLabelValues("down").Inc()
		}
	}
}
