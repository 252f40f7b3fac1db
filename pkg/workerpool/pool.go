// Package workerpool hosts the distributed worker layer described in
// §4.5: an embedded NATS server carries command/health/output traffic
// between the pool and a set of simulated worker processes, each running
// task-execution goroutines in place of real OS threads.
package workerpool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/fluxorio/orchestrator/pkg/apperr"
	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/observability/prometheus"
	"github.com/fluxorio/orchestrator/pkg/scheduler"
	"github.com/fluxorio/orchestrator/pkg/scriptrunner"
)

// Config controls pool sizing (§4.5.2/§4.5.3).
type Config struct {
	MinWorkers      int
	MaxWorkers      int
	WorkerThreadCap int64
	OutputQueueSize int
}

// DefaultConfig matches the bounds described in §4.5.3.
func DefaultConfig() Config {
	return Config{
		MinWorkers:      2,
		MaxWorkers:      8,
		WorkerThreadCap: 10,
		OutputQueueSize: 10000,
	}
}

// Pool implements scheduler.WorkerPool on top of an embedded NATS server.
// Command dispatch uses the smallest-thread-count placement policy of
// §4.5.2; outputs are collected off a shared subject into a BoundedQueue
// that PopOutputBulk drains.
type Pool struct {
	cfg    Config
	logger core.Logger
	runner scriptrunner.ScriptRunner

	server *natsserver.Server
	conn   *nats.Conn
	outSub *nats.Subscription

	mu      sync.Mutex
	workers []*workerProcess
	nextID  int

	outputs *BoundedQueue[scheduler.OutputMessage]
}

var _ scheduler.WorkerPool = (*Pool)(nil)

// New starts an embedded NATS server, connects an in-process client to it,
// and spins up cfg.MinWorkers worker processes.
func New(cfg Config, runner scriptrunner.ScriptRunner, logger core.Logger) (*Pool, error) {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	if runner == nil {
		runner = scriptrunner.NewProcessRunner()
	}
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = DefaultConfig().MinWorkers
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.WorkerThreadCap <= 0 {
		cfg.WorkerThreadCap = DefaultConfig().WorkerThreadCap
	}
	if cfg.OutputQueueSize <= 0 {
		cfg.OutputQueueSize = DefaultConfig().OutputQueueSize
	}

	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           natsserver.RANDOM_PORT,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, apperr.Engine(err, "start embedded nats server")
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, apperr.New(apperr.EngineError, "embedded nats server did not become ready")
	}

	conn, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, apperr.Engine(err, "connect to embedded nats server")
	}

	p := &Pool{
		cfg:     cfg,
		logger:  logger,
		runner:  runner,
		server:  srv,
		conn:    conn,
		outputs: NewBoundedQueue[scheduler.OutputMessage](cfg.OutputQueueSize),
	}

	outSub, err := conn.Subscribe(outputSubject, p.handleOutput)
	if err != nil {
		conn.Close()
		srv.Shutdown()
		return nil, apperr.Engine(err, "subscribe to output subject")
	}
	p.outSub = outSub

	for i := 0; i < cfg.MinWorkers; i++ {
		if _, err := p.spawnLocked(); err != nil {
			p.Close()
			return nil, err
		}
	}

	return p, nil
}

func (p *Pool) handleOutput(msg *nats.Msg) {
	var out scheduler.OutputMessage
	if err := json.Unmarshal(msg.Data, &out); err != nil {
		p.logger.Warnf("worker pool: malformed output message: %v", err)
		return
	}
	if err := p.outputs.PutNowait(out); err != nil {
		p.logger.Errorf("worker pool: output queue full, dropping result for task %s", out.TaskID)
	}
}

// spawnLocked creates one more worker process. Callers must hold p.mu, or
// call it before any worker can be concurrently accessed (construction).
func (p *Pool) spawnLocked() (*workerProcess, error) {
	id := fmt.Sprintf("w%d", p.nextID)
	p.nextID++
	w, err := newWorkerProcess(id, p.conn, p.runner, p.logger, p.cfg.WorkerThreadCap)
	if err != nil {
		return nil, apperr.Engine(err, "spawn worker %s", id)
	}
	p.workers = append(p.workers, w)
	prometheus.WorkerCount.Set(float64(len(p.workers)))
	return w, nil
}

// Spawn adds a worker process to the pool, honoring MaxWorkers (§4.5.3).
func (p *Pool) Spawn() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.workers) >= p.cfg.MaxWorkers {
		return apperr.New(apperr.EngineError, "worker pool already at max workers")
	}
	_, err := p.spawnLocked()
	return err
}

// Retire removes the least busy worker process, honoring MinWorkers.
func (p *Pool) Retire() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.workers) <= p.cfg.MinWorkers {
		return apperr.New(apperr.EngineError, "worker pool already at min workers")
	}
	idx := p.idleWorkerIndexLocked()
	w := p.workers[idx]
	w.shutdown()
	prometheus.WorkerThreadCount.DeleteLabelValues(w.id)
	p.workers = append(p.workers[:idx], p.workers[idx+1:]...)
	prometheus.WorkerCount.Set(float64(len(p.workers)))
	return nil
}

func (p *Pool) idleWorkerIndexLocked() int {
	loads := p.sampleHealthLocked(healthRequestTimeout)
	best := -1
	var bestCount int64
	for i, l := range loads {
		if !l.Responsive {
			continue
		}
		if best == -1 || l.ThreadCount < bestCount {
			best = i
			bestCount = l.ThreadCount
		}
	}
	if best == -1 {
		// Nobody answered in time; retire the first worker rather than
		// block Retire entirely on a health check that may never arrive.
		return 0
	}
	return best
}

// WorkerCount reports the number of live worker processes.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// healthRequestTimeout is the per-worker health-check poll timeout of
// §4.5.2 (specified as 50-200ms); 100ms splits the difference.
const healthRequestTimeout = 100 * time.Millisecond

// WorkerLoad is one worker's reported thread count as of its last health
// reply, or the lack of one (§4.5.2).
type WorkerLoad struct {
	ID          string
	ThreadCount int64
	Responsive  bool
}

// sampleHealthLocked queries every worker's live thread count over its
// NATS health subject with a bounded poll timeout (§4.5.2). A worker that
// doesn't reply within timeout contributes no sample: Responsive is false
// and it is excluded from placement and scaling decisions until it
// replies again. Callers must hold p.mu.
func (p *Pool) sampleHealthLocked(timeout time.Duration) []WorkerLoad {
	loads := make([]WorkerLoad, len(p.workers))
	for i, w := range p.workers {
		loads[i] = WorkerLoad{ID: w.id}
		msg, err := p.conn.Request(workerHealthSubject(w.id), nil, timeout)
		if err != nil {
			p.logger.Warnf("worker pool: worker %s did not answer health check: %v", w.id, err)
			continue
		}
		var reply struct {
			ThreadCount int64 `json:"thread_count"`
		}
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			p.logger.Warnf("worker pool: malformed health reply from %s: %v", w.id, err)
			continue
		}
		loads[i].ThreadCount = reply.ThreadCount
		loads[i].Responsive = true
		prometheus.WorkerThreadCount.WithLabelValues(w.id).Set(float64(reply.ThreadCount))
	}
	return loads
}

// ThreadCounts returns the thread count of every worker that answered its
// health check, used by the autoscaler (§4.5.3) to compute average load
// and by GET /workers/status. Unresponsive workers are omitted.
func (p *Pool) ThreadCounts() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	loads := p.sampleHealthLocked(healthRequestTimeout)
	counts := make([]int64, 0, len(loads))
	for _, l := range loads {
		if !l.Responsive {
			continue
		}
		counts = append(counts, l.ThreadCount)
	}
	return counts
}

// SubmitBulk dispatches each payload to the worker with the fewest
// in-flight threads, with round-robin fallback once every responsive
// worker is at or above WorkerThreadCap (§4.5.2). Workers that don't
// answer the health check sampled at the start of the batch take no
// payloads in this call.
func (p *Pool) SubmitBulk(ctx context.Context, payloads []scheduler.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) == 0 {
		return apperr.New(apperr.EngineError, "no workers available")
	}

	loads := p.sampleHealthLocked(healthRequestTimeout)
	rr := 0
	for _, payload := range payloads {
		target, err := p.placeLocked(loads, &rr)
		if err != nil {
			return err
		}
		cmd := commandMessage{Kind: "submit", Payload: payload}
		data, err := json.Marshal(cmd)
		if err != nil {
			return apperr.Engine(err, "marshal command for task %s", payload.TaskID)
		}
		if err := p.conn.Publish(workerCmdSubject(target), data); err != nil {
			return apperr.Engine(err, "publish command for task %s", payload.TaskID)
		}
		for i := range loads {
			if loads[i].ID == target {
				loads[i].ThreadCount++
				break
			}
		}
	}
	return nil
}

// placeLocked picks the responsive worker with the smallest thread count
// from loads; if every responsive worker is saturated (>= WorkerThreadCap)
// it falls back to round robin over rr, the caller-owned cursor, still
// restricted to responsive workers. Returns an error only if nobody in
// loads answered their health check.
func (p *Pool) placeLocked(loads []WorkerLoad, rr *int) (string, error) {
	responsive := make([]WorkerLoad, 0, len(loads))
	for _, l := range loads {
		if l.Responsive {
			responsive = append(responsive, l)
		}
	}
	if len(responsive) == 0 {
		return "", apperr.New(apperr.EngineError, "no workers answered their health check")
	}

	best := responsive[0]
	saturated := best.ThreadCount >= p.cfg.WorkerThreadCap
	for _, l := range responsive[1:] {
		if l.ThreadCount < best.ThreadCount {
			best = l
		}
		if l.ThreadCount < p.cfg.WorkerThreadCap {
			saturated = false
		}
	}
	if saturated {
		w := responsive[*rr%len(responsive)]
		*rr++
		return w.ID, nil
	}
	return best.ID, nil
}

// PopOutputBulk drains up to max buffered output messages, waiting at most
// timeout for the first one to arrive.
func (p *Pool) PopOutputBulk(ctx context.Context, max int, timeout time.Duration) []scheduler.OutputMessage {
	return p.outputs.GetBatch(ctx, max, timeout)
}

// Close shuts down every worker, the client connection, and the embedded
// server, in that order.
func (p *Pool) Close() {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.mu.Unlock()

	for _, w := range workers {
		w.shutdown()
	}
	if p.outSub != nil {
		p.outSub.Unsubscribe()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	if p.server != nil {
		p.server.Shutdown()
		p.server.WaitForShutdown()
	}
}
