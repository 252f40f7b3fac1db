package workerpool

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/scheduler"
	"github.com/fluxorio/orchestrator/pkg/scriptrunner"
	"github.com/fluxorio/orchestrator/pkg/worker"
)

// workerProcess stands in for one of §4.5.1's OS-level worker processes: a
// single-threaded command loop (here, a NATS subscription callback) that
// hands each task off to a bounded goroutine pool, mirroring "threads
// launched by the controller loop, up to the thread cap" inside a real
// worker process.
type workerProcess struct {
	id     string
	nc     *nats.Conn
	runner scriptrunner.ScriptRunner
	logger core.Logger

	exec        *worker.WorkerPool
	threadCount int64 // current in-flight task count, sampled for placement/autoscale

	cmdSub    *nats.Subscription
	healthSub *nats.Subscription
}

func newWorkerProcess(id string, nc *nats.Conn, runner scriptrunner.ScriptRunner, logger core.Logger, threadCap int64) (*workerProcess, error) {
	if threadCap <= 0 {
		threadCap = 1
	}
	exec := worker.NewWorkerPool(int(threadCap), int(threadCap)*4)
	exec.Start()

	w := &workerProcess{id: id, nc: nc, runner: runner, logger: logger, exec: exec}

	if err := reniceLowestNice(); err != nil {
		logger.Warnf("worker %s: renice after spawn failed, continuing at default priority: %v", id, err)
	}

	cmdSub, err := nc.Subscribe(workerCmdSubject(id), w.handleCommand)
	if err != nil {
		return nil, err
	}
	w.cmdSub = cmdSub

	healthSub, err := nc.Subscribe(workerHealthSubject(id), w.handleHealthQuery)
	if err != nil {
		cmdSub.Unsubscribe()
		return nil, err
	}
	w.healthSub = healthSub

	return w, nil
}

// commandMessage is published to a worker's command subject (§4.5.1).
type commandMessage struct {
	Kind    string             `json:"kind"` // submit|shutdown
	Payload scheduler.Payload  `json:"payload,omitempty"`
}

func (w *workerProcess) handleCommand(msg *nats.Msg) {
	var cmd commandMessage
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		w.logger.Warnf("worker %s: malformed command: %v", w.id, err)
		return
	}
	switch cmd.Kind {
	case "submit":
		w.execute(cmd.Payload)
	case "shutdown":
		w.shutdown()
	}
}

// handleHealthQuery replies with the worker's current thread count, used by
// the pool's sampling loop (§4.5.3) and by dispatch placement (§4.5.2).
func (w *workerProcess) handleHealthQuery(msg *nats.Msg) {
	count := atomic.LoadInt64(&w.threadCount)
	reply, _ := json.Marshal(map[string]int64{"thread_count": count})
	if msg.Reply != "" {
		w.nc.Publish(msg.Reply, reply)
	}
}

// execute hands the task to the worker's bounded goroutine pool, standing
// in for an OS thread inside the worker process (§4.5.1 steps 1-4). Once
// threadCap tasks are running and threadCap*4 more wait in the pool's job
// queue, Submit blocks the NATS callback until a slot frees,
// backpressuring the worker's command subject instead of spawning
// unboundedly.
func (w *workerProcess) execute(p scheduler.Payload) {
	atomic.AddInt64(&w.threadCount, 1)
	err := w.exec.Submit(func() {
		defer atomic.AddInt64(&w.threadCount, -1)

		started := time.Now().UTC()
		out := scheduler.OutputMessage{
			TaskID:      p.TaskID,
			ExecutionID: p.ExecutionID,
			NodeID:      p.NodeID,
			StartedAt:   &started,
		}

		if p.ScriptPath == "" {
			out.Status = "success"
			out.ResultData = json.RawMessage(`{}`)
		} else {
			outcome := w.runner.Run(context.Background(), p.ScriptPath, p.ResolvedContext)
			if outcome.Success {
				out.Status = "success"
				out.ResultData = outcome.ResultData
			} else {
				out.Status = "failed"
				out.ErrorMessage = outcome.ErrorMessage
			}
		}
		ended := time.Now().UTC()
		out.EndedAt = &ended

		data, err := json.Marshal(out)
		if err != nil {
			w.logger.Errorf("worker %s: marshal output for task %s: %v", w.id, p.TaskID, err)
			return
		}
		if err := w.nc.Publish(outputSubject, data); err != nil {
			w.logger.Errorf("worker %s: publish output for task %s: %v", w.id, p.TaskID, err)
		}
	})
	if err != nil {
		atomic.AddInt64(&w.threadCount, -1)
		w.logger.Warnf("worker %s: dropping task %s, pool shutting down", w.id, p.TaskID)
	}
}

// shutdown unsubscribes from the command channel and stops the execution
// pool, giving in-flight tasks up to 5s to finish, mirroring §5's
// cooperative shutdown (the process itself is never actually killed here
// since it's a goroutine pool, not an OS process).
func (w *workerProcess) shutdown() {
	w.cmdSub.Unsubscribe()
	w.healthSub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.exec.Stop(ctx)
}

func workerCmdSubject(id string) string    { return "orchestrator.worker." + id + ".cmd" }
func workerHealthSubject(id string) string { return "orchestrator.worker." + id + ".health" }

const outputSubject = "orchestrator.outputs"
