package orchestration

import (
	"github.com/fluxorio/orchestrator/pkg/fsm"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// executionTransitions builds the legal execution status graph (§3, §4.1-§4.7):
// pending and running executions may be cancelled; pending moves to running
// once the first task starts; running resolves to completed or failed once
// the output monitor finalizes the last task. The store's conditional
// UPDATE...WHERE status IN (...) statements remain the actual source of
// truth under concurrent monitors; this FSM is a fail-fast check so callers
// reject an illegal transition before ever reaching the database.
func executionTransitions(current store.ExecutionStatus) *fsm.FSM {
	f := fsm.NewFSM(fsm.State(current), nil)
	f.AddTransition(fsm.State(store.ExecutionPending), "start", fsm.State(store.ExecutionRunning), nil)
	f.AddTransition(fsm.State(store.ExecutionPending), "cancel", fsm.State(store.ExecutionCancelled), nil)
	f.AddTransition(fsm.State(store.ExecutionRunning), "cancel", fsm.State(store.ExecutionCancelled), nil)
	f.AddTransition(fsm.State(store.ExecutionRunning), "complete", fsm.State(store.ExecutionCompleted), nil)
	f.AddTransition(fsm.State(store.ExecutionRunning), "fail", fsm.State(store.ExecutionFailed), nil)
	return f
}

// canCancel reports whether an execution in the given status may still be
// cancelled, per executionTransitions's "cancel" event.
func canCancel(status store.ExecutionStatus) bool {
	return executionTransitions(status).CanFire("cancel")
}
