package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/orchestration"
	"github.com/fluxorio/orchestrator/pkg/store"
)

// StreamServer hosts /executions/{id}/stream, a websocket push of an
// execution's status as it changes (SPEC_FULL.md domain stack entry for
// gorilla/websocket). It runs on its own net/http server alongside the
// fasthttp API, since gorilla/websocket only upgrades a net/http request.
type StreamServer struct {
	svc      *orchestration.Service
	logger   core.Logger
	upgrader websocket.Upgrader
}

// NewStreamServer builds a StreamServer backed by svc.
func NewStreamServer(svc *orchestration.Service, logger core.Logger) *StreamServer {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &StreamServer{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the net/http handler to mount at /executions/{id}/stream.
func (s *StreamServer) Handler() http.Handler {
	return http.HandlerFunc(s.serve)
}

func (s *StreamServer) serve(w http.ResponseWriter, r *http.Request) {
	id := executionIDFromPath(r.URL.Path)
	if id == "" {
		http.Error(w, "missing execution id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("stream upgrade for execution %q: %v", id, err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.drainClient(conn, cancel)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastStatus store.ExecutionStatus
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exec, err := s.svc.GetExecution(ctx, id)
			if err != nil {
				conn.WriteJSON(map[string]string{"error": err.Error()})
				return
			}
			if exec.Status == lastStatus {
				continue
			}
			lastStatus = exec.Status
			if err := conn.WriteJSON(exec); err != nil {
				return
			}
			if isTerminal(exec.Status) {
				return
			}
		}
	}
}

// drainClient reads (and discards) client frames so gorilla's control-frame
// handling (ping/pong, close) keeps working, cancelling ctx once the client
// disconnects.
func (s *StreamServer) drainClient(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func isTerminal(status store.ExecutionStatus) bool {
	switch status {
	case store.ExecutionCompleted, store.ExecutionFailed, store.ExecutionCancelled:
		return true
	default:
		return false
	}
}

// executionIDFromPath extracts {id} from "/executions/{id}/stream".
func executionIDFromPath(path string) string {
	const prefix = "/executions/"
	const suffix = "/stream"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
}
