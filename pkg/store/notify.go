package store

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/fluxorio/orchestrator/pkg/core"
)

// OutputChannel is the Postgres NOTIFY channel the output monitor listens
// on to wake up early instead of waiting out its poll interval (§4.6).
const OutputChannel = "orchestrator_output_ready"

// Notifier wraps a dedicated lib/pq LISTEN connection. It is a no-op under
// SQLite, where the output monitor relies solely on its adaptive poll loop.
type Notifier struct {
	listener *pq.Listener
	logger   core.Logger
	enabled  bool
}

// NewNotifier opens a dedicated LISTEN connection against dsn. Returns a
// disabled Notifier (Notify/Wait are no-ops) when dialect is SQLite.
func NewNotifier(dsn string, dialect Dialect, logger core.Logger) *Notifier {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	if dialect != DialectPostgres {
		return &Notifier{logger: logger, enabled: false}
	}

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warnf("store: notify listener event: %v", err)
		}
	})

	return &Notifier{listener: listener, logger: logger, enabled: true}
}

// Start subscribes to OutputChannel. No-op when the notifier is disabled.
func (n *Notifier) Start() error {
	if !n.enabled {
		return nil
	}
	return n.listener.Listen(OutputChannel)
}

// Stop closes the LISTEN connection. No-op when the notifier is disabled.
func (n *Notifier) Stop() error {
	if !n.enabled {
		return nil
	}
	return n.listener.Close()
}

// Wait blocks until a notification arrives, ctx is cancelled, or timeout
// elapses — whichever comes first. Returns immediately (false, nil) when
// the notifier is disabled so callers fall back to polling unconditionally.
func (n *Notifier) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	if !n.enabled {
		return false, nil
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case notice := <-n.listener.Notify:
		return notice != nil, nil
	case <-time.After(timeout):
		return false, nil
	}
}

// Emit sends a NOTIFY on OutputChannel, called by task finalization after
// an execution_outputs row is written (§4.6). No-op under SQLite.
func (s *Store) Emit(ctx context.Context, channel, payload string) error {
	if s.Dialect != DialectPostgres {
		return nil
	}
	_, err := s.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}
