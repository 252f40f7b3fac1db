package middleware

import (
	"context"
	"time"

	"github.com/fluxorio/orchestrator/pkg/web"
)

// TimeoutConfig configures the request-deadline middleware.
type TimeoutConfig struct {
	// Timeout is the maximum time a handler may run.
	Timeout time.Duration

	// Message is the body returned when the deadline is exceeded.
	Message string
}

// DefaultTimeoutConfig returns a TimeoutConfig with the given timeout.
func DefaultTimeoutConfig(timeout time.Duration) TimeoutConfig {
	return TimeoutConfig{Timeout: timeout, Message: "request timed out"}
}

// Timeout middleware runs the handler with a bounded context and returns
// a 504 if it does not complete before the deadline. The handler keeps
// running in the background after the deadline fires — fasthttp has no
// way to abandon an in-flight handler goroutine — so this only bounds
// the caller-visible latency, not the work itself.
func Timeout(config TimeoutConfig) web.FastMiddleware {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	message := config.Message
	if message == "" {
		message = "request timed out"
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			deadlineCtx, cancel := context.WithTimeout(ctx.Context(), timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- next(ctx)
			}()

			select {
			case err := <-done:
				return err
			case <-deadlineCtx.Done():
				// Returning an error here would make the router overwrite
				// the 504 with a 500, so the timeout is reported as handled.
				ctx.Error(message, 504)
				return nil
			}
		}
	}
}
