package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/web"
)

// RecoveryConfig configures panic-recovery middleware.
type RecoveryConfig struct {
	// Logger is the logger to use (default: core.NewDefaultLogger())
	Logger core.Logger

	// PrintStack includes the stack trace in the log entry.
	PrintStack bool
}

// DefaultRecoveryConfig returns a default recovery configuration.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:     core.NewDefaultLogger(),
		PrintStack: true,
	}
}

// Recovery middleware converts a panicking handler into a 500 response
// instead of crashing the server. One request's panic never takes down
// the process or any other in-flight request.
func Recovery(config RecoveryConfig) web.FastMiddleware {
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) (err error) {
			defer func() {
				if r := recover(); r != nil {
					fields := map[string]interface{}{
						"request_id": ctx.RequestID(),
						"panic":      fmt.Sprintf("%v", r),
					}
					if config.PrintStack {
						fields["stack"] = string(debug.Stack())
					}
					logger.WithFields(fields).Error("panic recovered in request handler")

					ctx.Error("Internal Server Error", 500)
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()

			return next(ctx)
		}
	}
}
