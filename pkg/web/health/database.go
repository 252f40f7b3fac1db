package health

import (
	"context"
	"database/sql"
	"time"
)

// SQLDBCheck creates a health check for a standard sql.DB, used for both the
// Postgres and SQLite store backends (§6 persisted state layout).
func SQLDBCheck(db *sql.DB) Checker {
	return func(ctx context.Context) error {
		if db == nil {
			return &Error{Message: "database is nil"}
		}

		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := db.PingContext(checkCtx); err != nil {
			return &Error{Message: "database ping failed: " + err.Error()}
		}

		return nil
	}
}

// Error represents a health check error
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
