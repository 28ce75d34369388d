package checkpoint

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-logr/logr"
)

// maxPoolConns is the connection pool cap called out in spec.md §4.1:
// "one connection per concurrent caller is sufficient; four is a
// reasonable cap."
const maxPoolConns = 4

// openPool configures *sql.DB's built-in connection pool to the bounds
// spec.md §4.1 requires; NewSnowflakeStore starts the background liveness
// check (pingLoop) alongside it. database/sql already discards a
// connection that fails mid-use and opens a replacement on the next
// checkout; the liveness goroutine exists so
// a fully-idle pool notices a dropped network path before the next
// checkpoint save, rather than paying that discovery cost on the
// caller's critical path — spec.md is explicit that checkpoint save
// latency dominates the per-batch tail otherwise.
func openPool(db *sql.DB, log logr.Logger) {
	db.SetMaxOpenConns(maxPoolConns)
	db.SetMaxIdleConns(maxPoolConns)
	db.SetConnMaxIdleTime(5 * time.Minute)
}

// pingLoop periodically pings the pool until ctx is cancelled. Ping errors
// are logged, not fatal: database/sql transparently opens a fresh
// connection on the next real query.
func pingLoop(ctx context.Context, db *sql.DB, interval time.Duration, log logr.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := db.PingContext(pingCtx)
			cancel()
			if err != nil {
				log.V(1).Info("checkpoint store pool ping failed, connection will be replaced on next use", "error", err)
			}
		}
	}
}
