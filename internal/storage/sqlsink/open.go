package sqlsink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PingTimeout bounds the connectivity check done by Open.
var PingTimeout = 10 * time.Second

// Open opens driver/dsn and pings it so bad DSNs fail before any work starts.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	return db, nil
}
