package storage

import (
	"context"
	"fmt"
	"time"

	"gpetl/internal/logging"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches splits rows into batches of batchSize and calls copyFn for each.
// It returns the total reported by copyFn and the first error encountered;
// no further batches are attempted after an error.
//
// A progress line is logged after every successful flush.
func LoadBatches(
	ctx context.Context,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	log := logging.Component(ctx, "loader")
	var (
		total   int64
		batches int64
		start   = time.Now()
		last    = start
	)

	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+batchSize, len(rows))

		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Error().Err(err).Int64("after", n).Int64("total", total).Msg("copy failed")
			return total, err
		}

		batches++
		now := time.Now()
		since := now.Sub(last)
		rps := float64(0)
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.Debug().
			Int64("batch", batches).
			Float64("rps", rps).
			Int64("inserted", n).
			Int64("total_inserted", total).
			Dur("elapsed", now.Sub(start).Truncate(time.Millisecond)).
			Msg("batch flushed")
		last = now
	}
	return total, nil
}
