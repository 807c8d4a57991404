// Package storage contains the backend-agnostic contracts of the database
// sinks and a batched loader that drives them.
//
// Backends (sqlite, postgres) implement Repository with their most efficient
// bulk primitive: Postgres COPY, SQLite prepared INSERTs in a transaction.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Repository is the minimal surface a database sink needs.
type Repository interface {
	// CopyFrom inserts rows aligned to columns and reports how many were
	// inserted.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
}

// CopyFn abstracts a backend's bulk insert capability.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the total reported by
// copyFn and the first error encountered.
//
// Cancellation: returns (total, ctx.Err()) when canceled. Progress is logged
// at debug level on each successful flush.
func LoadBatches(
	ctx context.Context,
	log *slog.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total   int64
		batches int64
		batch   = make([][]any, 0, batchSize)
		start   = time.Now()
		last    = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Error("loader: copy failed", slog.Int64("inserted", n), slog.Int64("total", total), slog.String("error", err.Error()))
			return err
		}

		batches++
		now := time.Now()
		rps := 0.0
		if d := now.Sub(last); d > 0 {
			rps = float64(n) / d.Seconds()
		}
		log.Debug("loader: batch",
			slog.Int64("batch", batches),
			slog.Int64("inserted", n),
			slog.Int64("total", total),
			slog.Float64("rps", rps),
			slog.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)),
		)
		last = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				log.Debug("loader: input closed", slog.Int64("batches", batches), slog.Int64("total", total))
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
