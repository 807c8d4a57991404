package writer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/storage"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/storage/postgres"
	"github.com/ihelfrich/BACI-ProcessingUtility/internal/storage/sqlite"
)

// load streams records into copyFn through storage.LoadBatches.
func load(ctx context.Context, opts Options, records []domain.EnrichedRecord, copyFn storage.CopyFn) (int64, error) {
	g, ctx := errgroup.WithContext(ctx)
	rows := make(chan []any, opts.Storage.BatchSize)

	g.Go(func() error {
		defer close(rows)
		for i := range records {
			select {
			case rows <- records[i].Values():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var total int64
	g.Go(func() error {
		var err error
		total, err = storage.LoadBatches(ctx, opts.Logger, domain.Columns, rows, opts.Storage.BatchSize, copyFn)
		return err
	})
	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}

// sqliteSink replaces the target table on every run, the same way file
// sinks overwrite their artifact.
type sqliteSink struct {
	dsn  string
	opts Options
}

func (s *sqliteSink) Write(ctx context.Context, records []domain.EnrichedRecord) (string, error) {
	table := s.opts.Storage.Table
	repo, closeFn, err := sqlite.NewRepository(ctx, sqlite.Config{DSN: s.dsn, Table: table})
	if err != nil {
		return "", err
	}
	defer closeFn()

	if err := repo.Exec(ctx, "DROP TABLE IF EXISTS "+storage.QuoteFQN(table)); err != nil {
		return "", err
	}
	if err := repo.EnsureTable(ctx, storage.TradeFlowTable(table)); err != nil {
		return "", err
	}
	n, err := load(ctx, s.opts, records, repo.CopyFrom)
	if err != nil {
		return "", fmt.Errorf("sqlite: load %s: %w", table, err)
	}
	s.opts.Logger.Info("writer: sqlite loaded",
		slog.String("dsn", s.dsn),
		slog.String("table", table),
		slog.Int64("rows", n),
	)
	return s.dsn, nil
}

// postgresSink appends to the target table, creating it when missing.
type postgresSink struct {
	opts Options
}

func (s *postgresSink) Write(ctx context.Context, records []domain.EnrichedRecord) (string, error) {
	table := s.opts.Storage.Table
	repo, closeFn, err := postgres.NewRepository(ctx, postgres.Config{DSN: s.opts.Storage.DSN, Table: table})
	if err != nil {
		return "", err
	}
	defer closeFn()

	if err := repo.EnsureTable(ctx, storage.TradeFlowTable(table)); err != nil {
		return "", err
	}
	n, err := load(ctx, s.opts, records, repo.CopyFrom)
	if err != nil {
		return "", fmt.Errorf("postgres: load %s: %w", table, err)
	}
	s.opts.Logger.Info("writer: postgres loaded",
		slog.String("table", table),
		slog.Int64("rows", n),
	)
	return "postgres:" + table, nil
}
