package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/storage"
)

func newRepo(tb testing.TB, table string) *Repository {
	tb.Helper()
	dsn := filepath.Join(tb.TempDir(), "test.db")
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn, Table: table})
	if err != nil {
		tb.Fatalf("NewRepository: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func TestNewRepository_Validation(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{Table: "t"}); err == nil {
		t.Fatalf("want error for empty DSN")
	}
	if _, _, err := NewRepository(context.Background(), Config{DSN: "x.db"}); err == nil {
		t.Fatalf("want error for empty table")
	}
}

func TestEnsureTableAndCopyFrom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRepo(t, "trade_flows")
	def := storage.TradeFlowTable("trade_flows")
	if err := r.EnsureTable(ctx, def); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Idempotent.
	if err := r.EnsureTable(ctx, def); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}

	rows := [][]any{
		{2020, 4, 8, "010121", 1.5, 10.0, "Afghanistan", "AF", "AFG", "Albania", "AL", "ALB", "Horses"},
		{2020, 999, 8, "010121", 0.0, 3.0, nil, nil, nil, "Albania", "AL", "ALB", nil},
	}
	n, err := r.CopyFrom(ctx, def.Names(), rows)
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted %d, want 2", n)
	}

	count, err := r.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("Count = %d, %v", count, err)
	}

	var (
		k    string
		name sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, `SELECT "k", "exporter_name" FROM "trade_flows" WHERE "i" = 999`).Scan(&k, &name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if k != "010121" {
		t.Fatalf("k = %q, leading zeros lost", k)
	}
	if name.Valid {
		t.Fatalf("exporter_name should be NULL, got %q", name.String)
	}
}

func TestCopyFrom_RowWidthMismatchRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := newRepo(t, "t")
	if err := r.Exec(ctx, `CREATE TABLE "t" ("a" INTEGER, "b" TEXT)`); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	_, err := r.CopyFrom(ctx, []string{"a", "b"}, [][]any{{1, "x"}, {2}})
	if err == nil || !strings.Contains(err.Error(), "row length") {
		t.Fatalf("want row length error, got %v", err)
	}
	if n, _ := r.Count(ctx); n != 0 {
		t.Fatalf("rows after rollback = %d, want 0", n)
	}
}

func TestCopyFrom_EmptyInputs(t *testing.T) {
	t.Parallel()

	r := newRepo(t, "t")
	if _, err := r.CopyFrom(context.Background(), nil, [][]any{{1}}); err == nil {
		t.Fatalf("want error for empty columns")
	}
	if n, err := r.CopyFrom(context.Background(), []string{"a"}, nil); err != nil || n != 0 {
		t.Fatalf("empty rows: n=%d err=%v", n, err)
	}
	if err := r.Exec(context.Background(), "  "); err != nil {
		t.Fatalf("blank Exec: %v", err)
	}
}

func TestTypeName(t *testing.T) {
	t.Parallel()

	cases := map[storage.ColumnKind]string{
		storage.KindInteger: "INTEGER",
		storage.KindReal:    "REAL",
		storage.KindText:    "TEXT",
	}
	for k, want := range cases {
		if got := TypeName(k); got != want {
			t.Errorf("TypeName(%v) = %q, want %q", k, got, want)
		}
	}
}
