package storage

import (
	"fmt"
	"strings"

	"github.com/ihelfrich/BACI-ProcessingUtility/internal/domain"
)

// ColumnKind is the dialect-neutral type of a column. Backends map it to
// their own SQL type names.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInteger
	KindReal
)

// ColumnDef describes a single column.
type ColumnDef struct {
	Name     string
	Kind     ColumnKind
	Nullable bool
}

// TableDef holds the table name (optionally schema-qualified, "schema.table")
// and its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Names returns the column names in order.
func (t TableDef) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// TradeFlowTable returns the definition of the merged output table, with
// columns in domain.Columns order. Trade fields are NOT NULL; enrichment
// fields are nullable.
func TradeFlowTable(fqn string) TableDef {
	kinds := map[string]ColumnKind{
		"t": KindInteger, "i": KindInteger, "j": KindInteger,
		"k": KindText,
		"q": KindReal, "v": KindReal,
	}
	t := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, len(domain.Columns))}
	for _, name := range domain.Columns {
		kind, trade := kinds[name]
		t.Columns = append(t.Columns, ColumnDef{Name: name, Kind: kind, Nullable: !trade})
	}
	return t
}

// TypeMapper maps a ColumnKind to a dialect's SQL type name.
type TypeMapper func(ColumnKind) string

// BuildCreateTableSQL renders
//
//	CREATE TABLE IF NOT EXISTS "schema"."table" (
//	  "col1" TYPE NOT NULL,
//	  "col2" TYPE
//	);
//
// Identifiers are double-quoted with embedded quotes doubled, which both
// SQLite and Postgres accept.
func BuildCreateTableSQL(t TableDef, types TypeMapper) (string, error) {
	fqn := QuoteFQN(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", t.FQN)
		}
		def := QuoteIdent(name) + " " + types(c.Kind)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", fqn, strings.Join(cols, ",\n  ")), nil
}

// QuoteIdent quotes one identifier segment: weird"name => "weird""name".
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each segment of a possibly schema-qualified name. Empty
// segments are ignored.
func QuoteFQN(f string) string {
	parts := strings.Split(strings.TrimSpace(f), ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// QuoteIdents quotes every name in cols.
func QuoteIdents(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = QuoteIdent(c)
	}
	return out
}
