package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/agentic-research/shelf/api"
)

// schemaStatements returns the DDL for a kind: the table, with natural keys
// as UNIQUE columns and a CHECK that at least one is set, followed by the
// secondary indexes. Every statement is create-if-missing.
func schemaStatements(k *api.Kind) []string {
	var cols []string
	cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, f := range k.Fields {
		col := fmt.Sprintf("%s %s", f.Name, f.Type.SQLType())
		if f.Required {
			col += " NOT NULL"
		}
		if k.IsNaturalKey(f.Name) {
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}
	cols = append(cols,
		"tags TEXT NOT NULL DEFAULT ''",
		"notes TEXT",
	)
	if k.HasStatus() {
		cols = append(cols, fmt.Sprintf("status TEXT NOT NULL DEFAULT '%s'", k.DefaultStatus))
	}
	cols = append(cols, "added_at TEXT NOT NULL")

	keys := make([]string, len(k.NaturalKeys))
	for i, n := range k.NaturalKeys {
		keys[i] = n + " IS NOT NULL"
	}
	cols = append(cols, fmt.Sprintf("CHECK (%s)", strings.Join(keys, " OR ")))

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", k.Table, strings.Join(cols, ",\n\t")),
	}
	index := func(col string) {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", k.Table, col, k.Table, col))
	}
	for _, f := range k.Fields {
		if f.Indexed && !k.IsNaturalKey(f.Name) {
			index(f.Name)
		}
	}
	index("tags")
	if k.HasStatus() {
		index("status")
	}
	return stmts
}

// EnsureSchema creates the kind's table and indexes if absent. It is
// idempotent and cheap after the first success on this store.
func (s *Store) EnsureSchema(ctx context.Context, k *api.Kind) error {
	if _, ok := s.ensured.Load(k.Table); ok {
		return nil
	}
	err := s.tx(ctx, "ensure schema", func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements(k) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &SchemaError{Kind: k.Name, Err: storageErr("ensure schema", err)}
	}
	s.ensured.Store(k.Table, struct{}{})
	s.log.Debug("schema ready", "kind", k.Name, "table", k.Table, "db", s.path)
	return nil
}

// TableExists reports whether the kind's table has been created.
func (s *Store) TableExists(ctx context.Context, k *api.Kind) (bool, error) {
	if _, ok := s.ensured.Load(k.Table); ok {
		return true, nil
	}
	var n int
	err := s.withRetry(ctx, "table exists", func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", k.Table).Scan(&n)
	})
	if err != nil {
		return false, storageErr("table exists", err)
	}
	return n > 0, nil
}
