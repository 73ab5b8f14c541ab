package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLStore writes rows through database/sql. Tables are created on first use.
type SQLStore struct {
	db      *sql.DB
	mu      sync.Mutex
	created map[string]bool
}

// OpenSQL opens and pings a database. driverName is a registered
// database/sql driver such as "sqlite".
func OpenSQL(ctx context.Context, driverName, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return NewSQLStore(db), nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, created: make(map[string]bool)}
}

// DB returns the underlying handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Insert writes rows in a single transaction with a prepared statement.
func (s *SQLStore) Insert(ctx context.Context, table string, cols []Column, rows [][]interface{}) error {
	if err := s.ensureTable(ctx, table, cols); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL(table, cols))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) ensureTable(ctx context.Context, table string, cols []Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created[table] {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, createSQL(table, cols)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	s.created[table] = true
	return nil
}

func createSQL(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		kind := "TEXT"
		if c.Time {
			kind = "TIMESTAMP"
		}
		defs[i] = quoteIdent(c.Name) + " " + kind
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func insertSQL(table string, cols []Column) string {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
