// Package loader drains record files into a database, routing each record to
// a table by a segment of its category path.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pricecrawl/pkg/config"
	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/record"
	"pricecrawl/pkg/retry"
)

// Source yields records; *record.Cursor satisfies it.
type Source interface {
	HasNext() (bool, error)
	Next() (record.Record, error)
}

// Column is a destination column. Time columns receive a parsed timestamp.
type Column struct {
	Name string
	Time bool
}

// Store persists rows of values aligned with cols. A nil value is NULL.
type Store interface {
	Insert(ctx context.Context, table string, cols []Column, rows [][]interface{}) error
	Close() error
}

// Router picks the table for a record. The value of Field is split on ">"
// and segment Segment, lower-cased, is looked up in Routes. Records with no
// route go to Default; if Default is empty they are skipped.
type Router struct {
	Field   string
	Segment int
	Routes  map[string]string
	Default string
}

// Table returns the destination table for rec.
func (r Router) Table(rec record.Record) (string, bool) {
	if len(r.Routes) > 0 && r.Field != "" {
		parts := strings.Split(rec[r.Field], ">")
		if r.Segment >= 0 && r.Segment < len(parts) {
			key := strings.ToLower(strings.TrimSpace(parts[r.Segment]))
			for k, table := range r.Routes {
				if strings.ToLower(strings.TrimSpace(k)) == key {
					return table, true
				}
			}
		}
	}
	return r.Default, r.Default != ""
}

// Options configures a Loader.
type Options struct {
	Columns    []string
	DateColumn string
	DateField  string
	DateLayout string
	BatchSize  int
	Retries    int
	// Backoff paces insert retries; nil means exponential from 500ms.
	Backoff retry.BackoffStrategy
	Logger  logger.Logger
}

// Stats summarizes a load.
type Stats struct {
	Read     int
	Inserted int
	Unrouted int
	Batches  int
	Tables   map[string]int
}

// PartialInsertError reports a failed insert whose first Inserted rows were
// committed anyway. The loader retries only the rows after them.
type PartialInsertError struct {
	Inserted int
	Err      error
}

func (e *PartialInsertError) Error() string {
	return fmt.Sprintf("inserted %d rows before failing: %v", e.Inserted, e.Err)
}

func (e *PartialInsertError) Unwrap() error {
	return e.Err
}

// Loader copies records from a Source into a Store.
type Loader struct {
	store   Store
	router  Router
	cols    []Column
	opts    Options
	logger  logger.Logger
	pending map[string][][]interface{}
	stats   *Stats
}

// New builds a loader. DateColumn, when it names one of Columns, is filled
// from DateField parsed with DateLayout.
func New(store Store, router Router, opts Options) (*Loader, error) {
	if store == nil {
		return nil, fmt.Errorf("loader: store is required")
	}
	if len(opts.Columns) == 0 {
		return nil, fmt.Errorf("loader: no columns configured")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultExponentialBackoff()
	}
	if opts.DateLayout == "" {
		opts.DateLayout = record.TimestampLayout
	}
	if opts.DateField == "" {
		opts.DateField = "date"
	}

	cols := make([]Column, len(opts.Columns))
	for i, name := range opts.Columns {
		cols[i] = Column{Name: name, Time: name == opts.DateColumn}
	}
	return &Loader{
		store:  store,
		router: router,
		cols:   cols,
		opts:   opts,
		logger: logger.OrDefault(opts.Logger).WithField("component", "loader"),
	}, nil
}

// Load drains src. Rows are inserted in batches per table; whatever is
// buffered is flushed before returning, including after a read error.
func (l *Loader) Load(ctx context.Context, src Source) (*Stats, error) {
	l.pending = make(map[string][][]interface{})
	l.stats = &Stats{Tables: make(map[string]int)}

	readErr := l.drain(ctx, src)
	flushErr := l.flushAll(ctx)
	if readErr != nil {
		return l.stats, readErr
	}
	if flushErr != nil {
		return l.stats, flushErr
	}

	l.logger.InfoWithFields("Load finished", map[string]interface{}{
		"read":     l.stats.Read,
		"inserted": l.stats.Inserted,
		"unrouted": l.stats.Unrouted,
		"tables":   len(l.stats.Tables),
	})
	return l.stats, nil
}

func (l *Loader) drain(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := src.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		rec, err := src.Next()
		if err != nil {
			return err
		}
		l.stats.Read++

		table, ok := l.router.Table(rec)
		if !ok {
			l.stats.Unrouted++
			l.logger.DebugWithFields("No table for record", map[string]interface{}{
				"path": rec[l.router.Field],
			})
			continue
		}

		l.pending[table] = append(l.pending[table], l.row(rec))
		if len(l.pending[table]) >= l.opts.BatchSize {
			if err := l.flush(ctx, table); err != nil {
				return err
			}
		}
	}
}

// row orders rec's values by column. Missing fields become NULL.
func (l *Loader) row(rec record.Record) []interface{} {
	out := make([]interface{}, len(l.cols))
	for i, c := range l.cols {
		if c.Time {
			out[i] = l.parseDate(rec[l.opts.DateField])
			continue
		}
		if v, ok := rec[c.Name]; ok {
			out[i] = v
		}
	}
	return out
}

func (l *Loader) parseDate(v string) interface{} {
	if v == "" {
		return nil
	}
	t, err := time.Parse(l.opts.DateLayout, v)
	if err != nil {
		l.logger.WarnWithFields("Unparseable collection date", map[string]interface{}{
			"value":  v,
			"layout": l.opts.DateLayout,
		})
		return nil
	}
	return t
}

func (l *Loader) flushAll(ctx context.Context) error {
	tables := make([]string, 0, len(l.pending))
	for t := range l.pending {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, t := range tables {
		if err := l.flush(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) flush(ctx context.Context, table string) error {
	rows := l.pending[table]
	if len(rows) == 0 {
		return nil
	}

	cfg := &retry.Config{
		MaxAttempts: l.opts.Retries + 1,
		Backoff:     l.opts.Backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      l.logger,
		Name:        "insert " + table,
	}

	// done counts rows the store has already committed; retries resume after them.
	done := 0
	err := retry.Do(func() error {
		err := l.store.Insert(ctx, table, l.cols, rows[done:])
		if err == nil {
			return nil
		}
		var partial *PartialInsertError
		if errors.As(err, &partial) {
			done += partial.Inserted
		}
		return errs.Collaborator("insert into "+table, err)
	}, cfg)
	if err != nil {
		return err
	}

	delete(l.pending, table)
	l.stats.Batches++
	l.stats.Inserted += len(rows)
	l.stats.Tables[table] += len(rows)
	l.logger.DebugWithFields("Batch inserted", map[string]interface{}{
		"table": table,
		"rows":  len(rows),
	})
	return nil
}

// OpenStore connects the store named by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.LoaderConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQL(ctx, "sqlite", cfg.DSN)
	case "mongo":
		return OpenMongo(ctx, cfg.DSN, cfg.Database)
	default:
		return nil, errs.New(errs.ErrorTypeConfig, "open store", fmt.Errorf("unknown loader driver %q", cfg.Driver))
	}
}

// RouterFor builds the router described by cfg.
func RouterFor(cfg config.LoaderConfig) Router {
	return Router{
		Field:   cfg.RouteField,
		Segment: cfg.RouteSegment,
		Routes:  cfg.Routes,
		Default: cfg.Table,
	}
}
