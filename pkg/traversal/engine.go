package traversal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricecrawl/pkg/checkpoint"
	"pricecrawl/pkg/deadline"
	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/record"
	"pricecrawl/pkg/retry"
)

// Outcome is how a run ended.
type Outcome string

const (
	// OutcomeCompleted means every level was exhausted and all checkpoints removed.
	OutcomeCompleted Outcome = "completed"
	// OutcomeSuspended means pending work was written to checkpoints for a later run.
	OutcomeSuspended Outcome = "suspended"
)

// Report summarizes a run.
type Report struct {
	Outcome   Outcome
	Sink      string
	Written   int
	Dropped   int
	Ignored   int
	Processed map[string]int
	Started   time.Time
	Finished  time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDeadline supplies the session deadline. It is started by Run with the
// limit given to WithLimit.
func WithDeadline(d *deadline.Deadline) Option {
	return func(e *Engine) { e.deadline = d }
}

// WithLimit sets the session time budget; zero means run to completion.
func WithLimit(hours, minutes int) Option {
	return func(e *Engine) { e.hours, e.minutes = hours, minutes }
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRetries sets how many times a failed leaf scrape is retried and the pause between attempts.
func WithRetries(retries int, delay time.Duration) Option {
	return func(e *Engine) { e.retries, e.retryDelay = retries, delay }
}

// WithRequiredFields drops leaf records missing any of fields.
func WithRequiredFields(fields ...string) Option {
	return func(e *Engine) { e.required = fields }
}

// WithStaticFields stamps fixed values (such as the store chain) onto every record.
func WithStaticFields(fields map[string]string) Option {
	return func(e *Engine) { e.static = fields }
}

// WithDateStamp stamps the collection time onto each record under field using layout.
// An empty field disables stamping.
func WithDateStamp(field, layout string) Option {
	return func(e *Engine) { e.dateField, e.dateLayout = field, layout }
}

// WithClock replaces time.Now for record stamps and the report.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine walks the level hierarchy depth first, writing leaf records to a
// sink and keeping one checkpoint per level so an interrupted session can
// resume where it stopped. It owns the sink and closes it on every return.
type Engine struct {
	driver PageDriver
	sink   *record.Sink
	levels []Level

	deadline       *deadline.Deadline
	hours, minutes int
	retries        int
	retryDelay     time.Duration
	required       []string
	static         map[string]string
	dateField      string
	dateLayout     string
	now            func() time.Time
	logger         logger.Logger

	selected []string
	report   *Report
}

// New validates the level set and builds an engine.
func New(driver PageDriver, sink *record.Sink, levels []Level, opts ...Option) (*Engine, error) {
	if driver == nil || sink == nil {
		return nil, errors.New("traversal: driver and sink are required")
	}
	if len(levels) == 0 {
		return nil, errors.New("traversal: at least one level is required")
	}
	paths := make(map[string]string)
	for i, lvl := range levels {
		if lvl.Name == "" || lvl.Checkpoint == nil {
			return nil, fmt.Errorf("traversal: level %d needs a name and a checkpoint", i)
		}
		if other, dup := paths[lvl.Checkpoint.Path()]; dup {
			return nil, fmt.Errorf("traversal: levels %s and %s share checkpoint %s", other, lvl.Name, lvl.Checkpoint.Path())
		}
		paths[lvl.Checkpoint.Path()] = lvl.Name
	}

	e := &Engine{
		driver:     driver,
		sink:       sink,
		levels:     levels,
		dateField:  "date",
		dateLayout: record.TimestampLayout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.deadline == nil {
		e.deadline = deadline.New()
	}
	e.logger = logger.OrDefault(e.logger)
	e.selected = make([]string, len(levels))
	return e, nil
}

// Run performs one session. Deadline expiry and context cancellation end the
// run with OutcomeSuspended and a nil error. A failing collaborator or file
// also suspends, with checkpoints persisted, but returns the error.
func (e *Engine) Run(ctx context.Context) (report *Report, err error) {
	e.deadline.Start(e.hours, e.minutes)
	e.report = &Report{
		Sink:      e.sink.Path(),
		Processed: make(map[string]int),
		Started:   e.now(),
	}
	report = e.report

	fields := map[string]interface{}{"sink": e.sink.Path(), "levels": len(e.levels)}
	if e.deadline.HasLimit() {
		fields["deadline"] = e.deadline.End()
	}
	logger.LogComponentStart(e.logger, "traversal", fields)

	defer func() {
		if closeErr := e.sink.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		report.Finished = e.now()
		logger.LogComponentStop(e.logger.WithFields(map[string]interface{}{
			"written":  report.Written,
			"dropped":  report.Dropped,
			"duration": report.Finished.Sub(report.Started),
		}), "traversal", string(report.Outcome))
	}()

	report.Outcome, err = e.walk(ctx, 0)
	return report, err
}

// walk processes every remaining item at depth, recursing below it.
func (e *Engine) walk(ctx context.Context, depth int) (Outcome, error) {
	lvl := e.levels[depth]
	cp := lvl.Checkpoint
	log := e.logger.WithField("level", lvl.Name)

	items, err := e.enter(ctx, depth)
	if err != nil {
		if e.interrupted(ctx) {
			return OutcomeSuspended, nil
		}
		return OutcomeSuspended, err
	}

	last := depth == len(e.levels)-1
	for _, item := range items {
		e.selected[depth] = item
		log.DebugWithFields("Selecting item", map[string]interface{}{"item": item})

		if err := e.driver.Select(ctx, lvl.Name, item); err != nil {
			return e.suspend(ctx, cp, errs.Collaborator(fmt.Sprintf("select %s %q", lvl.Name, item), err))
		}

		if last {
			if err := e.scrapeLeaf(ctx); err != nil {
				return e.suspend(ctx, cp, err)
			}
		} else {
			outcome, err := e.walk(ctx, depth+1)
			if err != nil || outcome == OutcomeSuspended {
				return e.suspend(ctx, cp, err)
			}
		}

		cp.Consume(item)
		e.report.Processed[lvl.Name]++

		if e.shouldStop(ctx) {
			if cp.Len() > 0 {
				log.InfoWithFields("Time budget exhausted, suspending", map[string]interface{}{
					"remaining": cp.Len(),
				})
				return e.suspend(ctx, cp, nil)
			}
			// This level is finished; the parent sees the same expiry and suspends there.
			break
		}
	}

	if err := cp.Delete(); err != nil {
		return OutcomeSuspended, err
	}
	log.Debug("Level complete")
	return OutcomeCompleted, nil
}

// enter prepares the checkpoint for depth, either from its file or by
// enumerating and filtering the driver's items.
func (e *Engine) enter(ctx context.Context, depth int) ([]string, error) {
	lvl := e.levels[depth]
	cp := lvl.Checkpoint

	cp.Reset()
	found, err := cp.Load()
	if err != nil {
		return nil, err
	}
	if found {
		return cp.Remaining(), nil
	}

	names, err := e.driver.Enumerate(ctx, lvl.Name)
	if err != nil {
		return nil, errs.Collaborator("enumerate "+lvl.Name, err)
	}

	parent := ""
	if depth > 0 {
		parent = e.selected[depth-1]
	}
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if lvl.Ignore.Match(name, parent) {
			e.report.Ignored++
			e.logger.DebugWithFields("Ignoring item", map[string]interface{}{
				"level":  lvl.Name,
				"item":   name,
				"parent": parent,
			})
			continue
		}
		kept = append(kept, name)
	}
	if lvl.Limit > 0 && len(kept) > lvl.Limit {
		kept = kept[:lvl.Limit]
	}

	cp.Seed(kept)
	e.logger.InfoWithFields("Level enumerated", map[string]interface{}{
		"level":  lvl.Name,
		"parent": parent,
		"found":  len(names),
		"kept":   cp.Len(),
	})
	return cp.Remaining(), nil
}

// scrapeLeaf collects the records on the current leaf page. Scrape failures
// are retried and then given up on; only sink failures are returned.
func (e *Engine) scrapeLeaf(ctx context.Context) error {
	cfg := retry.Fixed(ctx, e.retries, e.retryDelay, e.logger)
	cfg.Name = "scrape leaf"
	// Driver timeouts wrap context.DeadlineExceeded too; only ctx stops retrying.
	cfg.RetryIf = func(error) bool { return ctx.Err() == nil }

	records, err := retry.DoWithResult(func() ([]record.Record, error) {
		return e.driver.ScrapeLeaf(ctx)
	}, cfg)
	if err != nil {
		if e.interrupted(ctx) {
			return ctx.Err()
		}
		e.logger.WithError(err).WarnWithFields("Giving up on leaf page", map[string]interface{}{
			"path": e.selected,
		})
		return nil
	}

	stamp := e.now().Format(e.dateLayout)
	for _, rec := range records {
		if missing := rec.Missing(e.required); len(missing) > 0 {
			e.report.Dropped++
			e.logger.DebugWithFields("Dropping incomplete record", map[string]interface{}{
				"missing": missing,
			})
			continue
		}
		if err := e.sink.Write(e.stamp(rec, stamp)); err != nil {
			return err
		}
		e.report.Written++
	}
	return nil
}

// stamp copies rec, adding level, static and date fields that are not already present.
func (e *Engine) stamp(rec record.Record, date string) record.Record {
	out := rec.Clone()
	setIfAbsent := func(k, v string) {
		if k != "" && out[k] == "" {
			out[k] = v
		}
	}
	for i, lvl := range e.levels {
		setIfAbsent(lvl.Field, e.selected[i])
	}
	for k, v := range e.static {
		setIfAbsent(k, v)
	}
	setIfAbsent(e.dateField, date)
	return out
}

// suspend persists cp and returns OutcomeSuspended. Interruptions by the
// context are not reported as errors.
func (e *Engine) suspend(ctx context.Context, cp *checkpoint.Checkpoint, cause error) (Outcome, error) {
	if cause != nil && e.interrupted(ctx) {
		cause = nil
	}
	if cause != nil {
		e.logger.WithError(cause).ErrorWithFields("Suspending after failure", map[string]interface{}{
			"checkpoint": cp.Path(),
		})
	}
	if cp.State() == checkpoint.InProgress && cp.Len() > 0 {
		if err := cp.Persist(); err != nil {
			return OutcomeSuspended, errors.Join(cause, err)
		}
	}
	return OutcomeSuspended, cause
}

func (e *Engine) shouldStop(ctx context.Context) bool {
	return e.deadline.Expired() || ctx.Err() != nil
}

func (e *Engine) interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}
