// Package chrome is a PageDriver backed by a headless Chrome session, for
// store sites whose menus and product grids are rendered by JavaScript.
package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"pricecrawl/internal/driver"
	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/record"
)

// Options configures the browser on top of the shared driver options.
type Options struct {
	driver.Options
	ExecPath string
	Headless bool
}

// Driver clicks through menus in one browser tab. It remembers the URL each
// level's items were listed on so that selecting at a shallow level after a
// deep walk first returns to that page.
type Driver struct {
	opts   Options
	logger logger.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	urls []string
}

// New prepares a browser session. Chrome is started by the first page action.
func New(opts Options) (*Driver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Defaults()

	d := &Driver{
		opts:   opts,
		logger: opts.Logger.WithField("component", "chrome-driver"),
		urls:   make([]string, len(opts.Levels)+1),
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		d.logger.Debug(fmt.Sprintf(format, args...))
	}))
	d.allocCancel = allocCancel
	d.browserCtx = browserCtx
	d.browserCancel = browserCancel

	logger.LogComponentStart(opts.Logger, "chrome-driver", map[string]interface{}{
		"start_url": opts.StartURL,
		"levels":    opts.Levels,
		"headless":  opts.Headless,
	})
	return d, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	return out
}

// Close shuts the browser down.
func (d *Driver) Close() error {
	d.browserCancel()
	d.allocCancel()
	logger.LogComponentStop(d.opts.Logger, "chrome-driver", "closed")
	return nil
}

// run executes actions in the tab, bounded by the page timeout and by ctx.
func (d *Driver) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := d.opts.Limiter.Wait(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(d.browserCtx, d.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Collaborator(op, err)
	}
	d.logger.DebugWithFields("Browser actions done", map[string]interface{}{
		"op":       op,
		"duration": time.Since(start),
	})
	return nil
}

// visit makes sure the tab shows the page level depth was listed on.
func (d *Driver) visit(ctx context.Context, depth int) error {
	want := d.urls[depth]
	if depth == 0 && want == "" {
		want = d.opts.StartURL
	}
	if want == "" {
		return fmt.Errorf("level %s entered before its parent was selected", d.opts.Levels[depth])
	}

	var current string
	if err := d.run(ctx, "locate", chromedp.Location(&current)); err != nil {
		return err
	}
	if current == want && d.urls[depth] != "" {
		return nil
	}
	var landed string
	err := d.run(ctx, "navigate "+want,
		chromedp.Navigate(want),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&landed),
	)
	if err != nil {
		return err
	}
	d.urls[depth] = landed
	return nil
}

func (d *Driver) Enumerate(ctx context.Context, level string) ([]string, error) {
	depth, err := d.opts.Depth(level)
	if err != nil {
		return nil, err
	}
	if err := d.visit(ctx, depth); err != nil {
		return nil, err
	}

	var items []string
	sel := d.opts.Selector(driver.ItemsKey(level))
	if err := d.run(ctx, "enumerate "+level, chromedp.Evaluate(listScript(sel), &items)); err != nil {
		return nil, err
	}
	return items, nil
}

func (d *Driver) Select(ctx context.Context, level, item string) error {
	depth, err := d.opts.Depth(level)
	if err != nil {
		return err
	}
	if err := d.visit(ctx, depth); err != nil {
		return err
	}

	var clicked bool
	sel := d.opts.Selector(driver.ItemsKey(level))
	if err := d.run(ctx, "select "+item, chromedp.Evaluate(clickScript(sel, item), &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%s %q not found", level, item)
	}

	var landed string
	err = d.run(ctx, "wait after "+item,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.WaitVisible(d.waitSelector(depth+1), chromedp.ByQuery),
		chromedp.Location(&landed),
	)
	if err != nil {
		return err
	}
	d.urls[depth+1] = landed
	for i := depth + 2; i < len(d.urls); i++ {
		d.urls[i] = ""
	}
	return nil
}

// waitSelector is what must be visible once the page for depth has loaded.
func (d *Driver) waitSelector(depth int) string {
	if depth < len(d.opts.Levels) {
		return d.opts.Selector(driver.ItemsKey(d.opts.Levels[depth]))
	}
	return d.opts.Selector(driver.ProductKey)
}

func (d *Driver) ScrapeLeaf(ctx context.Context) ([]record.Record, error) {
	if err := d.visit(ctx, len(d.opts.Levels)); err != nil {
		return nil, err
	}

	script := extractScript(d.opts.Selector(driver.ProductKey), d.fieldSelectors(), d.opts.Selector(driver.BreadcrumbKey))
	next, _ := driver.SplitAttr(d.opts.Selector(driver.NextKey))

	var out []record.Record
	for n := 1; ; n++ {
		var rows []map[string]string
		if err := d.run(ctx, "extract products", chromedp.Evaluate(script, &rows)); err != nil {
			return nil, err
		}
		out = append(out, toRecords(rows)...)

		if n >= d.opts.MaxPages || next == "" {
			break
		}
		var clicked bool
		if err := d.run(ctx, "next page", chromedp.Evaluate(clickFirstScript(next), &clicked)); err != nil {
			return nil, err
		}
		if !clicked {
			break
		}
		if err := d.run(ctx, "wait next page",
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.WaitVisible(d.opts.Selector(driver.ProductKey), chromedp.ByQuery),
		); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Driver) fieldSelectors() map[string]string {
	out := make(map[string]string, len(d.opts.Fields))
	for _, f := range d.opts.Fields {
		if sel := d.opts.Selector(driver.FieldKey(f)); sel != "" {
			out[f] = sel
		}
	}
	return out
}

// toRecords keeps non-blank values and collapses whitespace.
func toRecords(rows []map[string]string) []record.Record {
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(record.Record, len(row))
		for k, v := range row {
			if v = driver.CleanText(v); v != "" {
				rec[k] = v
			}
		}
		out = append(out, rec)
	}
	return out
}
