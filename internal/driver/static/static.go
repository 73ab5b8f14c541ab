// Package static is a PageDriver for sites that render their menus and
// product grids server side. Pages are fetched with colly and queried with
// goquery; selecting an item follows its link.
package static

import (
	"context"
	"fmt"
	"net"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"pricecrawl/internal/driver"
	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/record"
)

type page struct {
	url string
	doc *goquery.Selection
}

// Driver keeps one page per level: pages[0] is the start page and
// pages[i+1] is the page reached by the item selected at level i.
type Driver struct {
	opts      driver.Options
	collector *colly.Collector
	logger    logger.Logger

	pages []*page

	// set by the collector callbacks during fetch
	fetched  *page
	fetchErr error
}

// New builds a driver. Nothing is fetched until the first Enumerate.
func New(opts driver.Options) (*Driver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.Defaults()

	d := &Driver{
		opts:   opts,
		logger: opts.Logger.WithField("component", "static-driver"),
		pages:  make([]*page, len(opts.Levels)+1),
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	c.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.Timeout}).DialContext,
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		d.fetched = &page{url: e.Request.URL.String(), doc: e.DOM}
	})
	c.OnError(func(r *colly.Response, err error) {
		d.fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})
	d.collector = c

	logger.LogComponentStart(opts.Logger, "static-driver", map[string]interface{}{
		"start_url": opts.StartURL,
		"levels":    opts.Levels,
		"max_pages": opts.MaxPages,
	})
	return d, nil
}

// Close releases nothing; colly holds no session.
func (d *Driver) Close() error {
	logger.LogComponentStop(d.opts.Logger, "static-driver", "closed")
	return nil
}

func (d *Driver) Enumerate(ctx context.Context, level string) ([]string, error) {
	depth, err := d.opts.Depth(level)
	if err != nil {
		return nil, err
	}
	p, err := d.page(ctx, depth)
	if err != nil {
		return nil, err
	}

	var items []string
	seen := make(map[string]bool)
	p.doc.Find(d.opts.Selector(driver.ItemsKey(level))).Each(func(_ int, s *goquery.Selection) {
		name := driver.CleanText(s.Text())
		if name != "" && !seen[name] {
			seen[name] = true
			items = append(items, name)
		}
	})
	d.logger.DebugWithFields("Enumerated items", map[string]interface{}{
		"level": level,
		"url":   p.url,
		"count": len(items),
	})
	return items, nil
}

func (d *Driver) Select(ctx context.Context, level, item string) error {
	depth, err := d.opts.Depth(level)
	if err != nil {
		return err
	}
	p, err := d.page(ctx, depth)
	if err != nil {
		return err
	}

	var href string
	p.doc.Find(d.opts.Selector(driver.ItemsKey(level))).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if driver.CleanText(s.Text()) != item {
			return true
		}
		href = linkOf(s)
		return false
	})
	if href == "" {
		return fmt.Errorf("no link for %s %q on %s", level, item, p.url)
	}

	next, err := d.fetch(ctx, resolve(p.url, href))
	if err != nil {
		return err
	}
	d.pages[depth+1] = next
	for i := depth + 2; i < len(d.pages); i++ {
		d.pages[i] = nil
	}
	return nil
}

func (d *Driver) ScrapeLeaf(ctx context.Context) ([]record.Record, error) {
	p := d.pages[len(d.opts.Levels)]
	if p == nil {
		return nil, fmt.Errorf("no leaf page selected")
	}

	var out []record.Record
	for n := 1; ; n++ {
		out = append(out, d.extract(p)...)

		if n >= d.opts.MaxPages {
			break
		}
		css, _ := driver.SplitAttr(d.opts.Selector(driver.NextKey))
		if css == "" {
			break
		}
		href := linkOf(p.doc.Find(css).First())
		if href == "" {
			break
		}
		next, err := d.fetch(ctx, resolve(p.url, href))
		if err != nil {
			return nil, err
		}
		p = next
	}
	return out, nil
}

// extract reads one record per product element on p.
func (d *Driver) extract(p *page) []record.Record {
	path := d.breadcrumb(p)

	var out []record.Record
	p.doc.Find(d.opts.Selector(driver.ProductKey)).Each(func(_ int, s *goquery.Selection) {
		rec := make(record.Record)
		for _, field := range d.opts.Fields {
			sel := d.opts.Selector(driver.FieldKey(field))
			if sel == "" {
				continue
			}
			if v := value(s, sel); v != "" {
				rec[field] = v
			}
		}
		if path != "" && rec[driver.PathField] == "" {
			rec[driver.PathField] = path
		}
		out = append(out, rec)
	})
	return out
}

func (d *Driver) breadcrumb(p *page) string {
	css := d.opts.Selector(driver.BreadcrumbKey)
	if css == "" {
		return ""
	}
	var parts []string
	p.doc.Find(css).Each(func(_ int, s *goquery.Selection) {
		if t := driver.CleanText(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, driver.PathSeparator)
}

// page returns the page for depth, fetching the start page on first use.
func (d *Driver) page(ctx context.Context, depth int) (*page, error) {
	if p := d.pages[depth]; p != nil {
		return p, nil
	}
	if depth > 0 {
		return nil, fmt.Errorf("level %s entered before its parent was selected", d.opts.Levels[depth])
	}
	p, err := d.fetch(ctx, d.opts.StartURL)
	if err != nil {
		return nil, err
	}
	d.pages[0] = p
	return p, nil
}

func (d *Driver) fetch(ctx context.Context, target string) (*page, error) {
	if err := d.opts.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	d.fetched, d.fetchErr = nil, nil
	err := d.collector.Visit(target)
	if d.fetchErr != nil {
		err = d.fetchErr
	}
	if err != nil {
		return nil, errs.Collaborator("fetch "+target, err)
	}
	if d.fetched == nil {
		return nil, errs.Collaborator("fetch "+target, fmt.Errorf("response is not an HTML document"))
	}

	d.logger.DebugWithFields("Fetched page", map[string]interface{}{
		"url":      target,
		"duration": time.Since(start),
	})
	return d.fetched, nil
}

// linkOf returns the href of s, or of its first descendant link.
func linkOf(s *goquery.Selection) string {
	if href, ok := s.Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	href, _ := s.Find("a[href]").First().Attr("href")
	return strings.TrimSpace(href)
}

func value(s *goquery.Selection, selector string) string {
	css, attr := driver.SplitAttr(selector)
	target := s
	if css != "" {
		target = s.Find(css).First()
	}
	if attr != "" {
		v, _ := target.Attr(attr)
		return strings.TrimSpace(v)
	}
	return driver.CleanText(target.Text())
}

func resolve(base, ref string) string {
	b, err := neturl.Parse(base)
	if err != nil {
		return ref
	}
	r, err := neturl.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
