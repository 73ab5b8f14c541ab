// Package driver holds what the page drivers share: the selector keys they
// look up in a config.Store and the options they are built from.
//
// Selector keys:
//
//	<level>.items      elements naming the items of a level; their text is the item
//	leaf.product       one element per product on a leaf page
//	leaf.next          link to the next leaf page, optional
//	leaf.breadcrumb    breadcrumb entries joined into category_path, optional
//	field.<name>       value of a record field inside a product element
//
// A field selector may end in @attr to read an attribute instead of text.
package driver

import (
	"fmt"
	"strings"
	"time"

	"pricecrawl/pkg/config"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/ratelimit"
)

const (
	ProductKey    = "leaf.product"
	NextKey       = "leaf.next"
	BreadcrumbKey = "leaf.breadcrumb"

	// PathField receives the joined breadcrumb.
	PathField = "category_path"
	// PathSeparator joins breadcrumb entries.
	PathSeparator = " > "
)

// ItemsKey is the selector key for the items of level.
func ItemsKey(level string) string {
	return level + ".items"
}

// FieldKey is the selector key for a record field.
func FieldKey(field string) string {
	return "field." + field
}

// SplitAttr splits "css@attr" into its parts. attr is empty for plain selectors
// and css is empty for "@attr", which reads the product element itself.
func SplitAttr(selector string) (css, attr string) {
	if i := strings.LastIndex(selector, "@"); i >= 0 {
		return strings.TrimSpace(selector[:i]), strings.TrimSpace(selector[i+1:])
	}
	return strings.TrimSpace(selector), ""
}

// CleanText collapses runs of whitespace and trims the ends.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Options configures a page driver.
type Options struct {
	Store     config.Store
	StartURL  string
	Levels    []string
	Fields    []string
	MaxPages  int
	UserAgent string
	Timeout   time.Duration
	Limiter   ratelimit.Limiter
	Logger    logger.Logger
}

// Validate checks that every selector the levels need is configured.
func (o *Options) Validate() error {
	if o.Store == nil {
		return fmt.Errorf("driver: selector store is required")
	}
	if o.StartURL == "" {
		return fmt.Errorf("driver: start URL is required")
	}
	if len(o.Levels) == 0 {
		return fmt.Errorf("driver: at least one level is required")
	}
	for _, lvl := range o.Levels {
		if _, err := config.Require(o.Store, ItemsKey(lvl)); err != nil {
			return err
		}
	}
	_, err := config.Require(o.Store, ProductKey)
	return err
}

// Defaults fills unset options.
func (o *Options) Defaults() {
	if o.MaxPages <= 0 {
		o.MaxPages = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Limiter == nil {
		o.Limiter = ratelimit.Unlimited{}
	}
	o.Logger = logger.OrDefault(o.Logger)
}

// Depth returns the index of level in o.Levels.
func (o *Options) Depth(level string) (int, error) {
	for i, l := range o.Levels {
		if l == level {
			return i, nil
		}
	}
	return 0, fmt.Errorf("driver: unknown level %q", level)
}

// Selector returns the configured selector for key, or "" when absent.
func (o *Options) Selector(key string) string {
	v, _ := o.Store.Property(key)
	return v
}
