package record

import (
	"sort"
	"strings"

	"pricecrawl/pkg/logger"
)

// Record is one scraped observation: a flat mapping of field name to value.
// Field order is not significant and absent fields are simply omitted.
type Record map[string]string

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Missing returns the fields from required that are absent or blank.
func (r Record) Missing(required []string) []string {
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(r[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Option configures a Sink or a Cursor.
type Option func(*options)

type options struct {
	continuation bool
	logger       logger.Logger
}

// WithContinuation makes a Cursor read the base file followed by every
// timestamped sibling produced by NextPath. It has no effect on a Sink.
func WithContinuation() Option {
	return func(o *options) { o.continuation = true }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logger.OrDefault(o.logger)
	return o
}
