// Package deadline implements the time budget of a crawl session.
package deadline

import "time"

// Deadline is a once-computed cutoff. Nested levels may all call Start; only
// the first call counts.
type Deadline struct {
	now     func() time.Time
	started bool
	limit   time.Duration
	end     time.Time
}

// Option configures a Deadline.
type Option func(*Deadline)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Deadline) { d.now = now }
}

// New returns a Deadline that has not been started.
func New(opts ...Option) *Deadline {
	d := &Deadline{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start captures now + hours + minutes. Minutes beyond 59 carry into hours.
// Later calls are no-ops.
func (d *Deadline) Start(hours, minutes int) {
	if d.started {
		return
	}
	d.started = true

	hours += minutes / 60
	minutes %= 60
	d.limit = time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if d.limit > 0 {
		d.end = d.now().Add(d.limit)
	}
}

// Started reports whether Start has been called.
func (d *Deadline) Started() bool {
	return d.started
}

// HasLimit reports whether a non-zero duration was configured.
func (d *Deadline) HasLimit() bool {
	return d.limit > 0
}

// Expired reports whether a limit exists and the current time is past it.
func (d *Deadline) Expired() bool {
	return d.HasLimit() && d.now().After(d.end)
}

// Remaining returns the time left, zero once expired, or -1 when there is no limit.
func (d *Deadline) Remaining() time.Duration {
	if !d.HasLimit() {
		return -1
	}
	left := d.end.Sub(d.now())
	if left < 0 {
		return 0
	}
	return left
}

// End returns the cutoff, or the zero time when there is no limit.
func (d *Deadline) End() time.Time {
	return d.end
}
