package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestNoLimitNeverExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	d := New(WithClock(clock.Now))
	d.Start(0, 0)

	clock.Advance(1000 * time.Hour)
	assert.False(t, d.HasLimit())
	assert.False(t, d.Expired())
	assert.Equal(t, time.Duration(-1), d.Remaining())
	assert.True(t, d.End().IsZero())
}

func TestUnstartedHasNoLimit(t *testing.T) {
	d := New()
	assert.False(t, d.Started())
	assert.False(t, d.HasLimit())
	assert.False(t, d.Expired())
}

func TestExpiry(t *testing.T) {
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	d := New(WithClock(clock.Now))
	d.Start(1, 30)

	assert.True(t, d.HasLimit())
	assert.Equal(t, start.Add(90*time.Minute), d.End())

	clock.Advance(90 * time.Minute)
	assert.False(t, d.Expired(), "expiry requires now to be strictly after the end")
	assert.Equal(t, time.Duration(0), d.Remaining())

	clock.Advance(time.Second)
	assert.True(t, d.Expired())
}

func TestFirstStartWins(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	d := New(WithClock(clock.Now))
	d.Start(0, 10)
	end := d.End()

	clock.Advance(5 * time.Minute)
	d.Start(5, 0)
	assert.Equal(t, end, d.End())
	assert.Equal(t, 5*time.Minute, d.Remaining())
}

func TestMinutesCarryIntoHours(t *testing.T) {
	tests := []struct {
		hours, minutes int
		want           time.Duration
	}{
		{0, 90, 90 * time.Minute},
		{1, 75, 2*time.Hour + 15*time.Minute},
		{2, 0, 2 * time.Hour},
		{0, 1, time.Minute},
	}

	for _, tt := range tests {
		clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		d := New(WithClock(clock.Now))
		d.Start(tt.hours, tt.minutes)
		assert.Equal(t, tt.want, d.End().Sub(clock.t), "hours=%d minutes=%d", tt.hours, tt.minutes)
	}
}
