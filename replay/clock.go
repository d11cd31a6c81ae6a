package replay

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrExhausted = errors.New("replay exhausted")
	ErrSeekRange = errors.New("seek index out of range")
)

// DefaultInterval is the playback cadence when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Clock owns the replay cursor and the playback schedule. Ticks are fired
// from a single goroutine per schedule. Every schedule change bumps the
// generation so the receiver can drop a tick that was already in flight.
type Clock struct {
	mu       sync.Mutex
	cursor   int
	total    int
	interval time.Duration
	playing  bool
	gen      uint64
	stop     chan struct{}
	fire     func(gen uint64)
}

// NewClock positions the cursor at cursor, clamped into [0,total).
func NewClock(total, cursor int, interval time.Duration) *Clock {
	c := &Clock{interval: DefaultInterval}
	if interval > 0 {
		c.interval = interval
	}
	c.reset(total, cursor)
	return c
}

// Reset stops playback and repositions the clock for new data.
func (c *Clock) Reset(total, cursor int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
	c.reset(total, cursor)
}

func (c *Clock) reset(total, cursor int) {
	if total < 0 {
		total = 0
	}
	c.total = total
	c.cursor = max(0, min(cursor, total-1))
}

func (c *Clock) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *Clock) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Clock) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// AtEnd reports whether the cursor sits on the final bar.
func (c *Clock) AtEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor >= c.total-1
}

// Advance moves the cursor forward one bar. On the final bar it stops
// playback and returns ErrExhausted.
func (c *Clock) Advance() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor >= c.total-1 {
		c.haltLocked()
		return c.cursor, ErrExhausted
	}
	c.cursor++
	return c.cursor, nil
}

// Start begins firing ticks every interval. It returns false without
// scheduling anything when the cursor is already on the final bar.
func (c *Clock) Start(fire func(gen uint64)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor >= c.total-1 {
		return false
	}
	c.fire = fire
	if !c.playing {
		c.scheduleLocked()
	}
	return true
}

// Pause stops the schedule. The cursor is kept.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
}

// SetSpeed changes the cadence and restarts a running schedule.
func (c *Clock) SetSpeed(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("replay interval must be positive, got %s", d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
	if c.playing {
		c.haltLocked()
		c.scheduleLocked()
	}
	return nil
}

// Seek jumps the cursor. Bars in between are skipped, not replayed.
func (c *Clock) Seek(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= c.total {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrSeekRange, i, c.total)
	}
	c.cursor = i
	if c.playing {
		c.haltLocked()
		c.scheduleLocked()
	}
	return nil
}

// Current reports whether gen belongs to the running schedule.
func (c *Clock) Current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && gen == c.gen
}

func (c *Clock) scheduleLocked() {
	c.gen++
	c.playing = true
	c.stop = make(chan struct{})
	go run(c.gen, c.interval, c.stop, c.fire)
}

func (c *Clock) haltLocked() {
	if c.playing {
		close(c.stop)
		c.playing = false
	}
	c.gen++
}

func run(gen uint64, every time.Duration, stop <-chan struct{}, fire func(uint64)) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			select {
			case <-stop:
				return
			default:
			}
			fire(gen)
		}
	}
}
