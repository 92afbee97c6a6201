package engine

import (
	"errors"
	"sync"
	"time"
)

// ErrClockArmed is returned when Arm is called on a clock that is still counting down.
var ErrClockArmed = errors.New("clock already armed")

// Clock counts down one question. Ticks and expiry are delivered on the clock's own goroutine;
// Disarm never waits for an in-flight callback, so it is safe to call while holding a lock the
// callback also takes.
type Clock interface {
	Arm(seconds int, onTick func(remaining int), onExpire func()) error
	Disarm()
	Armed() bool
}

// TickerClock is a wall-clock Clock backed by time.Ticker.
type TickerClock struct {
	period time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

// NewTickerClock returns a clock ticking once per second.
func NewTickerClock() *TickerClock {
	return &TickerClock{period: time.Second}
}

func (c *TickerClock) Arm(seconds int, onTick func(int), onExpire func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return ErrClockArmed
	}
	stop := make(chan struct{})
	c.stop = stop
	go c.run(stop, seconds, onTick, onExpire)
	return nil
}

func (c *TickerClock) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *TickerClock) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *TickerClock) run(stop chan struct{}, seconds int, onTick func(int), onExpire func()) {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	remaining := seconds
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			remaining--
			if remaining > 0 {
				onTick(remaining)
				continue
			}
			c.mu.Lock()
			current := c.stop == stop
			if current {
				c.stop = nil
			}
			c.mu.Unlock()
			if current {
				onExpire()
			}
			return
		}
	}
}

// ManualClock is a Clock driven by explicit Tick calls. Callbacks run on the caller's goroutine.
type ManualClock struct {
	mu        sync.Mutex
	armed     bool
	remaining int
	onTick    func(int)
	onExpire  func()
	arms      int
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Arm(seconds int, onTick func(int), onExpire func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armed {
		return ErrClockArmed
	}
	c.armed = true
	c.remaining = seconds
	c.onTick = onTick
	c.onExpire = onExpire
	c.arms++
	return nil
}

func (c *ManualClock) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
	c.onTick, c.onExpire = nil, nil
}

func (c *ManualClock) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Arms reports how many times the clock has been armed.
func (c *ManualClock) Arms() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arms
}

// Remaining reports the seconds left on the current countdown.
func (c *ManualClock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Tick advances the countdown by n seconds, firing tick or expiry callbacks.
func (c *ManualClock) Tick(n int) {
	for i := 0; i < n; i++ {
		c.mu.Lock()
		if !c.armed {
			c.mu.Unlock()
			return
		}
		c.remaining--
		remaining := c.remaining
		onTick, onExpire := c.onTick, c.onExpire
		if remaining <= 0 {
			c.armed = false
			c.onTick, c.onExpire = nil, nil
		}
		c.mu.Unlock()

		if remaining > 0 {
			onTick(remaining)
			continue
		}
		onExpire()
		return
	}
}

// Expire runs the countdown to zero.
func (c *ManualClock) Expire() {
	c.Tick(c.Remaining())
}
