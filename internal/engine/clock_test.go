package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerClockExpires(t *testing.T) {
	c := &TickerClock{period: 5 * time.Millisecond}
	var ticks int32
	expired := make(chan struct{})

	if err := c.Arm(3, func(int) { atomic.AddInt32(&ticks, 1) }, func() { close(expired) }); err != nil {
		t.Fatalf("arm: %v", err)
	}
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatalf("clock never expired")
	}
	if got := atomic.LoadInt32(&ticks); got != 2 {
		t.Fatalf("expected 2 ticks before expiry, got %d", got)
	}
	if c.Armed() {
		t.Fatalf("expired clock should report disarmed")
	}
}

func TestTickerClockRejectsDoubleArm(t *testing.T) {
	c := &TickerClock{period: time.Hour}
	noop := func() {}
	if err := c.Arm(10, func(int) {}, noop); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if err := c.Arm(10, func(int) {}, noop); !errors.Is(err, ErrClockArmed) {
		t.Fatalf("expected ErrClockArmed, got %v", err)
	}
	c.Disarm()
	c.Disarm()
	if err := c.Arm(10, func(int) {}, noop); err != nil {
		t.Fatalf("rearm after disarm: %v", err)
	}
	c.Disarm()
}

func TestTickerClockDisarmStopsExpiry(t *testing.T) {
	c := &TickerClock{period: 5 * time.Millisecond}
	var fired int32
	if err := c.Arm(2, func(int) {}, func() { atomic.StoreInt32(&fired, 1) }); err != nil {
		t.Fatalf("arm: %v", err)
	}
	c.Disarm()
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("disarmed clock must not expire")
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock()
	var last int
	expired := false
	if err := c.Arm(3, func(r int) { last = r }, func() { expired = true }); err != nil {
		t.Fatalf("arm: %v", err)
	}
	c.Tick(1)
	if last != 2 || expired {
		t.Fatalf("expected tick to 2, got %d expired=%v", last, expired)
	}
	c.Expire()
	if !expired || c.Armed() {
		t.Fatalf("expected expiry and disarm")
	}
}
