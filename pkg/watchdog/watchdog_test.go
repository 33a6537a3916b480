// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package watchdog

import (
	"testing"
	"time"
)

var epoch = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// closingClock closes done once the virtual time reaches at.
type closingClock struct {
	*VirtualClock
	start time.Time
	at    time.Duration
	done  chan struct{}
}

func (c *closingClock) Sleep(d time.Duration) {
	c.VirtualClock.Sleep(d)
	if c.Now().Sub(c.start) >= c.at && c.done != nil {
		close(c.done)
		c.done = nil
	}
}

func TestWatchTimeout(t *testing.T) {
	tests := []struct {
		name     string
		max      time.Duration
		interval time.Duration
	}{
		{"whole seconds", 10 * time.Second, time.Second},
		{"coarse interval", 10 * time.Second, 3 * time.Second},
		{"long operation", 300 * time.Second, time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := Watchdog{Max: tc.max, Interval: tc.interval, Clock: NewVirtualClock(epoch)}
			rep := w.Watch(make(chan struct{}))
			if !rep.TimedOut {
				t.Fatal("Expected a timeout")
			}
			if rep.Elapsed < tc.max || rep.Elapsed >= tc.max+tc.interval {
				t.Errorf("Timed out after %v, want within [%v, %v)", rep.Elapsed, tc.max, tc.max+tc.interval)
			}
		})
	}
}

func TestWatchCompletion(t *testing.T) {
	done := make(chan struct{})
	clock := &closingClock{VirtualClock: NewVirtualClock(epoch), start: epoch, at: 4 * time.Second, done: done}
	w := Watchdog{Max: 10 * time.Second, Interval: time.Second, Clock: clock}
	rep := w.Watch(done)
	if rep.TimedOut {
		t.Fatal("Completed work reported as timed out")
	}
	if rep.Elapsed != 4*time.Second {
		t.Errorf("Elapsed %v, want 4s", rep.Elapsed)
	}
}

func TestWatchCompletionWinsAtDeadline(t *testing.T) {
	done := make(chan struct{})
	clock := &closingClock{VirtualClock: NewVirtualClock(epoch), start: epoch, at: 10 * time.Second, done: done}
	w := Watchdog{Max: 10 * time.Second, Interval: time.Second, Clock: clock}
	if rep := w.Watch(done); rep.TimedOut {
		t.Error("Completion at the deadline reported as timed out")
	}
}

func TestWatchAlreadyDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	rep := Watchdog{Max: time.Second, Clock: NewVirtualClock(epoch)}.Watch(done)
	if rep.TimedOut || rep.Elapsed != 0 {
		t.Errorf("Unexpected report %+v", rep)
	}
}

func TestWatchRealClock(t *testing.T) {
	done := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(done)
	}()
	rep := Watchdog{Max: time.Minute, Interval: time.Millisecond}.Watch(done)
	if rep.TimedOut {
		t.Error("Expected completion before the timeout")
	}
}
