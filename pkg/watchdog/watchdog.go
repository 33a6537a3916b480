// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package watchdog tracks how long a running operation has been alive.
//
// A watchdog only observes. It has no way to stop the work it watches, and
// a timeout report means the work is still running, not that it failed.
package watchdog

import (
	"runtime"
	"sync"
	"time"
)

const DefaultInterval = time.Second

// Clock is the time source of a Watchdog.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// VirtualClock advances only when slept on. Sleep returns immediately.
type VirtualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	runtime.Gosched()
}

type Watchdog struct {
	// Max is how long the work may run before it is reported as timed out.
	Max      time.Duration
	Interval time.Duration
	Clock    Clock
}

type Report struct {
	TimedOut bool
	Elapsed  time.Duration
}

// Watch polls done every Interval until it is closed or Max has elapsed.
// Completion observed at a poll wins over a timeout reached at the same
// poll.
func (w Watchdog) Watch(done <-chan struct{}) Report {
	clock := w.Clock
	if clock == nil {
		clock = RealClock{}
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := clock.Now()
	for {
		elapsed := clock.Now().Sub(start)
		select {
		case <-done:
			return Report{Elapsed: elapsed}
		default:
		}
		if elapsed >= w.Max {
			return Report{TimedOut: true, Elapsed: elapsed}
		}
		clock.Sleep(interval)
	}
}
