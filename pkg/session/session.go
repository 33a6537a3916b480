// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session runs operations in the background on behalf of a user
// interface and keeps the device registry in step with their results.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/open-source-firmware/sedmgr/pkg/operation"
	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/watchdog"
)

const DefaultTimeout = 10 * time.Second

// DefaultTimeouts holds the operations that need longer than DefaultTimeout.
var DefaultTimeouts = map[operation.Op]time.Duration{
	operation.OpRevertNoErase: 30 * time.Second,
	operation.OpLoadPBA:       300 * time.Second,
}

type EventKind int

const (
	// EventCompleted is sent once when an operation finishes within its
	// timeout. Any mutation has been applied to the registry.
	EventCompleted EventKind = iota
	// EventTimedOut is sent when the timeout elapses while the operation
	// is still running. It is not a failure.
	EventTimedOut
	// EventLateCompletion replaces EventCompleted for an operation that
	// finished after EventTimedOut was sent.
	EventLateCompletion
)

func (k EventKind) String() string {
	switch k {
	case EventCompleted:
		return "completed"
	case EventTimedOut:
		return "timed-out"
	case EventLateCompletion:
		return "late-completion"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

type Event struct {
	Kind    EventKind
	Op      operation.Op
	Index   int
	Elapsed time.Duration
	// Result is nil for EventTimedOut.
	Result *operation.Result
	// Transitions lists the index set changes made by the result.
	Transitions []registry.Transition
	// ApplyErr is set when the result could not be applied to the
	// registry.
	ApplyErr error
}

// Handle follows one submitted operation.
type Handle struct {
	done   chan struct{}
	result *operation.Result

	mu       sync.Mutex
	finished bool
	timedOut bool
	// emit orders callbacks. It is taken while holding mu, never the
	// other way round.
	emit sync.Mutex
}

// Done is closed after the final event has been delivered.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the operation finished and returns its result.
func (h *Handle) Wait() *operation.Result {
	<-h.done
	return h.result
}

// TimedOut reports whether a timeout event was sent for the operation.
func (h *Handle) TimedOut() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timedOut
}

type Session struct {
	reg      *registry.Registry
	engine   *operation.Engine
	timeouts map[operation.Op]time.Duration
	interval time.Duration
	clock    watchdog.Clock
	metrics  *Metrics
	rescan   func(*registry.Registry) error
	log      *zap.Logger
}

type Opt func(s *Session)

// WithTimeout overrides the timeout of one operation.
func WithTimeout(op operation.Op, d time.Duration) Opt {
	return func(s *Session) { s.timeouts[op] = d }
}

// WithDefaultTimeout sets the timeout of every operation not given its own.
func WithDefaultTimeout(d time.Duration) Opt {
	return func(s *Session) {
		for _, op := range operation.AllOps() {
			if _, ok := DefaultTimeouts[op]; !ok {
				s.timeouts[op] = d
			}
		}
	}
}

func WithPollInterval(d time.Duration) Opt {
	return func(s *Session) { s.interval = d }
}

func WithClock(c watchdog.Clock) Opt {
	return func(s *Session) { s.clock = c }
}

func WithMetrics(m *Metrics) Opt {
	return func(s *Session) { s.metrics = m }
}

// WithRescan sets the function called to rebuild the registry when a
// result no longer matches the device it was computed for.
func WithRescan(f func(*registry.Registry) error) Opt {
	return func(s *Session) { s.rescan = f }
}

func WithLogger(l *zap.Logger) Opt {
	return func(s *Session) { s.log = l }
}

func New(reg *registry.Registry, engine *operation.Engine, opts ...Opt) *Session {
	s := &Session{
		reg:      reg,
		engine:   engine,
		timeouts: map[operation.Op]time.Duration{},
		interval: watchdog.DefaultInterval,
		clock:    watchdog.RealClock{},
		log:      zap.NewNop(),
	}
	for _, op := range operation.AllOps() {
		s.timeouts[op] = DefaultTimeout
	}
	for op, d := range DefaultTimeouts {
		s.timeouts[op] = d
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) Registry() *registry.Registry {
	return s.reg
}

func (s *Session) Timeout(op operation.Op) time.Duration {
	return s.timeouts[op]
}

// Resolve maps a position in the operation's index set to a registry
// index.
func (s *Session) Resolve(op operation.Op, position int) (int, error) {
	return s.reg.Resolve(op.Set(), position)
}

// Submit starts req in the background and returns at once. cb receives
// EventCompleted, or EventTimedOut followed by EventLateCompletion. Events
// for one operation are delivered in order from the session's goroutines.
//
// Operations on the same device must not overlap; the caller is expected
// to wait for the final event before submitting the next one.
func (s *Session) Submit(req operation.Request, cb func(Event)) *Handle {
	if cb == nil {
		cb = func(Event) {}
	}
	h := &Handle{done: make(chan struct{})}
	executed := make(chan struct{})
	log := s.log.With(zap.Stringer("op", req.Op), zap.Int("index", req.Index))
	start := s.clock.Now()

	go func() {
		res := s.execute(req)
		elapsed := s.clock.Now().Sub(start)
		s.metrics.observe(res, elapsed.Seconds())

		ev := Event{Kind: EventCompleted, Op: req.Op, Index: req.Index, Elapsed: elapsed, Result: res}
		if res.Mutation != nil {
			ev.Transitions, ev.ApplyErr = s.apply(*res.Mutation)
		}

		h.mu.Lock()
		h.finished = true
		if h.timedOut {
			ev.Kind = EventLateCompletion
		}
		h.result = res
		h.mu.Unlock()
		close(executed)

		h.emit.Lock()
		cb(ev)
		h.emit.Unlock()

		log.Debug("operation finished", zap.Stringer("event", ev.Kind), zap.Duration("elapsed", elapsed))
		close(h.done)
	}()

	go func() {
		wd := watchdog.Watchdog{Max: s.timeouts[req.Op], Interval: s.interval, Clock: s.clock}
		rep := wd.Watch(executed)
		if !rep.TimedOut {
			return
		}
		h.mu.Lock()
		if h.finished {
			h.mu.Unlock()
			return
		}
		h.timedOut = true
		h.emit.Lock()
		h.mu.Unlock()

		s.metrics.timedOut(req.Op)
		log.Warn("operation still running after timeout", zap.Duration("elapsed", rep.Elapsed))
		cb(Event{Kind: EventTimedOut, Op: req.Op, Index: req.Index, Elapsed: rep.Elapsed})
		h.emit.Unlock()
	}()

	return h
}

func (s *Session) execute(req operation.Request) *operation.Result {
	dev, err := s.reg.Device(req.Index)
	if err != nil {
		return &operation.Result{Op: req.Op, Index: req.Index, Err: err}
	}
	return s.engine.Execute(req, dev)
}

// apply reconciles a mutation with the registry. A stale mutation
// triggers a rescan when one is configured.
func (s *Session) apply(m registry.Mutation) ([]registry.Transition, error) {
	ts, err := s.reg.Apply(m)
	if err == nil {
		return ts, nil
	}
	s.log.Warn("registry update failed", zap.Stringer("mutation", m), zap.Error(err))
	if errors.Is(err, registry.ErrStale) && s.rescan != nil {
		if rerr := s.rescan(s.reg); rerr != nil {
			return nil, fmt.Errorf("rescan after stale update failed: %w", rerr)
		}
	}
	return nil, err
}

// Run submits req and waits for its result.
func (s *Session) Run(req operation.Request, cb func(Event)) *operation.Result {
	return s.Submit(req, cb).Wait()
}
