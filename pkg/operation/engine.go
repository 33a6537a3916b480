// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package operation sequences the tool invocations that move a drive from
// one security state to another.
package operation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/open-source-firmware/sedmgr/pkg/credential"
	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

const (
	// DefaultLockingRange is the global locking range.
	DefaultLockingRange = "0"
	// UserAuthority is the secondary identity enabled by SetUserCredential.
	UserAuthority  = "User1"
	AdminAuthority = "Admin1"
)

// Engine executes operations. It holds no per-device state and may run
// operations for different devices concurrently.
type Engine struct {
	runner       sedutil.Runner
	deriver      credential.Deriver
	denyList     *credential.DenyList
	lockingRange string
	now          func() time.Time
	log          *zap.Logger
}

type EngineOpt func(e *Engine)

func WithDeriver(d credential.Deriver) EngineOpt {
	return func(e *Engine) { e.deriver = d }
}

func WithDenyList(d *credential.DenyList) EngineOpt {
	return func(e *Engine) { e.denyList = d }
}

func WithLockingRange(r string) EngineOpt {
	return func(e *Engine) { e.lockingRange = r }
}

// WithClock sets the time source for audit timestamps.
func WithClock(now func() time.Time) EngineOpt {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *zap.Logger) EngineOpt {
	return func(e *Engine) { e.log = l }
}

func NewEngine(runner sedutil.Runner, opts ...EngineOpt) *Engine {
	e := &Engine{
		runner:       runner,
		deriver:      credential.Deriver{Scheme: credential.SchemeDTA},
		lockingRange: DefaultLockingRange,
		now:          time.Now,
		log:          zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs req against dev, which must be the registry entry at
// req.Index. Steps run in order and the first failing step ends the
// operation. The returned Result carries a mutation only on success.
func (e *Engine) Execute(req Request, dev registry.Device) *Result {
	r := &run{
		e:   e,
		op:  req.Op,
		dev: &dev,
		res: &Result{Op: req.Op, Index: req.Index, Device: dev.Path},
		log: e.log.With(zap.Stringer("op", req.Op), zap.String("device", dev.Path)),
	}

	var (
		m   *registry.Mutation
		err error
	)
	if state := dev.State(); !req.Op.Allowed(state) {
		err = r.fail(KindPrecondition, "", fmt.Sprintf("device is %s", state), nil)
	} else {
		m, err = r.dispatch(req)
	}
	if err != nil {
		r.res.Err = err
		r.log.Warn("operation failed", zap.String("kind", string(KindOf(err))), zap.Error(err))
		return r.res
	}
	if m != nil {
		m.Index, m.Path = req.Index, dev.Path
		r.res.Mutation = m
	}
	r.res.MessageKey = req.Op.MessageKey()
	r.log.Info("operation succeeded", zap.Int("steps", len(r.res.Steps)))
	return r.res
}

// run is the state of one Execute call.
type run struct {
	e   *Engine
	op  Op
	dev *registry.Device
	res *Result
	log *zap.Logger
}

func (r *run) dispatch(req Request) (*registry.Mutation, error) {
	switch req.Op {
	case OpInitialSetup:
		return r.initialSetup(req)
	case OpLock:
		return r.lock(req)
	case OpUnlockFull:
		return r.unlockFull(req)
	case OpUnlockPartial:
		return r.unlockPartial(req)
	case OpUnlockPreboot:
		return r.unlockPreboot(req)
	case OpChangeCredential:
		return r.changeCredential(req)
	case OpRevertWithCredential:
		return r.revertWithCredential(req)
	case OpRevertNoErase:
		return r.revertNoErase(req)
	case OpRevertWithPSID:
		return r.revertWithPSID(req)
	case OpSetUserCredential:
		return r.setUserCredential(req)
	case OpLoadPBA:
		return r.loadPBA(req)
	case OpReadPBAVersion:
		return r.readPBAVersion(req)
	case OpReadAuditLog:
		return r.readAuditLog(req)
	}
	return nil, r.fail(KindPrecondition, "", "unsupported operation", nil)
}

func (r *run) fail(kind Kind, step, msg string, cause error) error {
	return &Error{
		Kind:     kind,
		Op:       r.op,
		Step:     step,
		Statuses: r.res.Statuses(),
		Message:  msg,
		Cause:    cause,
	}
}

func (r *run) derive(passphrase string) credential.Credential {
	return r.e.deriver.Derive(passphrase, r.dev.Salt, r.dev.MSID)
}

func (r *run) validateNew(req Request) error {
	if err := credential.Validate(req.NewPassphrase, req.NewConfirm, r.e.denyList); err != nil {
		return r.fail(KindValidation, "", "new passphrase rejected", err)
	}
	return nil
}

// step runs one command. Authentication markers in the output take
// precedence over the exit status.
func (r *run) step(cmd sedutil.Command) (string, error) {
	flag := cmd.Flag()
	r.log.Debug("running step", zap.String("flag", flag))
	out, err := r.e.runner.Run(cmd)
	if err != nil {
		r.res.Steps = append(r.res.Steps, StepRecord{Flag: flag, ExitStatus: -1})
		return "", r.fail(KindStep, flag, "tool could not be run", err)
	}
	r.res.Steps = append(r.res.Steps, StepRecord{Flag: flag, ExitStatus: out.ExitStatus})

	auth := sedutil.ParseAuthOutcome(out.Output)
	switch {
	case auth.LockedOut:
		return out.Output, r.fail(KindLockedOut, flag, "authority locked out, power cycle the drive before retrying", nil)
	case auth.NotAuthorized:
		return out.Output, r.fail(KindAuthentication, flag, "password rejected", nil)
	case !out.OK():
		return out.Output, r.fail(KindStep, flag, fmt.Sprintf("exit status %d", out.ExitStatus), nil)
	}
	return out.Output, nil
}

// steps runs cmds in order, stopping at the first failure.
func (r *run) steps(cmds ...sedutil.Command) error {
	for _, c := range cmds {
		if _, err := r.step(c); err != nil {
			return err
		}
	}
	return nil
}

// audit appends an event to the drive's audit log. Failures are recorded
// but never fail the operation.
func (r *run) audit(c *credContext, code sedutil.EventCode) {
	cmd := c.iv.AuditWrite(sedutil.AuditEntryArg(code, r.e.now()), c.cred)
	rec := AuditRecord{Event: code}
	out, err := r.e.runner.Run(cmd)
	if err != nil {
		rec.ExitStatus, rec.Err = -1, err
	} else {
		rec.ExitStatus = out.ExitStatus
	}
	r.res.Audit = append(r.res.Audit, rec)
	if rec.ExitStatus != 0 {
		r.log.Warn("audit write failed", zap.Int("event", int(code)), zap.Int("status", rec.ExitStatus), zap.Error(err))
	}
}

// verifyReverted queries the drive and fails unless locking is disabled.
func (r *run) verifyReverted() error {
	out, err := r.step(sedutil.Query(r.dev.Elevate, r.dev.Path))
	if err != nil {
		return err
	}
	if !sedutil.ParseQuery(out).LockingDisabled {
		return r.fail(KindVerification, "query", "locking is still enabled after revert", nil)
	}
	return nil
}

func (r *run) lockSteps(c *credContext) error {
	rng := r.e.lockingRange
	err := r.steps(
		c.iv.EnableLockingRange(rng, c.cred),
		c.iv.SetLockingRange(rng, "LK", c.cred),
		c.iv.SetMBRDone(true, c.cred),
		c.iv.SetMBREnable(true, c.cred),
	)
	if err != nil {
		return err
	}
	r.audit(c, sedutil.EventLockingChanged)
	return nil
}

// fillPBAVersion reads the PBA version when the registry does not know it
// yet. A missing or unreadable version leaves m unchanged.
func (r *run) fillPBAVersion(c *credContext, m *registry.Mutation) *registry.Mutation {
	if r.dev.PBAVersion != sedutil.NotAvailable {
		return m
	}
	out, err := r.e.runner.Run(c.iv.PBAValid(c.cred))
	if err != nil || !out.OK() {
		r.log.Debug("PBA version not read", zap.Error(err))
		return m
	}
	v, err := sedutil.ParsePBAVersion(out.Output)
	if err != nil {
		r.log.Debug("PBA version not reported", zap.Error(err))
		return m
	}
	r.res.PBAVersion = v
	if m == nil {
		m = &registry.Mutation{}
	}
	m.PBAVersion = registry.StringPtr(v)
	return m
}

func revertedMutation() *registry.Mutation {
	return &registry.Mutation{
		Lock:       registry.LockPtr(registry.Unlocked),
		Setup:      registry.SetupPtr(registry.SetupNo),
		MBREnabled: registry.BoolPtr(false),
		PBAVersion: registry.StringPtr(sedutil.NotAvailable),
	}
}
