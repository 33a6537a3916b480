// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package operation

import (
	"errors"

	"github.com/open-source-firmware/sedmgr/pkg/credential"
	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

func (r *run) initialSetup(req Request) (*registry.Mutation, error) {
	if err := r.validateNew(req); err != nil {
		return nil, err
	}
	c := newContext(r.dev, r.derive(req.NewPassphrase))

	out, err := r.step(sedutil.Query(r.dev.Elevate, r.dev.Path))
	if err != nil {
		return nil, err
	}
	facts := sedutil.ParseQuery(out)
	mbr := false
	switch {
	case facts.LockingDisabled:
		if _, err := r.step(c.iv.InitialSetup(c.cred)); err != nil {
			return nil, err
		}
		r.audit(c, sedutil.EventLogInitialized)
		r.audit(c, sedutil.EventSIDPasswordChanged)
		r.audit(c, sedutil.EventAdmin1PasswordSet)
		mbr = true
	case facts.MBRDisabled:
		// Locking SP already active but still owned by the MSID.
		if !c.factory() {
			err := r.steps(
				c.iv.SetSIDPassword(r.dev.MSID, c.cred),
				c.iv.SetAdmin1Password(r.dev.MSID, c.cred),
			)
			if err != nil {
				return nil, err
			}
		}
		r.audit(c, sedutil.EventSIDPasswordChanged)
		r.audit(c, sedutil.EventAdmin1PasswordSet)
	default:
		return nil, r.fail(KindPrecondition, "query", "locking is enabled and the shadow MBR is active", nil)
	}

	err = r.steps(
		c.iv.EnableLockingRange(r.e.lockingRange, c.cred),
		c.iv.SetMBRDone(true, c.cred),
	)
	if err != nil {
		return nil, err
	}

	m := &registry.Mutation{
		Setup:      registry.SetupPtr(registry.SetupYes),
		Lock:       registry.LockPtr(registry.Unlocked),
		MBREnabled: registry.BoolPtr(mbr),
	}
	if req.LockAfterSetup {
		if err := r.lockSteps(c); err != nil {
			return nil, err
		}
		m.Lock = registry.LockPtr(registry.Locked)
		m.MBREnabled = registry.BoolPtr(true)
	}
	return m, nil
}

func (r *run) lock(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	if err := r.lockSteps(c); err != nil {
		return nil, err
	}
	return r.fillPBAVersion(c, &registry.Mutation{
		Lock:       registry.LockPtr(registry.Locked),
		MBREnabled: registry.BoolPtr(true),
	}), nil
}

func (r *run) unlockFull(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	err := r.steps(
		c.iv.DisableLockingRange(r.e.lockingRange, c.cred),
		c.iv.SetMBREnable(false, c.cred),
	)
	if err != nil {
		return nil, err
	}
	if !c.factory() {
		err := r.steps(
			c.iv.SetSIDPassword(c.cred, r.dev.MSID),
			c.iv.SetAdmin1Password(c.cred, r.dev.MSID),
		)
		if err != nil {
			return nil, err
		}
	}
	// Ownership is back with the MSID.
	f := factoryContext(r.dev)
	r.audit(f, sedutil.EventLockingChanged)
	return r.fillPBAVersion(f, &registry.Mutation{
		Lock:       registry.LockPtr(registry.Unlocked),
		MBREnabled: registry.BoolPtr(false),
	}), nil
}

func (r *run) unlockPartial(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	if _, err := r.step(c.iv.DisableLockingRange(r.e.lockingRange, c.cred)); err != nil {
		return nil, err
	}
	r.audit(c, sedutil.EventLockingChanged)
	return &registry.Mutation{Lock: registry.LockPtr(registry.Unlocked)}, nil
}

func (r *run) unlockPreboot(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	err := r.steps(
		c.iv.SetMBRDone(true, c.cred),
		c.iv.SetLockingRange(r.e.lockingRange, "RW", c.cred),
	)
	if err != nil {
		return nil, err
	}
	r.audit(c, sedutil.EventLockingChanged)
	return &registry.Mutation{Lock: registry.LockPtr(registry.Unlocked)}, nil
}

func (r *run) changeCredential(req Request) (*registry.Mutation, error) {
	if err := r.validateNew(req); err != nil {
		return nil, err
	}
	old := newContext(r.dev, r.derive(req.Passphrase))
	next := newContext(r.dev, r.derive(req.NewPassphrase))
	err := r.steps(
		old.iv.SetSIDPassword(old.cred, next.cred),
		old.iv.SetAdmin1Password(old.cred, next.cred),
	)
	if err != nil {
		return nil, err
	}
	r.audit(next, sedutil.EventSIDPasswordChanged)
	r.audit(next, sedutil.EventAdmin1PasswordSet)
	return r.fillPBAVersion(next, nil), nil
}

func (r *run) revertWithCredential(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	r.audit(c, sedutil.EventRevertPasswordStart)
	if _, err := r.step(c.iv.RevertTPer(c.cred)); err != nil {
		r.audit(c, sedutil.EventRevertPasswordFailed)
		return nil, err
	}
	if err := r.verifyReverted(); err != nil {
		r.audit(c, sedutil.EventRevertPasswordFailed)
		return nil, err
	}
	if err := r.reactivate(); err != nil {
		return nil, err
	}
	f := factoryContext(r.dev)
	r.audit(f, sedutil.EventRevertedPassword)
	r.audit(f, sedutil.EventLockingSPActivated)
	return revertedMutation(), nil
}

func (r *run) revertNoErase(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	r.audit(c, sedutil.EventRevertNoEraseStarted)
	err := r.steps(
		c.iv.SetMBRDone(true, c.cred),
		c.iv.SetLockingRange(r.e.lockingRange, "RW", c.cred),
		c.iv.RevertNoErase(c.cred),
	)
	if err == nil {
		err = r.verifyReverted()
	}
	if err != nil {
		r.audit(c, sedutil.EventRevertNoEraseFailed)
		return nil, err
	}
	// The data survives but SID and Admin1 still hold the user's credential.
	if _, err := r.step(c.iv.RevertTPer(c.cred)); err != nil {
		return nil, err
	}
	if err := r.reactivate(); err != nil {
		return nil, err
	}
	f := factoryContext(r.dev)
	r.audit(f, sedutil.EventRevertedNoErase)
	r.audit(f, sedutil.EventLogInitialized)
	return revertedMutation(), nil
}

func (r *run) revertWithPSID(req Request) (*registry.Mutation, error) {
	if req.PSID == "" {
		return nil, r.fail(KindValidation, "", "PSID rejected", credential.ErrEmptyPSID)
	}
	p := psidContext(r.dev, req.PSID)
	if _, err := r.step(p.iv.RevertPSID(p.cred)); err != nil {
		return nil, err
	}
	if err := r.verifyReverted(); err != nil {
		return nil, err
	}
	if err := r.reactivate(); err != nil {
		return nil, err
	}
	f := factoryContext(r.dev)
	r.audit(f, sedutil.EventRevertedPSID)
	r.audit(f, sedutil.EventLockingSPActivated)
	r.audit(f, sedutil.EventLogInitialized)
	return revertedMutation(), nil
}

// reactivate activates the Locking SP again with the MSID after a revert.
func (r *run) reactivate() error {
	f := factoryContext(r.dev)
	_, err := r.step(f.iv.Activate(f.cred))
	return err
}

func (r *run) setUserCredential(req Request) (*registry.Mutation, error) {
	if err := r.validateNew(req); err != nil {
		return nil, err
	}
	c := newContext(r.dev, r.derive(req.Passphrase))
	user := string(r.derive(req.NewPassphrase))
	err := r.steps(
		c.iv.EnableUser(c.cred, UserAuthority),
		c.iv.EnableUserRead(c.cred, UserAuthority),
		c.iv.SetPassword(c.cred, UserAuthority, user),
	)
	if err != nil {
		return nil, err
	}
	r.audit(c, sedutil.EventUserEnabled)
	return nil, nil
}

func (r *run) pbaVersion(c *credContext) (string, error) {
	out, err := r.step(c.iv.PBAValid(c.cred))
	if err != nil {
		return "", err
	}
	v, err := sedutil.ParsePBAVersion(out)
	if err != nil {
		return "", r.fail(KindParse, "pbaValid", "PBA version not reported", err)
	}
	r.res.PBAVersion = v
	return v, nil
}

func (r *run) loadPBA(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	err := r.steps(
		c.iv.LoadPBAImage(c.cred),
		c.iv.SetMBREnable(true, c.cred),
	)
	if err != nil {
		return nil, err
	}
	v, err := r.pbaVersion(c)
	if err != nil {
		return nil, err
	}
	r.audit(c, sedutil.EventPBAUpdated)
	return &registry.Mutation{
		PBAVersion: registry.StringPtr(v),
		MBREnabled: registry.BoolPtr(true),
	}, nil
}

func (r *run) readPBAVersion(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	v, err := r.pbaVersion(c)
	if err != nil {
		return nil, err
	}
	return &registry.Mutation{PBAVersion: registry.StringPtr(v)}, nil
}

func (r *run) readAuditLog(req Request) (*registry.Mutation, error) {
	c := newContext(r.dev, r.derive(req.Passphrase))
	out, err := r.step(c.iv.AuditRead(c.cred, AdminAuthority))
	if err != nil {
		return nil, err
	}
	entries, err := sedutil.ParseAuditLog(out)
	if errors.Is(err, sedutil.ErrNoAuditLog) {
		return nil, r.fail(KindParse, "auditread", "drive has no audit log", err)
	}
	if err != nil {
		return nil, r.fail(KindParse, "auditread", "audit log not readable", err)
	}
	r.res.AuditLog = entries
	return nil, nil
}
