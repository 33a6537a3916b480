// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package operation

import (
	"fmt"

	"github.com/open-source-firmware/sedmgr/pkg/registry"
)

// Op names an operation.
type Op int

const (
	OpInitialSetup Op = iota
	OpLock
	OpUnlockFull
	OpUnlockPartial
	OpUnlockPreboot
	OpChangeCredential
	OpRevertWithCredential
	OpRevertNoErase
	OpRevertWithPSID
	OpSetUserCredential
	OpLoadPBA
	OpReadPBAVersion
	OpReadAuditLog
)

type opInfo struct {
	name string
	// set is the index set a trigger position is resolved against.
	set registry.Set
	// states the device must be in.
	states []registry.State
}

var (
	anySetup = []registry.State{registry.StateSetupUnlocked, registry.StateSetupUnlockedNoShadowMBR, registry.StateSetupLocked}
	anyTCG   = []registry.State{registry.StateNonSetup, registry.StateSetupUnlocked, registry.StateSetupUnlockedNoShadowMBR, registry.StateSetupLocked}
	unlocked = []registry.State{registry.StateSetupUnlocked, registry.StateSetupUnlockedNoShadowMBR}
	locked   = []registry.State{registry.StateSetupLocked}
)

var ops = map[Op]opInfo{
	OpInitialSetup:         {"initial-setup", registry.SetNonSetup, []registry.State{registry.StateNonSetup}},
	OpLock:                 {"lock", registry.SetUnlocked, unlocked},
	OpUnlockFull:           {"unlock-full", registry.SetLocked, locked},
	OpUnlockPartial:        {"unlock-partial", registry.SetLocked, locked},
	OpUnlockPreboot:        {"unlock-preboot", registry.SetLocked, locked},
	OpChangeCredential:     {"change-credential", registry.SetSetup, anySetup},
	OpRevertWithCredential: {"revert", registry.SetSetup, anySetup},
	OpRevertNoErase:        {"revert-no-erase", registry.SetSetup, locked},
	OpRevertWithPSID:       {"revert-psid", registry.SetTCG, anyTCG},
	OpSetUserCredential:    {"set-user-credential", registry.SetSetup, anySetup},
	OpLoadPBA:              {"load-pba", registry.SetSetup, anySetup},
	OpReadPBAVersion:       {"read-pba-version", registry.SetSetup, anySetup},
	OpReadAuditLog:         {"read-audit-log", registry.SetTCG, anyTCG},
}

// AllOps lists every operation in declaration order.
func AllOps() []Op {
	out := make([]Op, 0, len(ops))
	for op := OpInitialSetup; op <= OpReadAuditLog; op++ {
		out = append(out, op)
	}
	return out
}

func (o Op) String() string {
	if info, ok := ops[o]; ok {
		return info.name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

func (o Op) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ParseOp is the inverse of String.
func ParseOp(s string) (Op, error) {
	for op, info := range ops {
		if info.name == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// Set is the index set device positions are resolved against.
func (o Op) Set() registry.Set {
	return ops[o].set
}

// Allowed reports whether the operation may run on a device in state s.
func (o Op) Allowed(s registry.State) bool {
	for _, a := range ops[o].states {
		if a == s {
			return true
		}
	}
	return false
}

// MessageKey identifies the confirmation shown after success.
func (o Op) MessageKey() string {
	return o.String() + ".success"
}
