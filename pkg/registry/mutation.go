// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"fmt"
	"strings"
)

// Mutation is the change a successful operation makes to one device.
// Nil fields are left untouched.
type Mutation struct {
	Index      int
	Path       string
	Lock       *LockStatus
	Setup      *SetupStatus
	MBREnabled *bool
	PBAVersion *string
}

type TransitionOp int

const (
	Add TransitionOp = iota
	Remove
)

func (o TransitionOp) String() string {
	if o == Add {
		return "add"
	}
	return "remove"
}

// Transition is one change in set membership.
type Transition struct {
	Set Set
	Op  TransitionOp
}

func (t Transition) String() string {
	return fmt.Sprintf("%s %s", t.Op, t.Set)
}

func (m Mutation) applyTo(d Device) Device {
	if m.Lock != nil {
		d.Lock = *m.Lock
	}
	if m.Setup != nil {
		d.Setup = *m.Setup
	}
	if m.MBREnabled != nil {
		d.MBREnabled = *m.MBREnabled
	}
	if m.PBAVersion != nil {
		d.PBAVersion = *m.PBAVersion
	}
	return d
}

// Transitions lists the set changes applying m to prev implies. Removals
// come before additions.
func (m Mutation) Transitions(prev *Device) []Transition {
	next := m.applyTo(*prev)
	before, after := membership(prev), membership(&next)
	var out []Transition
	for _, s := range derivedSets {
		if before[s] && !after[s] {
			out = append(out, Transition{Set: s, Op: Remove})
		}
	}
	for _, s := range derivedSets {
		if !before[s] && after[s] {
			out = append(out, Transition{Set: s, Op: Add})
		}
	}
	return out
}

func (m Mutation) String() string {
	var parts []string
	if m.Lock != nil {
		parts = append(parts, "lock="+m.Lock.String())
	}
	if m.Setup != nil {
		parts = append(parts, "setup="+m.Setup.String())
	}
	if m.MBREnabled != nil {
		parts = append(parts, fmt.Sprintf("mbr=%v", *m.MBREnabled))
	}
	if m.PBAVersion != nil {
		parts = append(parts, "pba="+*m.PBAVersion)
	}
	return fmt.Sprintf("%s[%d]{%s}", m.Path, m.Index, strings.Join(parts, ","))
}

// Helpers for building mutations.

func LockPtr(s LockStatus) *LockStatus    { return &s }
func SetupPtr(s SetupStatus) *SetupStatus { return &s }
func BoolPtr(b bool) *bool                { return &b }
func StringPtr(s string) *string          { return &s }
