// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"fmt"
	"sort"
)

// Set names one of the derived index sets.
type Set int

const (
	SetLocked Set = iota
	SetUnlocked
	SetSetup
	SetNonSetup
	SetTCG
	// SetAll contains every device index.
	SetAll
)

var setNames = []string{"locked", "unlocked", "setup", "non-setup", "tcg", "all"}

func (s Set) String() string {
	if int(s) < len(setNames) {
		return setNames[s]
	}
	return fmt.Sprintf("set(%d)", int(s))
}

var derivedSets = []Set{SetLocked, SetUnlocked, SetSetup, SetNonSetup, SetTCG}

// membership returns the derived sets a device belongs to.
func membership(d *Device) map[Set]bool {
	m := map[Set]bool{}
	if !d.TCG() {
		return m
	}
	m[SetTCG] = true
	if d.Setup == SetupYes {
		m[SetSetup] = true
	} else {
		m[SetNonSetup] = true
	}
	// Unlocked only lists drives that were set up.
	if d.Lock == Locked {
		m[SetLocked] = true
	} else if d.Setup == SetupYes {
		m[SetUnlocked] = true
	}
	return m
}

type indexSet []int

func (s indexSet) add(i int) indexSet {
	p := sort.SearchInts(s, i)
	if p < len(s) && s[p] == i {
		return s
	}
	s = append(s, 0)
	copy(s[p+1:], s[p:])
	s[p] = i
	return s
}

func (s indexSet) remove(i int) indexSet {
	p := sort.SearchInts(s, i)
	if p == len(s) || s[p] != i {
		return s
	}
	return append(s[:p], s[p+1:]...)
}
