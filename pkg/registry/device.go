// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

type LockStatus int

const (
	LockNotApplicable LockStatus = iota
	Unlocked
	Locked
)

func (s LockStatus) String() string {
	switch s {
	case Unlocked:
		return "Unlocked"
	case Locked:
		return "Locked"
	default:
		return sedutil.NotAvailable
	}
}

func (s LockStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type SetupStatus int

const (
	SetupNotApplicable SetupStatus = iota
	SetupNo
	SetupYes
)

func (s SetupStatus) String() string {
	switch s {
	case SetupNo:
		return "No"
	case SetupYes:
		return "Yes"
	default:
		return sedutil.NotAvailable
	}
}

func (s SetupStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is the security state of a device, derived from its setup and
// lock status.
type State int

const (
	StateNotTCG State = iota
	StateNonSetup
	StateSetupUnlocked
	// StateSetupUnlockedNoShadowMBR is an unlocked device whose pre-boot
	// image is disabled.
	StateSetupUnlockedNoShadowMBR
	StateSetupLocked
)

var stateNames = map[State]string{
	StateNotTCG:                   "NotTCG",
	StateNonSetup:                 "NonSetup",
	StateSetupUnlocked:            "SetupUnlocked",
	StateSetupUnlockedNoShadowMBR: "SetupUnlockedNoShadowMBR",
	StateSetupLocked:              "SetupLocked",
}

func (s State) String() string {
	return stateNames[s]
}

// IsSetup is true for all states reached through initial setup.
func (s State) IsSetup() bool {
	return s == StateSetupUnlocked || s == StateSetupUnlockedNoShadowMBR || s == StateSetupLocked
}

// Device is one drive found by discovery.
type Device struct {
	Path         string
	Vendor       string
	Series       string
	Salt         string
	SerialNumber string
	MSID         string
	OpalVersion  sedutil.OpalVersion
	Lock         LockStatus
	Setup        SetupStatus
	PBAVersion   string
	MBREnabled   bool
	Elevate      bool

	// Filled by the identity probe when available.
	Model    string
	Firmware string
	Protocol string
}

func (d *Device) TCG() bool {
	return d.Lock != LockNotApplicable
}

func (d *Device) State() State {
	switch {
	case !d.TCG():
		return StateNotTCG
	case d.Setup != SetupYes:
		return StateNonSetup
	case d.Lock == Locked:
		return StateSetupLocked
	case !d.MBREnabled:
		return StateSetupUnlockedNoShadowMBR
	default:
		return StateSetupUnlocked
	}
}

// Invoker returns a command builder for the device.
func (d *Device) Invoker(conv sedutil.Convention) sedutil.Invoker {
	return sedutil.Invoker{Elevate: d.Elevate, Device: d.Path, Convention: conv}
}
