// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

func testDevices() []Device {
	return []Device{
		{Path: "/dev/sda", Lock: Unlocked, Setup: SetupNo},
		{Path: "/dev/sdb", Lock: LockNotApplicable, Setup: SetupNotApplicable},
		{Path: "/dev/sdc", Lock: Locked, Setup: SetupYes, MBREnabled: true},
		{Path: "/dev/nvme0", Lock: Unlocked, Setup: SetupYes, MBREnabled: true},
	}
}

func checkInvariants(t *testing.T, snap Snapshot) {
	t.Helper()
	in := func(s Set, i int) bool {
		for _, m := range snap.Sets[s] {
			if m == i {
				return true
			}
		}
		return false
	}
	for i := range snap.Devices {
		if in(SetLocked, i) && in(SetUnlocked, i) {
			t.Errorf("device %d is both locked and unlocked", i)
		}
		if in(SetSetup, i) && in(SetNonSetup, i) {
			t.Errorf("device %d is both setup and non-setup", i)
		}
		if (in(SetSetup, i) || in(SetNonSetup, i)) && !in(SetTCG, i) {
			t.Errorf("device %d is classified but not tcg", i)
		}
		if snap.Devices[i].TCG() != in(SetTCG, i) {
			t.Errorf("device %d tcg membership does not match its status", i)
		}
	}
}

func TestNewSets(t *testing.T) {
	r := New(testDevices())
	tests := []struct {
		set  Set
		want []int
	}{
		{SetLocked, []int{2}},
		{SetUnlocked, []int{3}},
		{SetSetup, []int{2, 3}},
		{SetNonSetup, []int{0}},
		{SetTCG, []int{0, 2, 3}},
		{SetAll, []int{0, 1, 2, 3}},
	}
	for _, tc := range tests {
		if got := r.Members(tc.set); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Members(%s) = %v, want %v", tc.set, got, tc.want)
		}
	}
	checkInvariants(t, r.Snapshot())
}

func TestDeviceState(t *testing.T) {
	tests := []struct {
		dev  Device
		want State
	}{
		{Device{Lock: LockNotApplicable, Setup: SetupNotApplicable}, StateNotTCG},
		{Device{Lock: Unlocked, Setup: SetupNo}, StateNonSetup},
		{Device{Lock: Unlocked, Setup: SetupYes, MBREnabled: true}, StateSetupUnlocked},
		{Device{Lock: Unlocked, Setup: SetupYes}, StateSetupUnlockedNoShadowMBR},
		{Device{Lock: Locked, Setup: SetupYes, MBREnabled: true}, StateSetupLocked},
	}
	for _, tc := range tests {
		if got := tc.dev.State(); got != tc.want {
			t.Errorf("State() = %s, want %s", got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	r := New(testDevices())
	idx, err := r.Resolve(SetSetup, 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if idx != 3 {
		t.Errorf("Resolve(setup, 1) = %d, want 3", idx)
	}
	if _, err := r.Resolve(SetLocked, 1); !errors.Is(err, ErrNoSuchDevice) {
		t.Errorf("Expected ErrNoSuchDevice, got %v", err)
	}
}

func TestMutationTransitions(t *testing.T) {
	tests := []struct {
		name string
		prev Device
		m    Mutation
		want []Transition
	}{
		{
			name: "lock",
			prev: Device{Lock: Unlocked, Setup: SetupYes},
			m:    Mutation{Lock: LockPtr(Locked)},
			want: []Transition{{SetUnlocked, Remove}, {SetLocked, Add}},
		},
		{
			name: "setup",
			prev: Device{Lock: Unlocked, Setup: SetupNo},
			m:    Mutation{Setup: SetupPtr(SetupYes)},
			want: []Transition{{SetNonSetup, Remove}, {SetUnlocked, Add}, {SetSetup, Add}},
		},
		{
			name: "revert from locked",
			prev: Device{Lock: Locked, Setup: SetupYes},
			m:    Mutation{Lock: LockPtr(Unlocked), Setup: SetupPtr(SetupNo)},
			want: []Transition{{SetLocked, Remove}, {SetSetup, Remove}, {SetNonSetup, Add}},
		},
		{
			name: "pba only",
			prev: Device{Lock: Locked, Setup: SetupYes},
			m:    Mutation{PBAVersion: StringPtr("1.0")},
			want: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.m.Transitions(&tc.prev); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Transitions() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	r := New(testDevices())
	_, err := r.Apply(Mutation{Index: 3, Path: "/dev/nvme0", Lock: LockPtr(Locked), PBAVersion: StringPtr("1.2")})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	d, _ := r.Device(3)
	if d.Lock != Locked || d.PBAVersion != "1.2" {
		t.Errorf("Unexpected device after apply: %+v", d)
	}
	if got := r.Members(SetLocked); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("Members(locked) = %v", got)
	}
	if got := r.Members(SetUnlocked); len(got) != 0 {
		t.Errorf("Members(unlocked) = %v", got)
	}
	checkInvariants(t, r.Snapshot())
}

func TestApplyStale(t *testing.T) {
	r := New(testDevices())
	_, err := r.Apply(Mutation{Index: 3, Path: "/dev/sda", Lock: LockPtr(Locked)})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("Expected ErrStale, got %v", err)
	}
	if _, err := r.Apply(Mutation{Index: 9, Path: "/dev/sda"}); !errors.Is(err, ErrStale) {
		t.Errorf("Expected ErrStale for out of range index, got %v", err)
	}
	d, _ := r.Device(3)
	if d.Lock != Unlocked {
		t.Error("Stale mutation was applied")
	}
}

func TestApplyConcurrentReaders(t *testing.T) {
	r := New(testDevices())
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				checkInvariants(t, r.Snapshot())
			}
		}()
	}
	for i := 0; i < 200; i++ {
		lock := Locked
		if i%2 == 1 {
			lock = Unlocked
		}
		if _, err := r.Apply(Mutation{Index: 3, Path: "/dev/nvme0", Lock: LockPtr(lock)}); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
