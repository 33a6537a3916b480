// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry holds the discovered drives and the index sets derived
// from their security state.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrStale is returned when a mutation refers to an index that no
	// longer holds the same device. The caller should rescan.
	ErrStale         = errors.New("device registry is stale")
	ErrNoSuchDevice  = errors.New("no such device")
	ErrEmptyRegistry = errors.New("no devices discovered")
)

// Registry is safe for concurrent use. Readers never observe a partially
// applied mutation.
type Registry struct {
	mu      sync.RWMutex
	devices []Device
	sets    map[Set]indexSet
}

func New(devices []Device) *Registry {
	r := &Registry{}
	r.replace(devices)
	return r
}

func (r *Registry) replace(devices []Device) {
	r.devices = append([]Device(nil), devices...)
	r.sets = map[Set]indexSet{}
	for i := range r.devices {
		r.sets[SetAll] = r.sets[SetAll].add(i)
		for s := range membership(&r.devices[i]) {
			r.sets[s] = r.sets[s].add(i)
		}
	}
}

// Replace swaps in the result of a full rescan.
func (r *Registry) Replace(devices []Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replace(devices)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Device returns a copy of the device at index.
func (r *Registry) Device(index int) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.devices) {
		return Device{}, fmt.Errorf("%w: index %d", ErrNoSuchDevice, index)
	}
	return r.devices[index], nil
}

// Members returns the device indices in s, in ascending order.
func (r *Registry) Members(s Set) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]int(nil), r.sets[s]...)
}

// Resolve maps a position within set s to a device index.
func (r *Registry) Resolve(s Set, position int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.sets[s]
	if position < 0 || position >= len(members) {
		return 0, fmt.Errorf("%w: position %d in %s set of %d", ErrNoSuchDevice, position, s, len(members))
	}
	return members[position], nil
}

// IndexOf finds a device by path.
func (r *Registry) IndexOf(path string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.devices {
		if r.devices[i].Path == path {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoSuchDevice, path)
}

// Snapshot is a consistent copy of the registry.
type Snapshot struct {
	Devices []Device
	Sets    map[Set][]int
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		Devices: append([]Device(nil), r.devices...),
		Sets:    make(map[Set][]int, len(r.sets)),
	}
	for s, members := range r.sets {
		snap.Sets[s] = append([]int(nil), members...)
	}
	return snap
}

// Apply updates one device and its set memberships atomically.
func (r *Registry) Apply(m Mutation) ([]Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Index < 0 || m.Index >= len(r.devices) || r.devices[m.Index].Path != m.Path {
		return nil, fmt.Errorf("%w: index %d is not %s", ErrStale, m.Index, m.Path)
	}
	prev := r.devices[m.Index]
	transitions := m.Transitions(&prev)
	next := m.applyTo(prev)
	r.devices[m.Index] = next
	for _, t := range transitions {
		switch t.Op {
		case Add:
			r.sets[t.Set] = r.sets[t.Set].add(m.Index)
		case Remove:
			r.sets[t.Set] = r.sets[t.Set].remove(m.Index)
		}
	}
	return transitions, nil
}
