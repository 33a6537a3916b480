// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sedutiltest provides a scripted sedutil.Runner for tests.
package sedutiltest

import (
	"sync"

	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

// Response is what the fake returns for one call.
type Response struct {
	Output     string
	ExitStatus int
	Err        error
}

// Fake answers commands by their flag, optionally narrowed to a device.
// Scripted responses are consumed in order; the last one repeats.
// Unscripted commands succeed with empty output.
type Fake struct {
	// Gate, if set, is received from before every call returns.
	Gate chan struct{}

	mu        sync.Mutex
	responses map[string][]Response
	calls     []sedutil.Command
}

func New() *Fake {
	return &Fake{responses: map[string][]Response{}}
}

// On scripts the responses for every command with flag.
func (f *Fake) On(flag string, rs ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[flag] = append(f.responses[flag], rs...)
	return f
}

// OnDevice scripts responses for flag on one device only.
func (f *Fake) OnDevice(flag, device string, rs ...Response) *Fake {
	return f.On(flag+" "+device, rs...)
}

func (f *Fake) next(key string) (Response, bool) {
	rs, ok := f.responses[key]
	if !ok || len(rs) == 0 {
		return Response{}, false
	}
	r := rs[0]
	if len(rs) > 1 {
		f.responses[key] = rs[1:]
	}
	return r, true
}

func (f *Fake) Run(cmd sedutil.Command) (*sedutil.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	device := ""
	if len(cmd.Args) > 0 {
		device = cmd.Args[len(cmd.Args)-1]
	}
	r, ok := f.next(cmd.Flag() + " " + device)
	if !ok {
		r, _ = f.next(cmd.Flag())
	}
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &sedutil.Result{Output: r.Output, ExitStatus: r.ExitStatus}, nil
}

// Calls returns every command run so far.
func (f *Fake) Calls() []sedutil.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sedutil.Command(nil), f.calls...)
}

// Flags returns the flag of every command run so far.
func (f *Fake) Flags() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Flag())
	}
	return out
}

// Outputs for common tool responses.
const (
	QueryFactory  = "Locking function (0x0002)\n    Locked = N, LockingEnabled = N, LockingSupported = Y, MBRDone = N, MBREnabled = N, MediaEncrypt = Y\n"
	QueryUnlocked = "Locking function (0x0002)\n    Locked = N, LockingEnabled = Y, LockingSupported = Y, MBRDone = Y, MBREnabled = Y, MediaEncrypt = Y\n"
	QueryLocked   = "Locking function (0x0002)\n    Locked = Y, LockingEnabled = Y, LockingSupported = Y, MBRDone = N, MBREnabled = Y, MediaEncrypt = Y\n"
	// QueryActivated is a drive whose locking SP is active but whose
	// pre-boot image was never enabled.
	QueryActivated = "Locking function (0x0002)\n    Locked = N, LockingEnabled = Y, LockingSupported = Y, MBRDone = N, MBREnabled = N, MediaEncrypt = Y\n"
	QueryNotTCG    = "Invalid or unsupported disk\n"
	NotAuthorized  = "method status code NOT_AUTHORIZED\n"
	LockedOut      = "method status code AUTHORITY_LOCKED_OUT\n"
	ShadowMBR      = "Shadow MBR size 134217728\n"
)

// MSIDOutput formats --printDefaultPassword output.
func MSIDOutput(msid string) string {
	return "MSID: " + msid + "\n"
}
