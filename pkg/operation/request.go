// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package operation

import (
	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

// Request is one operation against the device at Index.
//
// Passphrase authenticates the operation; an empty passphrase selects the
// factory credential. NewPassphrase and NewConfirm carry the credential
// being set by InitialSetup, ChangeCredential and SetUserCredential.
type Request struct {
	Op            Op
	Index         int
	Passphrase    string
	NewPassphrase string
	NewConfirm    string
	PSID          string
	// LockAfterSetup locks the drive at the end of InitialSetup.
	LockAfterSetup bool
}

// StepRecord is one command run by an operation.
type StepRecord struct {
	Flag       string
	ExitStatus int
}

// AuditRecord is one best-effort audit write.
type AuditRecord struct {
	Event      sedutil.EventCode
	ExitStatus int
	Err        error
}

// Result is the outcome of one operation. Err is nil on success.
type Result struct {
	Op     Op
	Index  int
	Device string
	Err    error
	// Mutation is only set on success, and only when the device changed.
	Mutation *registry.Mutation
	Steps    []StepRecord
	Audit    []AuditRecord
	// MessageKey is set on success.
	MessageKey string
	PBAVersion string
	AuditLog   []sedutil.AuditEntry
}

func (r *Result) OK() bool {
	return r.Err == nil
}

// Statuses returns the exit status of every step, in order.
func (r *Result) Statuses() []int {
	out := make([]int, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.ExitStatus
	}
	return out
}
