// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/open-source-firmware/sedmgr/pkg/operation"
	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

const testMSID = "MSIDMSIDMSIDMSIDMSIDMSIDMSIDMSID"

func testDevices() []registry.Device {
	return []registry.Device{
		{Path: "/dev/sda", Vendor: "Crucial_CT500MX200SSD1", SerialNumber: "1530F00A1B2C", MSID: testMSID,
			OpalVersion: sedutil.Opal2, Lock: registry.Locked, Setup: registry.SetupYes, MBREnabled: true, PBAVersion: "1.15.0-87"},
		{Path: "/dev/sdb", Vendor: "WDC WD10EZEX-08WN4A0", SerialNumber: "WD-WCC6Y0ABCDEF", MSID: sedutil.NotAvailable,
			OpalVersion: sedutil.OpalNone, PBAVersion: sedutil.NotAvailable},
	}
}

func TestStateFlags(t *testing.T) {
	devices := testDevices()
	tests := []struct {
		dev  registry.Device
		want string
	}{
		{devices[0], "L!MP"},
		{devices[1], "-"},
		{registry.Device{Lock: registry.Unlocked, Setup: registry.SetupNo, PBAVersion: sedutil.NotAvailable}, "l"},
	}
	for _, tc := range tests {
		if got := stateFlags(&tc.dev); got != tc.want {
			t.Errorf("stateFlags(%s) = %q, want %q", tc.dev.Path, got, tc.want)
		}
	}
}

func TestOutputTable(t *testing.T) {
	var buf bytes.Buffer
	if err := outputTable(&buf, testDevices(), false); err != nil {
		t.Fatalf("outputTable failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "#") || !strings.Contains(lines[1], "/dev/sda") || !strings.Contains(lines[1], "SetupLocked") {
		t.Errorf("Unexpected table:\n%s", buf.String())
	}

	buf.Reset()
	if err := outputTable(&buf, testDevices(), true); err != nil {
		t.Fatalf("outputTable failed: %v", err)
	}
	if strings.Contains(buf.String(), "DEVICE") {
		t.Error("Header printed with noHeader")
	}
}

func TestOutputJSONOmitsMSID(t *testing.T) {
	var buf bytes.Buffer
	if err := outputJSON(&buf, testDevices()); err != nil {
		t.Fatalf("outputJSON failed: %v", err)
	}
	if strings.Contains(buf.String(), testMSID) {
		t.Error("JSON output contains the MSID")
	}
	var states []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &states); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if len(states) != 2 || states[1]["Lock"] != "N/A" || states[0]["Lock"] != "Locked" {
		t.Errorf("Unexpected states %v", states)
	}
}

func TestOutputMetrics(t *testing.T) {
	reg := registry.New(testDevices())
	var buf bytes.Buffer
	if err := outputMetrics(&buf, reg.Snapshot()); err != nil {
		t.Fatalf("outputMetrics failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`sedmgr_drive_locked{device="/dev/sda"} 1`,
		`sedmgr_drive_tcg_supported{device="/dev/sdb"} 0`,
		`sedmgr_registry_set_size{set="locked"} 1`,
		`sedmgr_registry_set_size{set="non-setup"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Metrics output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `sedmgr_drive_setup{device="/dev/sdb"}`) {
		t.Error("State metrics exported for a drive without TCG support")
	}
}

func TestOutputAudit(t *testing.T) {
	var buf bytes.Buffer
	entries := []sedutil.AuditEntry{
		{Time: "23/01/15 10:20:31", Event: sedutil.EventRevertNoEraseStarted, Description: "Revert without erase requested", Severity: sedutil.SeverityWarning},
	}
	if err := outputAudit(&buf, entries, true); err != nil {
		t.Fatalf("outputAudit failed: %v", err)
	}
	if !strings.Contains(buf.String(), "13") || !strings.Contains(buf.String(), "Warning") {
		t.Errorf("Unexpected audit output %q", buf.String())
	}
}

func TestMessages(t *testing.T) {
	for _, op := range operation.AllOps() {
		if _, ok := successMessages[op.MessageKey()]; !ok {
			t.Errorf("No success message for %s", op)
		}
	}
	res := &operation.Result{
		Op:     operation.OpLock,
		Device: "/dev/sda",
		Err:    &operation.Error{Kind: operation.KindLockedOut, Op: operation.OpLock, Step: "enableLockingRange"},
	}
	if err := failure(res); !strings.Contains(err.Error(), "power cycle") {
		t.Errorf("Locked out failure lacks the power cycle hint: %v", err)
	}
	if !operation.IsKind(failure(res), operation.KindLockedOut) {
		t.Error("Failure does not wrap the operation error")
	}
}
