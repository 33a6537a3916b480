// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"errors"
	"testing"

	"github.com/open-source-firmware/sedmgr/pkg/drive"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil/sedutiltest"
)

const scanOutput = `Scanning for Opal compliant disks
/dev/nvme0  2      Samsung SSD 970 EVO Plus 1TB             : 2B2QEXM7 : S4EWNX0R123456
/dev/sda   12      Crucial_CT500MX200SSD1                   : MU03     : 1530F00A1B2C
/dev/sdb   No      WDC WD10EZEX-08WN4A0                     : 01.01A01 : WD-WCC6Y0ABCDEF
/dev/sdc    2      Samsung SSD 860 EVO 500GB                : RVT02B6Q : S3Z2NB0K
/dev/sdd    2      Samsung SSD 860 EVO 500GB                : RVT02B6Q : S3Z2NB0L
No more disks present ending scan
`

func TestDiscover(t *testing.T) {
	fake := sedutiltest.New().
		On("scan", sedutiltest.Response{Output: scanOutput}).
		On("printDefaultPassword", sedutiltest.Response{Output: sedutiltest.MSIDOutput("MSIDMSID")}).
		OnDevice("query", "/dev/sda", sedutiltest.Response{Output: sedutiltest.QueryLocked}).
		OnDevice("query", "/dev/sdb", sedutiltest.Response{Output: sedutiltest.QueryNotTCG, ExitStatus: 1}).
		OnDevice("query", "/dev/sdc", sedutiltest.Response{Output: sedutiltest.QueryUnlocked}).
		OnDevice("getmbrsize", "/dev/sdc", sedutiltest.Response{Output: sedutiltest.NotAuthorized, ExitStatus: 1}).
		// Locking enabled but still owned by the MSID.
		OnDevice("query", "/dev/sdd", sedutiltest.Response{Output: sedutiltest.QueryUnlocked}).
		OnDevice("getmbrsize", "/dev/sdd", sedutiltest.Response{Output: sedutiltest.ShadowMBR}).
		OnDevice("query", "/dev/nvme0", sedutiltest.Response{Output: sedutiltest.QueryFactory})

	probed := 0
	d := &Discoverer{
		Runner:      fake,
		ElevateScan: true,
		Prober: func(path string) (*drive.Identity, error) {
			probed++
			if path == "/dev/nvme0" {
				return &drive.Identity{Protocol: "NVMe", Model: "Samsung SSD 970 EVO Plus 1TB", Firmware: "2B2QEXM7"}, nil
			}
			return nil, drive.ErrDeviceNotSupported
		},
	}
	devices, err := d.Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(devices) != 5 {
		t.Fatalf("Expected 5 devices, got %d", len(devices))
	}
	want := map[string]State{
		"/dev/sda":   StateSetupLocked,
		"/dev/sdb":   StateNotTCG,
		"/dev/sdc":   StateSetupUnlocked,
		"/dev/sdd":   StateNonSetup,
		"/dev/nvme0": StateNonSetup,
	}
	for _, dev := range devices {
		if got := dev.State(); got != want[dev.Path] {
			t.Errorf("%s: state %s, want %s", dev.Path, got, want[dev.Path])
		}
		if dev.MSID != "MSIDMSID" {
			t.Errorf("%s: msid %q", dev.Path, dev.MSID)
		}
		if dev.PBAVersion != sedutil.NotAvailable {
			t.Errorf("%s: pba version %q", dev.Path, dev.PBAVersion)
		}
		if dev.Path == "/dev/nvme0" && dev.Model != "Samsung SSD 970 EVO Plus 1TB" {
			t.Errorf("Identity probe result not used: %+v", dev)
		}
	}
	if probed != 5 {
		t.Errorf("Expected 5 probes, got %d", probed)
	}

	r := New(nil)
	if err := d.Rescan(r); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if r.Len() != 5 {
		t.Errorf("Rescan left %d devices", r.Len())
	}
}

func TestDiscoverEmpty(t *testing.T) {
	fake := sedutiltest.New().On("scan", sedutiltest.Response{Output: "No more disks present ending scan\n", ExitStatus: 1})
	devices, err := (&Discoverer{Runner: fake}).Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("Expected no devices, got %d", len(devices))
	}
}

func TestDiscoverToolMissing(t *testing.T) {
	missing := errors.New("executable file not found")
	fake := sedutiltest.New().On("scan", sedutiltest.Response{Err: missing})
	if _, err := (&Discoverer{Runner: fake}).Discover(); !errors.Is(err, missing) {
		t.Errorf("Expected wrapped start error, got %v", err)
	}
}
