// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

// DeviceState is the public view of a drive. It leaves out the MSID.
type DeviceState struct {
	Index        int
	Device       string
	Vendor       string
	Series       string
	SerialNumber string
	Model        string `json:",omitempty"`
	Firmware     string `json:",omitempty"`
	Protocol     string `json:",omitempty"`
	OpalVersion  sedutil.OpalVersion
	State        string
	Lock         registry.LockStatus
	Setup        registry.SetupStatus
	MBREnabled   bool
	PBAVersion   string
}

func deviceStates(devices []registry.Device) []DeviceState {
	out := make([]DeviceState, 0, len(devices))
	for i := range devices {
		d := &devices[i]
		out = append(out, DeviceState{
			Index:        i,
			Device:       d.Path,
			Vendor:       d.Vendor,
			Series:       d.Series,
			SerialNumber: d.SerialNumber,
			Model:        d.Model,
			Firmware:     d.Firmware,
			Protocol:     d.Protocol,
			OpalVersion:  d.OpalVersion,
			State:        d.State().String(),
			Lock:         d.Lock,
			Setup:        d.Setup,
			MBREnabled:   d.MBREnabled,
			PBAVersion:   d.PBAVersion,
		})
	}
	return out
}

func outputJSON(w io.Writer, devices []registry.Device) error {
	b, err := json.MarshalIndent(deviceStates(devices), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %v", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// stateFlags summarises a drive like tcgdiskstat does: L/l locking enabled
// or supported, M shadow MBR enabled, P pre-boot image present.
func stateFlags(d *registry.Device) string {
	if !d.TCG() {
		return "-"
	}
	flags := "l"
	if d.Setup == registry.SetupYes {
		flags = "L"
	}
	if d.Lock == registry.Locked {
		flags += "!"
	}
	if d.MBREnabled {
		flags += "M"
	}
	if d.PBAVersion != "" && d.PBAVersion != sedutil.NotAvailable {
		flags += "P"
	}
	return flags
}

func outputTable(w io.Writer, devices []registry.Device, noHeader bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	if !noHeader {
		fmt.Fprintf(tw, "#\tDEVICE\tVENDOR\tSERIAL\tOPAL\tLOCK\tSETUP\tFLAGS\tSTATE\n")
	}
	for i := range devices {
		d := &devices[i]
		fmt.Fprint(tw,
			i, "\t",
			d.Path, "\t",
			d.Vendor, "\t",
			d.SerialNumber, "\t",
			d.OpalVersion, "\t",
			d.Lock, "\t",
			d.Setup, "\t",
			stateFlags(d), "\t",
			d.State(), "\t",
			"\n")
	}
	return tw.Flush()
}

func outputAudit(w io.Writer, entries []sedutil.AuditEntry, noHeader bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	if !noHeader {
		fmt.Fprintf(tw, "TIME\tEVENT\tSEVERITY\tDESCRIPTION\n")
	}
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%02d\t%s\t%s\n", e.Time, int(e.Event), e.Severity, e.Description)
	}
	return tw.Flush()
}
