// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/open-source-firmware/sedmgr/pkg/drive"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

// Discoverer builds the device list from tool output.
type Discoverer struct {
	Runner sedutil.Runner
	// ElevateScan prefixes the scan itself with the elevation prefix.
	ElevateScan bool
	// Prober, if set, reads model and firmware from the hardware.
	Prober drive.Prober
	Logger *zap.Logger
}

func (d *Discoverer) log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Discoverer) run(cmd sedutil.Command) (string, error) {
	res, err := d.Runner.Run(cmd)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", cmd.Flag(), err)
	}
	return res.Output, nil
}

// Discover scans for drives and classifies each one. A scan that lists
// no drives yields an empty list and no error.
func (d *Discoverer) Discover() ([]Device, error) {
	out, err := d.run(sedutil.Scan(d.ElevateScan))
	if err != nil {
		return nil, err
	}
	stubs, err := sedutil.ParseDeviceScan(out)
	if err != nil {
		return nil, err
	}
	devices := make([]Device, 0, len(stubs))
	for _, stub := range stubs {
		dev, err := d.classify(stub)
		if err != nil {
			return nil, err
		}
		d.log().Info("discovered device",
			zap.String("path", dev.Path),
			zap.Stringer("opal", dev.OpalVersion),
			zap.Stringer("state", dev.State()))
		devices = append(devices, dev)
	}
	return devices, nil
}

func (d *Discoverer) classify(stub sedutil.DeviceStub) (Device, error) {
	dev := Device{
		Path:         stub.Path,
		Vendor:       stub.Vendor,
		Series:       stub.Series,
		Salt:         stub.Salt,
		SerialNumber: stub.SerialNumber,
		OpalVersion:  stub.OpalVersion,
		Elevate:      stub.Elevate,
		MSID:         sedutil.NotAvailable,
		PBAVersion:   sedutil.NotAvailable,
	}

	queryText, err := d.run(sedutil.Query(stub.Elevate, stub.Path))
	if err != nil {
		return dev, err
	}
	msidText, err := d.run(sedutil.PrintDefaultPassword(stub.Elevate, stub.Path))
	if err != nil {
		return dev, err
	}
	dev.MSID = sedutil.ParseDefaultPassword(msidText)

	// The shadow MBR can only be read with the MSID while the drive has
	// not been taken over.
	shadow := false
	if dev.MSID != sedutil.NotAvailable {
		mbrText, err := d.run(sedutil.MBRSize(stub.Elevate, dev.MSID, stub.Path))
		if err != nil {
			return dev, err
		}
		shadow = sedutil.HasShadowMBR(mbrText)
	}

	facts := sedutil.ParseQuery(queryText)
	switch {
	case !facts.TCG:
		dev.Lock, dev.Setup = LockNotApplicable, SetupNotApplicable
	case facts.Locked:
		dev.Lock, dev.Setup = Locked, SetupYes
	case facts.LockingEnabled && !shadow:
		dev.Lock, dev.Setup = Unlocked, SetupYes
	default:
		dev.Lock, dev.Setup = Unlocked, SetupNo
	}
	dev.MBREnabled = facts.TCG && !facts.MBRDisabled

	if d.Prober != nil && stub.Elevate {
		id, err := d.Prober(stub.Path)
		if err != nil {
			d.log().Debug("identity probe failed", zap.String("path", stub.Path), zap.Error(err))
		} else {
			dev.Model, dev.Firmware, dev.Protocol = id.Model, id.Firmware, id.Protocol
		}
	}
	return dev, nil
}

// Rescan discovers again and replaces the registry contents.
func (d *Discoverer) Rescan(r *Registry) error {
	devices, err := d.Discover()
	if err != nil {
		return err
	}
	r.Replace(devices)
	return nil
}
