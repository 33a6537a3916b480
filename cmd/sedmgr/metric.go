// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/open-source-firmware/sedmgr/pkg/registry"
)

var (
	mDriveInfo = prometheus.NewDesc(
		"sedmgr_drive_info",
		"Info metric regarding the detected drives",
		[]string{"device", "vendor", "serial", "opal", "model", "firmware", "protocol"}, nil,
	)
	mTCGSupported = prometheus.NewDesc(
		"sedmgr_drive_tcg_supported",
		"Boolean describing whether a drive supports any TCG storage standards",
		[]string{"device"}, nil,
	)
	mSetup = prometheus.NewDesc(
		"sedmgr_drive_setup",
		"Boolean describing whether locking has been set up on the drive",
		[]string{"device"}, nil,
	)
	mLocked = prometheus.NewDesc(
		"sedmgr_drive_locked",
		"Boolean describing whether the drive is locked",
		[]string{"device"}, nil,
	)
	mMBREnabled = prometheus.NewDesc(
		"sedmgr_drive_mbr_enabled",
		"Boolean describing whether the shadow MBR is enabled",
		[]string{"device"}, nil,
	)
	mSetSize = prometheus.NewDesc(
		"sedmgr_registry_set_size",
		"Number of drives in each index set",
		[]string{"set"}, nil,
	)
)

// stateCollector exports a registry snapshot as constant metrics.
type stateCollector struct {
	snap registry.Snapshot
}

func (sc *stateCollector) Describe(c chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{mDriveInfo, mTCGSupported, mSetup, mLocked, mMBREnabled, mSetSize} {
		c <- d
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (sc *stateCollector) Collect(c chan<- prometheus.Metric) {
	for i := range sc.snap.Devices {
		d := &sc.snap.Devices[i]
		c <- prometheus.MustNewConstMetric(mDriveInfo, prometheus.GaugeValue, 1,
			d.Path, d.Vendor, d.SerialNumber, d.OpalVersion.String(), d.Model, d.Firmware, d.Protocol)
		c <- prometheus.MustNewConstMetric(mTCGSupported, prometheus.GaugeValue, boolValue(d.TCG()), d.Path)

		// This is how far we can make it without TCG support
		if !d.TCG() {
			continue
		}
		c <- prometheus.MustNewConstMetric(mSetup, prometheus.GaugeValue, boolValue(d.Setup == registry.SetupYes), d.Path)
		c <- prometheus.MustNewConstMetric(mLocked, prometheus.GaugeValue, boolValue(d.Lock == registry.Locked), d.Path)
		c <- prometheus.MustNewConstMetric(mMBREnabled, prometheus.GaugeValue, boolValue(d.MBREnabled), d.Path)
	}
	for _, s := range []registry.Set{registry.SetLocked, registry.SetUnlocked, registry.SetSetup, registry.SetNonSetup, registry.SetTCG} {
		c <- prometheus.MustNewConstMetric(mSetSize, prometheus.GaugeValue, float64(len(sc.snap.Sets[s])), s.String())
	}
}

func outputMetrics(w io.Writer, snap registry.Snapshot) error {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(&stateCollector{snap: snap}); err != nil {
		return fmt.Errorf("failed to register collector: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to serialize metrics: %v", err)
		}
	}
	return nil
}
