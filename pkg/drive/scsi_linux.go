// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"runtime"

	"github.com/open-source-firmware/sedmgr/pkg/drive/sgio"
)

type scsiDrive struct {
	fd FdIntf
}

func (d *scsiDrive) Identify() (*Identity, error) {
	id, err := sgio.SCSIInquiry(d.fd.Fd())
	runtime.KeepAlive(d.fd)
	if err != nil {
		return nil, err
	}

	q := inquiry{
		Vendor:   id.VendorIdent[:],
		Product:  id.ProductIdent[:],
		Revision: id.ProductRev[:],
	}
	if q.isSAT() {
		// SCSI ATA Translation (SAT); the inquiry data lacks the serial number.
		if ata, err := sgio.ATAIdentify(d.fd.Fd()); err == nil {
			q.ATASerial = ata.Serial[:]
			q.ATAFirmware = ata.Firmware[:]
			q.ATAModel = ata.Model[:]
		}
		runtime.KeepAlive(d.fd)
	}
	return q.identity(), nil
}

func (d *scsiDrive) Close() error {
	return d.fd.Close()
}

func SCSIDrive(fd FdIntf) *scsiDrive {
	// Save the full object reference to avoid the underlying File-like object
	// to be GC'd
	return &scsiDrive{fd: fd}
}

func isSCSI(fd FdIntf) bool {
	_, err := sgio.SCSIInquiry(fd.Fd())
	return err == nil
}
