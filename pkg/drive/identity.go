// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drive

import (
	"bytes"
	"fmt"
)

type nvmeIdentity struct {
	_            uint16 /* Vid */
	_            uint16 /* Ssvid */
	SerialNumber [20]byte
	ModelNumber  [40]byte
	Firmware     [8]byte
}

func (i *nvmeIdentity) identity() *Identity {
	return &Identity{
		Protocol:     "NVMe",
		Model:        trimmed(i.ModelNumber[:]),
		SerialNumber: trimmed(i.SerialNumber[:]),
		Firmware:     trimmed(i.Firmware[:]),
	}
}

// inquiry holds the fields of a SCSI INQUIRY response and, for drives
// behind a SCSI/ATA translation layer, the ATA IDENTIFY DEVICE response.
type inquiry struct {
	Vendor   []byte
	Product  []byte
	Revision []byte
	// ATA identify words, only set for SAT devices.
	ATASerial   []byte
	ATAFirmware []byte
	ATAModel    []byte
}

var satVendor = []byte("ATA     ")

func (q inquiry) isSAT() bool {
	return bytes.Equal(q.Vendor, satVendor)
}

func (q inquiry) identity() *Identity {
	if q.isSAT() {
		id := &Identity{
			Protocol: "SATA",
			Model:    trimmed(q.Product),
			Firmware: trimmed(q.Revision),
		}
		if len(q.ATAModel) > 0 {
			id.Model = ataString(q.ATAModel)
			id.Firmware = ataString(q.ATAFirmware)
			id.SerialNumber = ataString(q.ATASerial)
		}
		return id
	}
	return &Identity{
		Protocol: "SCSI",
		Model:    fmt.Sprintf("%s %s", trimmed(q.Vendor), trimmed(q.Product)),
		Firmware: trimmed(q.Revision),
	}
}
