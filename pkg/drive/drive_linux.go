// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"os"
)

// Open only needs read access; identify commands do not modify the device.
func Open(device string) (Identifier, error) {
	d, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	if isNVME(d) {
		return NVMEDrive(d), nil
	} else if isSCSI(d) {
		return SCSIDrive(d), nil
	}

	d.Close()
	return nil, ErrDeviceNotSupported
}
