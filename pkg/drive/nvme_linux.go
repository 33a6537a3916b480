// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"unsafe"

	"github.com/dswarbrick/smart/ioctl"
)

const (
	NVME_ADMIN_IDENTIFY = 0x06
)

var NVME_IOCTL_ADMIN_CMD = ioctl.Iowr('N', 0x41, unsafe.Sizeof(nvmePassthruCommand{}))

// Defined in <linux/nvme_ioctl.h>
type nvmePassthruCommand struct {
	opcode       uint8
	flags        uint8  //nolint:structcheck,unused
	rsvd1        uint16 //nolint:structcheck,unused
	nsid         uint32
	cdw2         uint32 //nolint:structcheck,unused
	cdw3         uint32 //nolint:structcheck,unused
	metadata     uint64 //nolint:structcheck,unused
	addr         uint64
	metadata_len uint32 //nolint:structcheck,unused
	data_len     uint32
	cdw10        uint32
	cdw11        uint32 //nolint:structcheck,unused
	cdw12        uint32 //nolint:structcheck,unused
	cdw13        uint32 //nolint:structcheck,unused
	cdw14        uint32 //nolint:structcheck,unused
	cdw15        uint32 //nolint:structcheck,unused
	timeout_ms   uint32 //nolint:structcheck,unused
	result       uint32 //nolint:structcheck,unused
}

type nvmeDrive struct {
	fd FdIntf
}

func (d *nvmeDrive) Identify() (*Identity, error) {
	i, err := identifyNvme(d.fd)
	if err != nil {
		return nil, err
	}
	return i.identity(), nil
}

func (d *nvmeDrive) Close() error {
	return d.fd.Close()
}

func NVMEDrive(fd FdIntf) *nvmeDrive {
	// Save the full object reference to avoid the underlying File-like object
	// to be GC'd
	return &nvmeDrive{fd: fd}
}

func identifyNvme(fd FdIntf) (*nvmeIdentity, error) {
	raw := make([]byte, 4096)

	cmd := nvmePassthruCommand{
		opcode:   NVME_ADMIN_IDENTIFY,
		nsid:     0, // Namespace 0, since we are identifying the controller
		addr:     uint64(uintptr(unsafe.Pointer(&raw[0]))),
		data_len: uint32(len(raw)),
		cdw10:    1, // Identify controller
	}

	err := ioctl.Ioctl(fd.Fd(), NVME_IOCTL_ADMIN_CMD, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(fd)
	if err != nil {
		return nil, err
	}

	info := nvmeIdentity{}
	if err := binary.Read(bytes.NewBuffer(raw), binary.LittleEndian, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func isNVME(f FdIntf) bool {
	i, err := identifyNvme(f)
	return err == nil && i != nil
}
