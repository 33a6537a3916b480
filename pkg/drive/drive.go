// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package drive reads the identity of a block device directly from the
// hardware. It is used to complement what the management tool reports.
package drive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotSupported       = errors.New("operation is not supported")
	ErrDeviceNotSupported = errors.New("device is not supported")
)

type Identity struct {
	Protocol     string
	SerialNumber string
	Model        string
	Firmware     string
}

func (i *Identity) String() string {
	return fmt.Sprintf("Protocol=%s, Model=%s, Serial=%s, Firmware=%s",
		i.Protocol, i.Model, i.SerialNumber, i.Firmware)
}

type Identifier interface {
	Identify() (*Identity, error)
	Close() error
}

type FdIntf interface {
	Fd() uintptr
	Close() error
}

// Prober returns the identity of the device at path.
type Prober func(path string) (*Identity, error)

// Probe opens the device, identifies it and closes it again.
func Probe(path string) (*Identity, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.Identify()
}

// ataString converts an ATA string, which stores two characters per
// little endian word, to a trimmed Go string.
func ataString(b []byte) string {
	out := make([]byte, len(b))
	for i := 0; i+1 < len(b); i += 2 {
		out[i] = b[i+1]
		out[i+1] = b[i]
	}
	return strings.TrimSpace(string(out))
}

func trimmed(b []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}
