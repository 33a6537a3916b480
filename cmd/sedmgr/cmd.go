// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/open-source-firmware/sedmgr/pkg/cmdutil"
	"github.com/open-source-firmware/sedmgr/pkg/operation"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

type scanCmd struct {
	NoHeader bool `optional:"" help:"Suppress the header in table format output"`
}

type statusCmd struct {
	Output   string `optional:"" short:"o" default:"table" enum:"table,json,openmetrics" help:"Output format; one of [table, json, openmetrics]"`
	NoHeader bool   `optional:"" help:"Suppress the header in table format output"`
}

type dumpCmd struct{}

type setupCmd struct {
	DeviceArg                `embed:""`
	cmdutil.NewPasswordEmbed `embed:""`
	Lock                     bool `optional:"" help:"Lock the drive once it is set up"`
}

type lockCmd struct {
	DeviceArg             `embed:""`
	cmdutil.PasswordEmbed `embed:""`
}

type unlockCmd struct {
	DeviceArg             `embed:""`
	cmdutil.PasswordEmbed `embed:""`
	Mode                  string `optional:"" default:"full" enum:"full,partial,preboot" help:"full: disable locking and hand ownership back to the MSID; partial: unlock until power off; preboot: unlock and skip the pre-boot image"`
}

type changePasswordCmd struct {
	DeviceArg                `embed:""`
	cmdutil.PasswordEmbed    `embed:""`
	cmdutil.NewPasswordEmbed `embed:""`
}

type revertCmd struct {
	DeviceArg             `embed:""`
	cmdutil.PasswordEmbed `embed:""`
	NoErase               bool `optional:"" help:"Keep the data on a locked drive and only remove locking"`
}

type revertPSIDCmd struct {
	DeviceArg `embed:""`
	PSID      string `required:"" name:"psid" env:"SEDMGR_PSID" type:"password" help:"PSID printed on the drive label"`
	Yes       bool   `optional:"" help:"Confirm that all data on the drive will be erased"`
}

type setUserCmd struct {
	DeviceArg             `embed:""`
	cmdutil.PasswordEmbed `embed:""`
	UserPassword          string `required:"" env:"SEDMGR_USER_PASS" type:"password" confirm:"" help:"Passphrase for the User1 authority"`
}

type loadPBACmd struct {
	DeviceArg             `embed:""`
	cmdutil.PasswordEmbed `embed:""`
}

type pbaVersionCmd struct {
	DeviceArg             `embed:""`
	cmdutil.PasswordEmbed `embed:""`
}

type auditLogCmd struct {
	DeviceArg             `embed:""`
	cmdutil.PasswordEmbed `embed:""`
	Filter                string `optional:"" default:"all" enum:"all,warnings,errors" help:"Minimum severity of the listed events"`
	NoHeader              bool   `optional:"" help:"Suppress the header in table format output"`
}

// cli is the main command line interface struct required by kong command line parser
var cli struct {
	Globals `embed:""`

	Scan           scanCmd           `cmd:"" help:"List drives and their security state"`
	Status         statusCmd         `cmd:"" help:"Show drive state as a table, JSON or OpenMetrics"`
	Dump           dumpCmd           `cmd:"" help:"Dump the discovered drives for debugging"`
	Setup          setupCmd          `cmd:"" help:"Take ownership of a drive and enable locking"`
	Lock           lockCmd           `cmd:"" help:"Lock a drive that has been set up"`
	Unlock         unlockCmd         `cmd:"" help:"Unlock a locked drive"`
	ChangePassword changePasswordCmd `cmd:"" help:"Change the passphrase of a drive"`
	Revert         revertCmd         `cmd:"" help:"Revert a drive to its factory state, erasing it unless --no-erase is given"`
	RevertPsid     revertPSIDCmd     `cmd:"" name:"revert-psid" help:"Erase and revert a drive with its PSID"`
	SetUser        setUserCmd        `cmd:"" help:"Enable the User1 authority and set its passphrase"`
	LoadPba        loadPBACmd        `cmd:"" name:"load-pba" help:"Write the pre-boot image to the shadow MBR"`
	PbaVersion     pbaVersionCmd     `cmd:"" name:"pba-version" help:"Print the version of the pre-boot image"`
	AuditLog       auditLogCmd       `cmd:"" help:"Print the audit log of a drive"`
}

func (t *scanCmd) Run(ctx *context) error {
	reg, err := ctx.registry()
	if err != nil {
		return err
	}
	return outputTable(ctx.out, reg.Snapshot().Devices, t.NoHeader)
}

func (t *statusCmd) Run(ctx *context) error {
	reg, err := ctx.registry()
	if err != nil {
		return err
	}
	devices := reg.Snapshot().Devices
	switch t.Output {
	case "json":
		return outputJSON(ctx.out, devices)
	case "openmetrics":
		return outputMetrics(ctx.out, reg.Snapshot())
	default:
		return outputTable(ctx.out, devices, t.NoHeader)
	}
}

func (t *dumpCmd) Run(ctx *context) error {
	reg, err := ctx.registry()
	if err != nil {
		return err
	}
	snap := reg.Snapshot()
	for i := range snap.Devices {
		snap.Devices[i].MSID = "<redacted>"
	}
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true}
	cfg.Fdump(ctx.out, snap)
	return nil
}

func (t *setupCmd) Run(ctx *context) error {
	_, err := ctx.execute(t.DeviceArg, operation.Request{
		Op:             operation.OpInitialSetup,
		NewPassphrase:  t.NewPassword,
		NewConfirm:     t.NewPassword,
		LockAfterSetup: t.Lock,
	})
	return err
}

func (t *lockCmd) Run(ctx *context) error {
	_, err := ctx.execute(t.DeviceArg, operation.Request{Op: operation.OpLock, Passphrase: t.Password})
	return err
}

func (t *unlockCmd) Run(ctx *context) error {
	op := operation.OpUnlockFull
	switch t.Mode {
	case "partial":
		op = operation.OpUnlockPartial
	case "preboot":
		op = operation.OpUnlockPreboot
	}
	_, err := ctx.execute(t.DeviceArg, operation.Request{Op: op, Passphrase: t.Password})
	return err
}

func (t *changePasswordCmd) Run(ctx *context) error {
	_, err := ctx.execute(t.DeviceArg, operation.Request{
		Op:            operation.OpChangeCredential,
		Passphrase:    t.Password,
		NewPassphrase: t.NewPassword,
		NewConfirm:    t.NewPassword,
	})
	return err
}

func (t *revertCmd) Run(ctx *context) error {
	op := operation.OpRevertWithCredential
	if t.NoErase {
		op = operation.OpRevertNoErase
	}
	_, err := ctx.execute(t.DeviceArg, operation.Request{Op: op, Passphrase: t.Password})
	return err
}

func (t *revertPSIDCmd) Run(ctx *context) error {
	if !t.Yes {
		return errors.New("revert-psid erases all data on the drive, pass --yes to confirm")
	}
	_, err := ctx.execute(t.DeviceArg, operation.Request{Op: operation.OpRevertWithPSID, PSID: t.PSID})
	return err
}

func (t *setUserCmd) Run(ctx *context) error {
	_, err := ctx.execute(t.DeviceArg, operation.Request{
		Op:            operation.OpSetUserCredential,
		Passphrase:    t.Password,
		NewPassphrase: t.UserPassword,
		NewConfirm:    t.UserPassword,
	})
	return err
}

func (t *loadPBACmd) Run(ctx *context) error {
	res, err := ctx.execute(t.DeviceArg, operation.Request{Op: operation.OpLoadPBA, Passphrase: t.Password})
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.out, "PBA image version: %s\n", res.PBAVersion)
	return nil
}

func (t *pbaVersionCmd) Run(ctx *context) error {
	res, err := ctx.execute(t.DeviceArg, operation.Request{Op: operation.OpReadPBAVersion, Passphrase: t.Password})
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.out, "PBA image version: %s\n", res.PBAVersion)
	return nil
}

func (t *auditLogCmd) Run(ctx *context) error {
	res, err := ctx.execute(t.DeviceArg, operation.Request{Op: operation.OpReadAuditLog, Passphrase: t.Password})
	if err != nil {
		return err
	}
	level := sedutil.SeverityInformation
	switch t.Filter {
	case "warnings":
		level = sedutil.SeverityWarning
	case "errors":
		level = sedutil.SeverityError
	}
	return outputAudit(ctx.out, sedutil.FilterAudit(res.AuditLog, level), t.NoHeader)
}
