// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"

	"github.com/open-source-firmware/sedmgr/pkg/operation"
)

var successMessages = map[string]string{
	"initial-setup.success":       "%s is set up. Lock it to require the passphrase at the next boot.",
	"lock.success":                "%s is locked.",
	"unlock-full.success":         "%s is unlocked and no longer requires a passphrase.",
	"unlock-partial.success":      "%s is unlocked until the next power cycle.",
	"unlock-preboot.success":      "%s is unlocked and will boot without the pre-boot image.",
	"change-credential.success":   "The passphrase of %s has been changed.",
	"revert.success":              "%s has been reverted to its factory state.",
	"revert-no-erase.success":     "%s has been reverted to its factory state. Data was kept.",
	"revert-psid.success":         "%s has been erased and reverted with its PSID.",
	"set-user-credential.success": "The user passphrase of %s has been set.",
	"load-pba.success":            "The pre-boot image has been written to %s.",
	"read-pba-version.success":    "Read the pre-boot image version of %s.",
	"read-audit-log.success":      "Read the audit log of %s.",
}

func successMessage(res *operation.Result) string {
	if f, ok := successMessages[res.MessageKey]; ok {
		return fmt.Sprintf(f, res.Device)
	}
	return fmt.Sprintf("%s on %s succeeded.", res.Op, res.Device)
}

var hints = map[operation.Kind]string{
	operation.KindAuthentication: "check the passphrase and try again",
	operation.KindLockedOut:      "too many failed attempts, power cycle the drive before trying again",
	operation.KindVerification:   "the drive did not change state, run status to inspect it",
	operation.KindPrecondition:   "run status to see which commands apply to the drive",
}

// failure turns a failed result into the error reported to the user.
func failure(res *operation.Result) error {
	var opErr *operation.Error
	if !errors.As(res.Err, &opErr) {
		return fmt.Errorf("%s on %s failed: %w", res.Op, res.Device, res.Err)
	}
	if hint, ok := hints[opErr.Kind]; ok {
		return fmt.Errorf("%s failed on %s: %w (%s)", res.Op, res.Device, res.Err, hint)
	}
	return fmt.Errorf("%s failed on %s: %w", res.Op, res.Device, res.Err)
}
