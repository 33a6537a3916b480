// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package credential derives drive credentials from user passphrases and
// checks new passphrases before they are used.
package credential

import (
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
)

// Credential is the string handed to the tool for authentication. It is
// either the drive's MSID or a derived hex digest.
type Credential string

// Deriver turns passphrases into credentials.
type Deriver struct {
	Scheme Scheme
}

// Derive returns the credential for passphrase on the drive identified by
// salt. A passphrase that is empty or only whitespace selects the factory
// credential msid. Anything else is hashed as entered, whitespace included.
func (d Deriver) Derive(passphrase, salt, msid string) Credential {
	if Normalize(passphrase) == "" {
		return Credential(msid)
	}
	return Credential(hex.EncodeToString(d.Scheme.Key(passphrase, salt)))
}

// Derive uses SchemeDTA.
func Derive(passphrase, salt, msid string) Credential {
	return Deriver{Scheme: SchemeDTA}.Derive(passphrase, salt, msid)
}

// IsFactory reports whether c is the drive's factory credential.
func IsFactory(c Credential, msid string) bool {
	return string(c) == msid
}

// Normalize removes every whitespace character.
func Normalize(passphrase string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, passphrase)
}

// MinLength is the shortest accepted passphrase after normalization.
const MinLength = 8

var (
	ErrTooShort   = errors.New("passphrase must be at least 8 characters")
	ErrDenyListed = errors.New("passphrase is too common")
	ErrMismatch   = errors.New("passphrases do not match")
	ErrEmptyPSID  = errors.New("PSID must not be empty")
)

// Validate checks a new passphrase and its confirmation. Length is checked
// first, then the deny list, then the confirmation.
func Validate(passphrase, confirm string, deny *DenyList) error {
	p := Normalize(passphrase)
	if len(p) < MinLength {
		return ErrTooShort
	}
	if deny.Contains(p) {
		return ErrDenyListed
	}
	if p != Normalize(confirm) {
		return ErrMismatch
	}
	return nil
}
