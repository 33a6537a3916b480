// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmdutil

import (
	"fmt"

	"github.com/open-source-firmware/sedmgr/pkg/credential"
)

type HashEmbed struct {
	Hash string `optional:"" env:"SEDMGR_HASH" help:"Use dta (sha1) or sha512 for password hashing, overrides the config file"`
}

// Scheme maps the flag to a hashing scheme. An empty flag selects def.
func (t *HashEmbed) Scheme(def credential.Scheme) (credential.Scheme, error) {
	switch t.Hash {
	case "":
		return def, nil
	// Drive-Trust-Alliance uses sha1
	case "sedutil-dta", "sha1", "dta":
		return credential.SchemeDTA, nil
	// ChubbyAnt uses sha512
	case "sedutil-sha512", "sha512":
		return credential.SchemeSHA512, nil
	default:
		return "", fmt.Errorf("unknown hash method %q", t.Hash)
	}
}

// PasswordEmbed is the passphrase an operation authenticates with. An
// empty passphrase selects the drive's factory credential.
type PasswordEmbed struct {
	Password string `optional:"" short:"p" env:"SEDMGR_PASS" type:"password" prompt:"" help:"Current passphrase, empty for the factory credential"`
}

// NewPasswordEmbed is a passphrase being set. It is read twice when
// prompted for.
type NewPasswordEmbed struct {
	NewPassword string `required:"" env:"SEDMGR_NEW_PASS" type:"password" confirm:"" help:"New passphrase"`
}
