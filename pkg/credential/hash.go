// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package credential

import (
	"crypto/sha1"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Scheme selects the key derivation parameters.
type Scheme string

const (
	// SchemeDTA matches https://github.com/Drive-Trust-Alliance/sedutil/
	SchemeDTA Scheme = "sedutil-dta"
	// SchemeSHA512 matches https://github.com/ChubbyAnt/sedutil/
	SchemeSHA512 Scheme = "sedutil-sha512"
)

const keyLength = 32

type params struct {
	iterations int
	hash       func() hash.Hash
}

var schemes = map[Scheme]params{
	SchemeDTA:    {iterations: 75000, hash: sha1.New},
	SchemeSHA512: {iterations: 500000, hash: sha512.New},
}

// ParseScheme maps a configuration value to a Scheme. The empty string
// selects SchemeDTA.
func ParseScheme(s string) (Scheme, error) {
	if s == "" {
		return SchemeDTA, nil
	}
	if _, ok := schemes[Scheme(s)]; !ok {
		return "", fmt.Errorf("unknown hash scheme %q", s)
	}
	return Scheme(s), nil
}

// Key runs PBKDF2 over the first 20 bytes of the space padded salt.
func (s Scheme) Key(password, salt string) []byte {
	p, ok := schemes[s]
	if !ok {
		p = schemes[SchemeDTA]
	}
	padded := fmt.Sprintf("%-20s", salt)
	return pbkdf2.Key([]byte(password), []byte(padded[:20]), p.iterations, keyLength, p.hash)
}
