// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package credential

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DenyList holds passphrases that are rejected regardless of length.
// A nil *DenyList contains nothing.
type DenyList struct {
	entries map[string]struct{}
}

func NewDenyList(entries ...string) *DenyList {
	d := &DenyList{entries: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		d.add(e)
	}
	return d
}

func (d *DenyList) add(e string) {
	e = Normalize(e)
	if e != "" {
		d.entries[e] = struct{}{}
	}
}

// Contains reports an exact match after whitespace is removed.
func (d *DenyList) Contains(passphrase string) bool {
	if d == nil {
		return false
	}
	_, ok := d.entries[Normalize(passphrase)]
	return ok
}

func (d *DenyList) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// LoadDenyList reads one entry per line. Blank lines and lines starting
// with '#' are skipped.
func LoadDenyList(r io.Reader) (*DenyList, error) {
	d := NewDenyList()
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.add(line)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading deny list failed: %w", err)
	}
	return d, nil
}

func LoadDenyListFile(path string) (*DenyList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDenyList(f)
}
