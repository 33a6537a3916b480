// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sedutil

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports tool output that did not match the expected layout,
// usually a sign of a tool version the parser does not know.
type ParseError struct {
	What string
	Line string
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("unexpected tool output: %s", e.What)
	}
	return fmt.Sprintf("unexpected tool output: %s (line %q)", e.What, e.Line)
}

// OpalVersion is the SSC family reported by --scan.
type OpalVersion struct {
	kind opalKind
	raw  string
}

type opalKind int

const (
	opalNone opalKind = iota
	opalV1
	opalV2
	opalV1OrV2
	opalEnterprise
	opallite
	opalPyrite
	opalUnknown
)

var (
	OpalNone       = OpalVersion{kind: opalNone, raw: "No"}
	Opal1          = OpalVersion{kind: opalV1, raw: "1"}
	Opal2          = OpalVersion{kind: opalV2, raw: "2"}
	Opal1Or2       = OpalVersion{kind: opalV1OrV2, raw: "12"}
	OpalEnterprise = OpalVersion{kind: opalEnterprise, raw: "E"}
	Opallite       = OpalVersion{kind: opallite, raw: "L"}
	Pyrite         = OpalVersion{kind: opalPyrite, raw: "P"}
)

// OpalUnknown wraps a scan code the parser does not recognize.
func OpalUnknown(raw string) OpalVersion {
	return OpalVersion{kind: opalUnknown, raw: raw}
}

func opalVersionFromCode(code string) OpalVersion {
	for _, v := range []OpalVersion{OpalNone, Opal1, Opal2, Opal1Or2, OpalEnterprise, Opallite, Pyrite} {
		if v.raw == code {
			return v
		}
	}
	return OpalUnknown(code)
}

// Code returns the code as printed by the tool.
func (v OpalVersion) Code() string {
	return v.raw
}

func (v OpalVersion) IsUnknown() bool {
	return v.kind == opalUnknown
}

func (v OpalVersion) String() string {
	switch v.kind {
	case opalNone:
		return "None"
	case opalV1:
		return "Opal 1.0"
	case opalV2:
		return "Opal 2.0"
	case opalV1OrV2:
		return "Opal 1.0/2.0"
	case opalEnterprise:
		return "Enterprise"
	case opallite:
		return "Opallite"
	case opalPyrite:
		return "Pyrite"
	default:
		return v.raw
	}
}

func (v OpalVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// SaltWidth is the fixed salt length used for credential derivation.
const SaltWidth = 20

// DeviceStub is one drive line of --scan output.
type DeviceStub struct {
	Path         string
	OpalVersion  OpalVersion
	Vendor       string
	Series       string
	Salt         string
	SerialNumber string
	// Elevate is false only for device paths that need no privilege prefix.
	Elevate bool
}

type pathPattern struct {
	re      *regexp.Regexp
	prefix  string
	elevate bool
}

var (
	pathPatterns = []pathPattern{
		{re: regexp.MustCompile(`(?m)^[ \t]*(?:\\\\\.\\)?(PhysicalDrive[0-9]+)[ \t]+\S+[ \t]+\S.*$`), prefix: `\\.\`, elevate: false},
		{re: regexp.MustCompile(`(?m)^[ \t]*(/dev/sd[a-z])[ \t]+\S+[ \t]+\S.*$`), elevate: true},
		{re: regexp.MustCompile(`(?m)^[ \t]*(/dev/nvme[0-9]+)[ \t]+\S+[ \t]+\S.*$`), elevate: true},
		{re: regexp.MustCompile(`(?m)^[ \t]*(/dev/disk[0-9]+)[ \t]+\S+[ \t]+\S.*$`), elevate: true},
	}
	scanLineRe = regexp.MustCompile(`^[ \t]*\S+[ \t]+(\S+)[ \t]+(\S+(?:[ \t]+\S+)*)[ \t]*:[ \t]*([^:]+?)[ \t]*:(.*)$`)
)

// ParseDeviceScan extracts the drives listed by --scan. Lines that name a
// drive but do not carry the expected fields are reported as a ParseError.
func ParseDeviceScan(text string) ([]DeviceStub, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var stubs []DeviceStub
	for _, p := range pathPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			line := m[0]
			md := scanLineRe.FindStringSubmatch(line)
			if md == nil {
				return nil, &ParseError{What: "drive line without vendor/series/serial fields", Line: strings.TrimSpace(line)}
			}
			rest := md[4]
			stubs = append(stubs, DeviceStub{
				Path:         p.prefix + m[1],
				OpalVersion:  opalVersionFromCode(md[1]),
				Vendor:       md[2],
				Series:       md[3],
				Salt:         fmt.Sprintf("%-*s", SaltWidth, rest),
				SerialNumber: strings.Join(strings.Fields(rest), ""),
				Elevate:      p.elevate,
			})
		}
	}
	return stubs, nil
}

// QueryFacts are the marker flags found in --query output.
type QueryFacts struct {
	// TCG is set when the Locking feature is reported at all.
	TCG             bool
	Locked          bool
	LockingEnabled  bool
	LockingDisabled bool
	MBRDisabled     bool
}

func ParseQuery(text string) QueryFacts {
	return QueryFacts{
		TCG:             strings.Contains(text, "Locked = "),
		Locked:          strings.Contains(text, "Locked = Y"),
		LockingEnabled:  strings.Contains(text, "LockingEnabled = Y"),
		LockingDisabled: strings.Contains(text, "LockingEnabled = N"),
		MBRDisabled:     strings.Contains(text, "MBREnabled = N"),
	}
}

// HasShadowMBR reports whether --getmbrsize succeeded in reading the shadow
// MBR, which only happens while the MSID still authenticates.
func HasShadowMBR(text string) bool {
	return strings.Contains(text, "Shadow")
}

// NotAvailable is the placeholder for fields that could not be read.
const NotAvailable = "N/A"

var msidRe = regexp.MustCompile(`MSID:\s*([A-Za-z0-9]*)`)

// ParseDefaultPassword returns the MSID or NotAvailable.
func ParseDefaultPassword(text string) string {
	m := msidRe.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return NotAvailable
	}
	return m[1]
}

var pbaRe = regexp.MustCompile(`PBA image version\s*:\s*(.+?)\s*\r?\nPBA image valid`)

func ParsePBAVersion(text string) (string, error) {
	m := pbaRe.FindStringSubmatch(text)
	if m == nil {
		return "", &ParseError{What: "missing PBA image version"}
	}
	return m[1], nil
}

// AuthOutcome carries the authentication failure markers of a command.
type AuthOutcome struct {
	NotAuthorized bool
	LockedOut     bool
}

func (a AuthOutcome) Failed() bool {
	return a.NotAuthorized || a.LockedOut
}

func ParseAuthOutcome(text string) AuthOutcome {
	return AuthOutcome{
		NotAuthorized: strings.Contains(text, "NOT_AUTHORIZED"),
		LockedOut:     strings.Contains(text, "AUTHORITY_LOCKED_OUT"),
	}
}
