// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sedutil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EventCode is a two digit audit log event identifier.
type EventCode int

const (
	EventLogInitialized       EventCode = 1
	EventLockingChanged       EventCode = 2
	EventPBAUpdated           EventCode = 3
	EventRevertedNoErase      EventCode = 4
	EventRevertedPassword     EventCode = 5
	EventRevertedPSID         EventCode = 6
	EventUserEnabled          EventCode = 7
	EventLockingSPActivated   EventCode = 8
	EventAuthenticationFailed EventCode = 9
	EventSIDPasswordChanged   EventCode = 10
	EventAdmin1PasswordSet    EventCode = 11
	EventUserPasswordChanged  EventCode = 12
	EventRevertNoEraseStarted EventCode = 13
	EventRevertNoEraseFailed  EventCode = 14
	EventRevertPasswordStart  EventCode = 15
	EventRevertPasswordFailed EventCode = 16
	EventRevertPSIDStarted    EventCode = 17
	EventRevertPSIDFailed     EventCode = 18
)

var eventDescriptions = map[EventCode]string{
	EventLogInitialized:       "Audit log initialized",
	EventLockingChanged:       "Locking state changed",
	EventPBAUpdated:           "PBA image updated",
	EventRevertedNoErase:      "Drive reverted without erasing data",
	EventRevertedPassword:     "Drive reverted with password",
	EventRevertedPSID:         "Drive reverted with PSID",
	EventUserEnabled:          "User authority enabled",
	EventLockingSPActivated:   "Locking SP activated",
	EventAuthenticationFailed: "Authentication failed",
	EventSIDPasswordChanged:   "SID password changed",
	EventAdmin1PasswordSet:    "Admin1 password changed",
	EventUserPasswordChanged:  "User password changed",
	EventRevertNoEraseStarted: "Revert without erase requested",
	EventRevertNoEraseFailed:  "Revert without erase failed",
	EventRevertPasswordStart:  "Revert with password requested",
	EventRevertPasswordFailed: "Revert with password failed",
	EventRevertPSIDStarted:    "Revert with PSID requested",
	EventRevertPSIDFailed:     "Revert with PSID failed",
}

func (c EventCode) Description() string {
	if d, ok := eventDescriptions[c]; ok {
		return d
	}
	return fmt.Sprintf("Unknown event %d", int(c))
}

// Severity orders from least to most severe.
type Severity int

const (
	SeverityInformation Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	default:
		return "Information"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (c EventCode) Severity() Severity {
	switch c {
	case EventAuthenticationFailed, EventRevertNoEraseFailed, EventRevertPasswordFailed, EventRevertPSIDFailed:
		return SeverityError
	case EventRevertNoEraseStarted, EventRevertPasswordStart, EventRevertPSIDStarted:
		return SeverityWarning
	default:
		return SeverityInformation
	}
}

// AuditTimestampLayout is the YYMMDDHHMMSS form written with each event.
const AuditTimestampLayout = "060102150405"

// AuditEntryArg formats the entry argument of --auditwrite.
func AuditEntryArg(code EventCode, t time.Time) string {
	return fmt.Sprintf("%02d%s", int(code), t.Format(AuditTimestampLayout))
}

type AuditEntry struct {
	Time        string
	Event       EventCode
	Description string
	Severity    Severity
}

// ErrNoAuditLog is returned when the drive has no readable audit log.
var ErrNoAuditLog = errors.New("invalid audit signature or no audit entry log")

// auditHeaderLine is the zero based line carrying the entry count.
const auditHeaderLine = 11

var (
	auditCountRe = regexp.MustCompile(`Total Number of Audit Entries\s*:\s*([0-9]+)`)
	auditEntryRe = regexp.MustCompile(`^\s*([0-9]+/[0-9]+/[0-9]+\s+[0-9]+:[0-9]+:[0-9]+)\s+([0-9]+)`)
)

// ParseAuditLog parses --auditread output. The declared number of entries
// must be present in full.
func ParseAuditLog(text string) ([]AuditEntry, error) {
	if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "Invalid Audit Signature") {
		return nil, ErrNoAuditLog
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) <= auditHeaderLine {
		return nil, &ParseError{What: "audit log header too short"}
	}
	m := auditCountRe.FindStringSubmatch(lines[auditHeaderLine])
	if m == nil {
		return nil, &ParseError{What: "missing audit entry count", Line: lines[auditHeaderLine]}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, &ParseError{What: "bad audit entry count", Line: lines[auditHeaderLine]}
	}
	body := lines[auditHeaderLine+1:]
	if len(body) < n {
		return nil, &ParseError{What: fmt.Sprintf("audit log declares %d entries, found %d lines", n, len(body))}
	}
	entries := make([]AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		em := auditEntryRe.FindStringSubmatch(body[i])
		if em == nil {
			return nil, &ParseError{What: fmt.Sprintf("audit entry %d malformed", i+1), Line: body[i]}
		}
		id, err := strconv.Atoi(em[2])
		if err != nil {
			return nil, &ParseError{What: "bad audit event id", Line: body[i]}
		}
		code := EventCode(id)
		entries = append(entries, AuditEntry{
			Time:        em[1],
			Event:       code,
			Description: code.Description(),
			Severity:    code.Severity(),
		})
	}
	return entries, nil
}

// FilterAudit keeps entries at or above min severity.
func FilterAudit(entries []AuditEntry, min Severity) []AuditEntry {
	var out []AuditEntry
	for _, e := range entries {
		if e.Severity >= min {
			out = append(out, e)
		}
	}
	return out
}
