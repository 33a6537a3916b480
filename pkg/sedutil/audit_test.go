// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sedutil

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"
)

func auditOutput(declared int, entries ...string) string {
	var b strings.Builder
	for i := 0; i < auditHeaderLine; i++ {
		b.WriteString("header line\n")
	}
	b.WriteString("Total Number of Audit Entries : ")
	b.WriteString(strconv.Itoa(declared))
	b.WriteString("\n")
	for _, e := range entries {
		b.WriteString(e)
		b.WriteString("\n")
	}
	return b.String()
}

func TestParseAuditLog(t *testing.T) {
	text := auditOutput(3,
		"23/01/15 10:20:30   1",
		"23/01/15 10:20:31  13",
		"23/01/16 08:00:00  09",
	)
	entries, err := ParseAuditLog(text)
	if err != nil {
		t.Fatalf("ParseAuditLog failed: %v", err)
	}
	want := []AuditEntry{
		{Time: "23/01/15 10:20:30", Event: EventLogInitialized, Description: "Audit log initialized", Severity: SeverityInformation},
		{Time: "23/01/15 10:20:31", Event: EventRevertNoEraseStarted, Description: "Revert without erase requested", Severity: SeverityWarning},
		{Time: "23/01/16 08:00:00", Event: EventAuthenticationFailed, Description: "Authentication failed", Severity: SeverityError},
	}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(entries))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestParseAuditLogShort(t *testing.T) {
	text := auditOutput(3,
		"23/01/15 10:20:30  01",
		"23/01/15 10:20:31  02",
	)
	_, err := ParseAuditLog(strings.TrimRight(text, "\n"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ParseError for a short entry list, got %v", err)
	}
}

func TestParseAuditLogMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no count", strings.Repeat("x\n", 14)},
		{"bad entry", auditOutput(1, "garbage")},
		{"header too short", "one\ntwo\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAuditLog(tc.text)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Errorf("Expected ParseError, got %v", err)
			}
		})
	}
}

func TestParseAuditLogMissing(t *testing.T) {
	for _, text := range []string{"", "  \n", "Invalid Audit Signature or No Audit Entry log\n"} {
		if _, err := ParseAuditLog(text); !errors.Is(err, ErrNoAuditLog) {
			t.Errorf("ParseAuditLog(%q) = %v, want ErrNoAuditLog", text, err)
		}
	}
}

func TestEventSeverity(t *testing.T) {
	for code := EventCode(1); code <= 18; code++ {
		want := SeverityInformation
		switch code {
		case 9, 14, 16, 18:
			want = SeverityError
		case 13, 15, 17:
			want = SeverityWarning
		}
		if got := code.Severity(); got != want {
			t.Errorf("event %02d severity %v, want %v", int(code), got, want)
		}
		if strings.HasPrefix(code.Description(), "Unknown") {
			t.Errorf("event %02d has no description", int(code))
		}
	}
	if !strings.HasPrefix(EventCode(42).Description(), "Unknown event") {
		t.Errorf("Unexpected description for unknown event: %q", EventCode(42).Description())
	}
}

func TestFilterAudit(t *testing.T) {
	entries := []AuditEntry{
		{Event: 1, Severity: SeverityInformation},
		{Event: 13, Severity: SeverityWarning},
		{Event: 14, Severity: SeverityError},
	}
	tests := []struct {
		min  Severity
		want int
	}{
		{SeverityInformation, 3},
		{SeverityWarning, 2},
		{SeverityError, 1},
	}
	for _, tc := range tests {
		if got := FilterAudit(entries, tc.min); len(got) != tc.want {
			t.Errorf("FilterAudit(%v) returned %d entries, want %d", tc.min, len(got), tc.want)
		}
	}
}

func TestAuditEntryArg(t *testing.T) {
	ts := time.Date(2023, time.March, 4, 5, 6, 7, 0, time.UTC)
	if got := AuditEntryArg(EventLockingChanged, ts); got != "02230304050607" {
		t.Errorf("AuditEntryArg() = %q", got)
	}
}
