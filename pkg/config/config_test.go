// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/open-source-firmware/sedmgr/pkg/credential"
	"github.com/open-source-firmware/sedmgr/pkg/operation"
	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil/sedutiltest"
	"github.com/open-source-firmware/sedmgr/pkg/session"
)

const sample = `
tool: /usr/local/sbin/sedutil-cli
elevation_prefix: "sudo -n"
locking_range: "1"
hash: sedutil-sha512
poll_interval: 500ms
timeouts:
  default: 15s
  load-pba: 10m
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Tool != "/usr/local/sbin/sedutil-cli" || cfg.ElevationPrefix != "sudo -n" {
		t.Errorf("Unexpected tool settings %q %q", cfg.Tool, cfg.ElevationPrefix)
	}
	if cfg.Scheme() != credential.SchemeSHA512 {
		t.Errorf("Scheme %q", cfg.Scheme())
	}
	if time.Duration(cfg.PollInterval) != 500*time.Millisecond {
		t.Errorf("PollInterval %v", time.Duration(cfg.PollInterval))
	}
	if time.Duration(cfg.Timeouts["load-pba"]) != 10*time.Minute {
		t.Errorf("load-pba timeout %v", time.Duration(cfg.Timeouts["load-pba"]))
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Tool != Default().Tool || cfg.LockingRange != operation.DefaultLockingRange {
		t.Errorf("Empty config does not match defaults: %+v", cfg)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"unknown key", "tools: x\n", "field tools not found"},
		{"bad hash", "hash: md5\n", "unknown hash scheme"},
		{"bad range", "locking_range: global\n", "not a range number"},
		{"bad duration", "poll_interval: soon\n", "invalid duration"},
		{"zero interval", "poll_interval: 0s\n", "poll_interval must be positive"},
		{"unknown operation", "timeouts:\n  defrag: 1s\n", "unknown operation"},
		{"negative timeout", "timeouts:\n  lock: -1s\n", "must be positive"},
		{"empty tool", "tool: \"\"\n", "tool must not be empty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.text))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Parse() error %v, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml"), true); err != nil {
		t.Errorf("Optional missing config failed: %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml"), false); err == nil {
		t.Error("Expected an error for a missing required config")
	}

	deny := filepath.Join(dir, "deny.txt")
	if err := os.WriteFile(deny, []byte("# common\npassword1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "sedmgr.yaml")
	if err := os.WriteFile(path, []byte("deny_list: "+deny+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	dl, err := cfg.LoadDenyList()
	if err != nil {
		t.Fatalf("LoadDenyList failed: %v", err)
	}
	if !dl.Contains("PASSWORD1") || dl.Len() != 1 {
		t.Errorf("Unexpected deny list with %d entries", dl.Len())
	}
}

func TestSessionOpts(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s := session.New(registry.New(nil), operation.NewEngine(sedutiltest.New()), cfg.SessionOpts()...)
	tests := []struct {
		op   operation.Op
		want time.Duration
	}{
		{operation.OpLock, 15 * time.Second},
		{operation.OpRevertNoErase, 30 * time.Second},
		{operation.OpLoadPBA, 10 * time.Minute},
	}
	for _, tc := range tests {
		if got := s.Timeout(tc.op); got != tc.want {
			t.Errorf("Timeout(%s) = %v, want %v", tc.op, got, tc.want)
		}
	}
}
