// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the sedmgr configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/open-source-firmware/sedmgr/pkg/credential"
	"github.com/open-source-firmware/sedmgr/pkg/operation"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
	"github.com/open-source-firmware/sedmgr/pkg/session"
	"github.com/open-source-firmware/sedmgr/pkg/watchdog"
)

// DefaultTimeoutKey sets the timeout of every operation without its own
// entry in Timeouts.
const DefaultTimeoutKey = "default"

// Duration is a time.Duration written as a Go duration string, e.g. "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	Tool            string `yaml:"tool"`
	ElevationPrefix string `yaml:"elevation_prefix"`
	LockingRange    string `yaml:"locking_range"`
	Hash            string `yaml:"hash"`
	// DenyList is the path of a file with one rejected passphrase per line.
	DenyList     string              `yaml:"deny_list,omitempty"`
	PollInterval Duration            `yaml:"poll_interval"`
	Timeouts     map[string]Duration `yaml:"timeouts,omitempty"`
}

func Default() *Config {
	return &Config{
		Tool:            sedutil.DefaultTool,
		ElevationPrefix: sedutil.DefaultElevationPrefix,
		LockingRange:    operation.DefaultLockingRange,
		Hash:            string(credential.SchemeDTA),
		PollInterval:    Duration(watchdog.DefaultInterval),
		Timeouts:        map[string]Duration{},
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Timeouts == nil {
		cfg.Timeouts = map[string]Duration{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var lockingRangeRe = regexp.MustCompile(`^[0-9]+$`)

func (c *Config) Validate() error {
	if c.Tool == "" {
		return errors.New("tool must not be empty")
	}
	if !lockingRangeRe.MatchString(c.LockingRange) {
		return fmt.Errorf("locking_range %q is not a range number", c.LockingRange)
	}
	if _, err := credential.ParseScheme(c.Hash); err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", time.Duration(c.PollInterval))
	}
	for k, d := range c.Timeouts {
		if k != DefaultTimeoutKey {
			if _, err := operation.ParseOp(k); err != nil {
				return fmt.Errorf("timeouts: %w", err)
			}
		}
		if d <= 0 {
			return fmt.Errorf("timeouts: %s must be positive, got %s", k, time.Duration(d))
		}
	}
	return nil
}

func (c *Config) Scheme() credential.Scheme {
	s, _ := credential.ParseScheme(c.Hash)
	return s
}

// LoadDenyList reads the configured deny list. It returns nil when none is
// configured.
func (c *Config) LoadDenyList() (*credential.DenyList, error) {
	if c.DenyList == "" {
		return nil, nil
	}
	d, err := credential.LoadDenyListFile(c.DenyList)
	if err != nil {
		return nil, fmt.Errorf("loading deny list: %w", err)
	}
	return d, nil
}

// SessionOpts returns the session options for the configured timeouts and
// poll interval. The default entry is applied before per operation ones.
func (c *Config) SessionOpts() []session.Opt {
	opts := []session.Opt{session.WithPollInterval(time.Duration(c.PollInterval))}
	if d, ok := c.Timeouts[DefaultTimeoutKey]; ok {
		opts = append(opts, session.WithDefaultTimeout(time.Duration(d)))
	}
	for k, d := range c.Timeouts {
		if op, err := operation.ParseOp(k); err == nil {
			opts = append(opts, session.WithTimeout(op, time.Duration(d)))
		}
	}
	return opts
}

// EngineOpts returns the operation engine options for the configured
// locking range and hash scheme.
func (c *Config) EngineOpts() []operation.EngineOpt {
	return []operation.EngineOpt{
		operation.WithLockingRange(c.LockingRange),
		operation.WithDeriver(credential.Deriver{Scheme: c.Scheme()}),
	}
}
