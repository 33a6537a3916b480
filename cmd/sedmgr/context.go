// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/open-source-firmware/sedmgr/pkg/cmdutil"
	"github.com/open-source-firmware/sedmgr/pkg/config"
	"github.com/open-source-firmware/sedmgr/pkg/drive"
	"github.com/open-source-firmware/sedmgr/pkg/operation"
	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
	"github.com/open-source-firmware/sedmgr/pkg/session"
)

const defaultConfigPath = "/etc/sedmgr.yaml"

// Globals are the flags shared by every sub-command.
type Globals struct {
	Config            string `optional:"" default:"/etc/sedmgr.yaml" env:"SEDMGR_CONFIG" help:"Configuration file"`
	Tool              string `optional:"" help:"Path to sedutil-cli, overrides the configuration file"`
	ElevationPrefix   string `optional:"" help:"Command prefixed to privileged invocations, overrides the configuration file"`
	Verbose           bool   `optional:"" short:"v" help:"Log every tool invocation"`
	cmdutil.HashEmbed `embed:""`
}

// context is the context struct required by kong command line parser
type context struct {
	globals *Globals
	log     *zap.Logger
	out     io.Writer

	cfg     *config.Config
	runner  sedutil.Runner
	reg     *registry.Registry
	session *session.Session
}

func (c *context) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.globals.Config, c.globals.Config == defaultConfigPath)
	if err != nil {
		return nil, err
	}
	if c.globals.Tool != "" {
		cfg.Tool = c.globals.Tool
	}
	if c.globals.ElevationPrefix != "" {
		cfg.ElevationPrefix = c.globals.ElevationPrefix
	}
	scheme, err := c.globals.HashEmbed.Scheme(cfg.Scheme())
	if err != nil {
		return nil, err
	}
	cfg.Hash = string(scheme)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *context) discoverer() (*registry.Discoverer, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if c.runner == nil {
		c.runner = sedutil.NewExecRunner(cfg.Tool, cfg.ElevationPrefix, c.log.Named("sedutil"))
	}
	d := &registry.Discoverer{
		Runner: c.runner,
		Logger: c.log.Named("discover"),
	}
	if runtime.GOOS != "windows" {
		d.ElevateScan = true
		d.Prober = drive.Probe
	}
	return d, nil
}

// registry discovers the drives once per invocation.
func (c *context) registry() (*registry.Registry, error) {
	if c.reg != nil {
		return c.reg, nil
	}
	d, err := c.discoverer()
	if err != nil {
		return nil, err
	}
	devices, err := d.Discover()
	if err != nil {
		return nil, fmt.Errorf("scanning for drives failed: %w", err)
	}
	c.reg = registry.New(devices)
	return c.reg, nil
}

func (c *context) sessionFor() (*session.Session, error) {
	if c.session != nil {
		return c.session, nil
	}
	reg, err := c.registry()
	if err != nil {
		return nil, err
	}
	cfg, _ := c.config()
	deny, err := cfg.LoadDenyList()
	if err != nil {
		return nil, err
	}
	engineOpts := append(cfg.EngineOpts(),
		operation.WithDenyList(deny),
		operation.WithLogger(c.log.Named("operation")))
	engine := operation.NewEngine(c.runner, engineOpts...)

	d, _ := c.discoverer()
	opts := append(cfg.SessionOpts(),
		session.WithRescan(d.Rescan),
		session.WithLogger(c.log.Named("session")))
	c.session = session.New(reg, engine, opts...)
	return c.session, nil
}

// DeviceArg selects the drive an operation runs on.
type DeviceArg struct {
	Device string `arg:"" help:"Path to SED device (e.g. /dev/nvme0), or its position among the drives the command applies to"`
}

func (d *DeviceArg) index(s *session.Session, op operation.Op) (int, error) {
	if pos, err := strconv.Atoi(d.Device); err == nil {
		return s.Resolve(op, pos)
	}
	return s.Registry().IndexOf(d.Device)
}

// execute runs req on the selected drive and reports the outcome.
func (c *context) execute(dev DeviceArg, req operation.Request) (*operation.Result, error) {
	s, err := c.sessionFor()
	if err != nil {
		return nil, err
	}
	idx, err := dev.index(s, req.Op)
	if err != nil {
		return nil, fmt.Errorf("no drive %q for %s: %w", dev.Device, req.Op, err)
	}
	req.Index = idx
	res := s.Run(req, func(ev session.Event) {
		switch ev.Kind {
		case session.EventTimedOut:
			fmt.Fprintf(c.out, "%s is taking longer than %s, still waiting for the drive...\n",
				req.Op, ev.Elapsed.Round(time.Second))
		case session.EventCompleted, session.EventLateCompletion:
			if ev.ApplyErr != nil {
				c.log.Warn("drive list out of date", zap.Error(ev.ApplyErr))
			}
		}
	})
	if res.Err != nil {
		return res, failure(res)
	}
	fmt.Fprintln(c.out, successMessage(res))
	return res, nil
}
