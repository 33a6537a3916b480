// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sedutil invokes the sedutil-cli drive management tool and parses
// its textual output.
package sedutil

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

const (
	DefaultTool            = "sedutil-cli"
	DefaultElevationPrefix = "sudo"
)

// Result is the captured outcome of one tool invocation.
type Result struct {
	Output     string
	ExitStatus int
}

// OK reports whether the tool exited with status zero.
func (r *Result) OK() bool {
	return r.ExitStatus == 0
}

// Runner executes the external tool. Implementations must not treat a
// non-zero exit status as an error; the error return is reserved for
// failures to start the process at all.
//
// Run blocks until the tool exits. There is no way to interrupt the tool
// once started.
type Runner interface {
	Run(cmd Command) (*Result, error)
}

// ExecRunner runs the tool as a local process.
type ExecRunner struct {
	Tool string
	// Prefix is prepended to elevated commands, e.g. "sudo".
	Prefix string
	Logger *zap.Logger
}

func NewExecRunner(tool, prefix string, log *zap.Logger) *ExecRunner {
	if tool == "" {
		tool = DefaultTool
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecRunner{Tool: tool, Prefix: prefix, Logger: log}
}

func (r *ExecRunner) argv(cmd Command) []string {
	argv := []string{}
	if cmd.Elevate && r.Prefix != "" {
		argv = append(argv, strings.Fields(r.Prefix)...)
	}
	argv = append(argv, r.Tool)
	return append(argv, cmd.Args...)
}

func (r *ExecRunner) Run(cmd Command) (*Result, error) {
	argv := r.argv(cmd)
	logged := append([]string{}, argv[:len(argv)-len(cmd.Args)]...)
	r.Logger.Debug("running tool", zap.Strings("argv", append(logged, cmd.Redacted()...)))

	var out bytes.Buffer
	c := exec.Command(argv[0], argv[1:]...)
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	res := &Result{Output: out.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("starting %s failed: %w", argv[0], err)
		}
		res.ExitStatus = exitErr.ExitCode()
	}
	r.Logger.Debug("tool finished", zap.String("flag", cmd.Flag()), zap.Int("status", res.ExitStatus))
	return res, nil
}
