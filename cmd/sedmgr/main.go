// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/open-source-firmware/sedmgr/pkg/cmdutil"
)

const (
	programName = "sedmgr"
	programDesc = "Manage TCG Opal self-encrypting drives with sedutil-cli"
)

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func main() {
	// Parse kong flags and sub-commands
	ctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Resolvers(cmdutil.ResolvePassword(cmdutil.TerminalPrompter())))

	log, err := newLogger(cli.Verbose)
	ctx.FatalIfErrorf(err)
	defer log.Sync()

	// Run the command
	err = ctx.Run(&context{globals: &cli.Globals, log: log, out: os.Stdout})
	ctx.FatalIfErrorf(err)
}
